package contacts

import (
	"context"

	"rolodex.dev/internal/auth"
)

// ErrNotFound reports a missing contact. It carries the resource-not-found
// kind so the HTTP layer maps it without knowing this package.
var ErrNotFound = auth.Errorf(auth.KindResourceNotFound, "contact not found")

// ErrAccessDenied reports a contact owned by someone else.
var ErrAccessDenied = auth.Errorf(auth.KindAccessDenied, "access denied")

// Store persists contacts. Implementations never change OwnerID of an
// existing contact.
type Store interface {
	FindByID(ctx context.Context, id string) (Contact, error)
	ListByOwner(ctx context.Context, ownerID string, req PageRequest) ([]Contact, int, error)
	Search(ctx context.Context, ownerID, query string, req PageRequest) ([]Contact, int, error)
	Save(ctx context.Context, c Contact) error
	// Update rewrites an existing contact. It never inserts: a contact that
	// is gone reports ErrNotFound.
	Update(ctx context.Context, c Contact) error
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) error
}

// ErrInvalidContact reports a contact missing its id or owner.
var ErrInvalidContact = auth.Errorf(auth.KindInvalidInput, "contact id and owner are required")
