package auth

import "context"

// UserFinder is the lookup capability the resolver needs. Both methods
// return ErrUserNotFound when nothing matches.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByPhoneNumber(ctx context.Context, phone string) (*User, error)
}

// UserStore persists users.
type UserStore interface {
	UserFinder
	FindByID(ctx context.Context, id string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByPhoneNumber(ctx context.Context, phone string) (bool, error)
	// Save inserts or updates u. Uniqueness violations report ErrConflict.
	Save(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
}

// OwnedResourcePurger removes every resource owned by a user. Account
// deletion runs it before the user row goes away.
type OwnedResourcePurger interface {
	DeleteByOwner(ctx context.Context, ownerID string) error
}
