package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Resolver maps a verified token subject to a user. A subject may be an
// email or a phone number depending on how the user registered, so both
// namespaces are tried, email first.
type Resolver struct {
	users UserFinder
}

func NewResolver(users UserFinder) *Resolver {
	return &Resolver{users: users}
}

// Resolve loads the user identified by identifier or fails with
// ErrUserNotFound.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrUserNotFound
	}

	u, err := r.users.FindByEmail(ctx, normalizeEmail(identifier))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	u, err = r.users.FindByPhoneNumber(ctx, identifier)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("find user by phone: %w", err)
	}
	return nil, ErrUserNotFound
}

// Principal resolves identifier and projects the user onto a Principal.
func (r *Resolver) Principal(ctx context.Context, identifier string) (Principal, error) {
	u, err := r.Resolve(ctx, identifier)
	if err != nil {
		return Principal{}, err
	}
	return NewPrincipal(u), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}
