package contacts

import (
	"context"
	"errors"

	"rolodex.dev/internal/auth"
	"rolodex.dev/internal/ids"
)

// Guard loads a contact on behalf of the principal bound to the request
// context and refuses contacts owned by anyone else. It holds no cache;
// every call goes to the store.
type Guard struct {
	store Store
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Authorize checks, in order: a principal is bound (ErrUnauthenticated),
// the contact exists (ErrNotFound), the principal owns it (ErrAccessDenied).
func (g *Guard) Authorize(ctx context.Context, id string) (Contact, error) {
	p, err := auth.CurrentPrincipal(ctx)
	if err != nil {
		return Contact{}, err
	}
	if !ids.Valid(id) {
		return Contact{}, ErrNotFound
	}
	c, err := g.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, err
	}
	if c.OwnerID != p.UserID {
		return Contact{}, ErrAccessDenied
	}
	return c, nil
}
