package contacts

import (
	"context"
	"strings"
	"time"

	"rolodex.dev/internal/auth"
	"rolodex.dev/internal/ids"
)

// Service implements the contact operations for the principal bound to
// each call's context. Single-contact operations go through the Guard.
type Service struct {
	store Store
	guard *Guard
	now   func() time.Time
}

type Option func(*Service)

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		guard: NewGuard(store),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context, req PageRequest) (Page, error) {
	p, err := auth.CurrentPrincipal(ctx)
	if err != nil {
		return Page{}, err
	}
	req = req.Normalize()
	items, total, err := s.store.ListByOwner(ctx, p.UserID, req)
	if err != nil {
		return Page{}, err
	}
	return NewPage(items, req, total), nil
}

// Search matches query case-insensitively against names, title, tags,
// emails and phone numbers.
func (s *Service) Search(ctx context.Context, query string, req PageRequest) (Page, error) {
	p, err := auth.CurrentPrincipal(ctx)
	if err != nil {
		return Page{}, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return Page{}, auth.Errorf(auth.KindInvalidInput, "query is required")
	}
	req = req.Normalize()
	items, total, err := s.store.Search(ctx, p.UserID, query, req)
	if err != nil {
		return Page{}, err
	}
	return NewPage(items, req, total), nil
}

func (s *Service) Get(ctx context.Context, id string) (Contact, error) {
	return s.guard.Authorize(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (Contact, error) {
	p, err := auth.CurrentPrincipal(ctx)
	if err != nil {
		return Contact{}, err
	}
	if err := validate(in); err != nil {
		return Contact{}, err
	}
	now := s.now()
	c := Contact{
		ID:           ids.New(),
		OwnerID:      p.UserID,
		ProfileImage: strings.TrimSpace(in.ProfileImage),
		Tags:         cleanTags(in.Tags),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Favorite != nil {
		c.Favorite = *in.Favorite
	}
	applyDetails(&c, in)
	if err := s.store.Save(ctx, c); err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (Contact, error) {
	c, err := s.guard.Authorize(ctx, id)
	if err != nil {
		return Contact{}, err
	}
	if err := validate(in); err != nil {
		return Contact{}, err
	}
	applyDetails(&c, in)
	if img := strings.TrimSpace(in.ProfileImage); img != "" {
		c.ProfileImage = img
	}
	if in.Tags != nil {
		c.Tags = cleanTags(in.Tags)
	}
	if in.Favorite != nil {
		c.Favorite = *in.Favorite
	}
	c.UpdatedAt = s.now()
	if err := s.store.Update(ctx, c); err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.guard.Authorize(ctx, id)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, c.ID)
}

func (s *Service) ToggleFavorite(ctx context.Context, id string) (Contact, error) {
	c, err := s.guard.Authorize(ctx, id)
	if err != nil {
		return Contact{}, err
	}
	c.Favorite = !c.Favorite
	c.UpdatedAt = s.now()
	if err := s.store.Update(ctx, c); err != nil {
		return Contact{}, err
	}
	return c, nil
}

// DeleteByOwner removes every contact of ownerID. Account deletion calls it
// through auth.OwnedResourcePurger.
func (s *Service) DeleteByOwner(ctx context.Context, ownerID string) error {
	return s.store.DeleteByOwner(ctx, ownerID)
}

func validate(in Input) error {
	if strings.TrimSpace(in.FirstName) == "" {
		return auth.Errorf(auth.KindInvalidInput, "firstName is required")
	}
	for _, e := range in.EmailAddresses {
		if strings.TrimSpace(e.Email) == "" {
			return auth.Errorf(auth.KindInvalidInput, "email address must not be empty")
		}
	}
	for _, p := range in.PhoneNumbers {
		if strings.TrimSpace(p.Phone) == "" {
			return auth.Errorf(auth.KindInvalidInput, "phone number must not be empty")
		}
	}
	return nil
}

// applyDetails copies the always-replaced fields of in onto c. Nested
// emails and phones get fresh ids.
func applyDetails(c *Contact, in Input) {
	c.FirstName = strings.TrimSpace(in.FirstName)
	c.LastName = strings.TrimSpace(in.LastName)
	c.Title = strings.TrimSpace(in.Title)

	c.EmailAddresses = make([]Email, 0, len(in.EmailAddresses))
	for _, e := range in.EmailAddresses {
		c.EmailAddresses = append(c.EmailAddresses, Email{
			ID:    ids.New(),
			Email: strings.TrimSpace(e.Email),
			Label: strings.TrimSpace(e.Label),
		})
	}
	c.PhoneNumbers = make([]Phone, 0, len(in.PhoneNumbers))
	for _, p := range in.PhoneNumbers {
		c.PhoneNumbers = append(c.PhoneNumbers, Phone{
			ID:    ids.New(),
			Phone: strings.TrimSpace(p.Phone),
			Label: strings.TrimSpace(p.Label),
		})
	}
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
