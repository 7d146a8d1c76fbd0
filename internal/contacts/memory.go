package contacts

import (
	"context"
	"sort"
	"strings"
	"sync"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu   sync.RWMutex
	byID map[string]Contact
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[string]Contact)}
}

func (s *InMemory) FindByID(ctx context.Context, id string) (Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return Contact{}, ErrNotFound
	}
	return c.clone(), nil
}

func (s *InMemory) ListByOwner(ctx context.Context, ownerID string, req PageRequest) ([]Contact, int, error) {
	return s.collect(ownerID, req, func(Contact) bool { return true })
}

func (s *InMemory) Search(ctx context.Context, ownerID, query string, req PageRequest) ([]Contact, int, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	return s.collect(ownerID, req, func(c Contact) bool { return c.matches(q) })
}

func (s *InMemory) Save(ctx context.Context, c Contact) error {
	if c.ID == "" || c.OwnerID == "" {
		return ErrInvalidContact
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byID[c.ID]; ok && prev.OwnerID != c.OwnerID {
		return ErrAccessDenied
	}
	s.byID[c.ID] = c.clone()
	return nil
}

func (s *InMemory) Update(ctx context.Context, c Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.byID[c.ID]
	if !ok {
		return ErrNotFound
	}
	if prev.OwnerID != c.OwnerID {
		return ErrAccessDenied
	}
	s.byID[c.ID] = c.clone()
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *InMemory) DeleteByOwner(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.byID {
		if c.OwnerID == ownerID {
			delete(s.byID, id)
		}
	}
	return nil
}

func (s *InMemory) collect(ownerID string, req PageRequest, keep func(Contact) bool) ([]Contact, int, error) {
	req = req.Normalize()
	s.mu.RLock()
	var all []Contact
	for _, c := range s.byID {
		if c.OwnerID == ownerID && keep(c) {
			all = append(all, c.clone())
		}
	}
	s.mu.RUnlock()

	key := sortKey(req.SortBy)
	sort.Slice(all, func(i, j int) bool {
		a, b := strings.ToLower(key(all[i])), strings.ToLower(key(all[j]))
		if a != b {
			return a < b
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	start := req.Offset()
	if start >= total {
		return []Contact{}, total, nil
	}
	end := start + req.Size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func sortKey(by string) func(Contact) string {
	switch by {
	case SortLastName:
		return func(c Contact) string { return c.LastName }
	case SortTitle:
		return func(c Contact) string { return c.Title }
	default:
		return func(c Contact) string { return c.FirstName }
	}
}
