package auth

import (
	"context"
	"sync"
)

var _ UserStore = (*InMemoryUsers)(nil)

// InMemoryUsers implements UserStore with in-process concurrency safety.
// It backs the API when no database DSN is configured, and tests.
type InMemoryUsers struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string // email -> id
	byPhone map[string]string // phone -> id
}

func NewInMemoryUsers() *InMemoryUsers {
	return &InMemoryUsers{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
	}
}

func (s *InMemoryUsers) FindByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *InMemoryUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byEmail, normalizeEmail(email))
}

func (s *InMemoryUsers) FindByPhoneNumber(ctx context.Context, phone string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byPhone, normalizePhone(phone))
}

func (s *InMemoryUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[normalizeEmail(email)]
	return ok, nil
}

func (s *InMemoryUsers) ExistsByPhoneNumber(ctx context.Context, phone string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byPhone[normalizePhone(phone)]
	return ok, nil
}

func (s *InMemoryUsers) Save(ctx context.Context, u *User) error {
	if u == nil || u.ID == "" {
		return ErrInvalidInput
	}
	email, phone := normalizeEmail(u.Email), normalizePhone(u.PhoneNumber)
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byEmail[email]; email != "" && ok && owner != u.ID {
		return Errorf(KindConflict, "email already in use")
	}
	if owner, ok := s.byPhone[phone]; phone != "" && ok && owner != u.ID {
		return Errorf(KindConflict, "phone number already in use")
	}
	if prev, ok := s.byID[u.ID]; ok {
		delete(s.byEmail, normalizeEmail(prev.Email))
		delete(s.byPhone, normalizePhone(prev.PhoneNumber))
	}
	stored := *u
	stored.Email, stored.PhoneNumber = email, phone
	s.byID[u.ID] = stored
	if email != "" {
		s.byEmail[email] = u.ID
	}
	if phone != "" {
		s.byPhone[phone] = u.ID
	}
	return nil
}

func (s *InMemoryUsers) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(s.byID, id)
	delete(s.byEmail, normalizeEmail(u.Email))
	delete(s.byPhone, normalizePhone(u.PhoneNumber))
	return nil
}

func (s *InMemoryUsers) lookup(index map[string]string, key string) (*User, error) {
	if key == "" {
		return nil, ErrUserNotFound
	}
	id, ok := index[key]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := s.byID[id]
	return &u, nil
}
