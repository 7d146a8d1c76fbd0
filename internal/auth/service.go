package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rolodex.dev/internal/ids"
)

// Service implements account operations: registration, login and the
// authenticated user's own profile.
type Service struct {
	users    UserStore
	codec    *Codec
	resolver *Resolver
	purger   OwnedResourcePurger
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithPurger registers the store whose rows are removed alongside a
// deleted account.
func WithPurger(p OwnedResourcePurger) ServiceOption {
	return func(s *Service) error {
		s.purger = p
		return nil
	}
}

// WithServiceClock overrides the clock used for record timestamps.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) error {
		if now == nil {
			return errors.New("auth: nil clock")
		}
		s.now = now
		return nil
	}
}

func NewService(users UserStore, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	s := &Service{
		users:    users,
		codec:    codec,
		resolver: NewResolver(users),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Resolver returns the resolver backed by the service's user store.
func (s *Service) Resolver() *Resolver { return s.resolver }

type RegisterInput struct {
	Email       string
	PhoneNumber string
	Password    string
	FirstName   string
	LastName    string
}

// Register creates an account. Either an email or a phone number must be
// given; both must be unused.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email, phone := normalizeEmail(in.Email), normalizePhone(in.PhoneNumber)
	if email == "" && phone == "" {
		return nil, Errorf(KindInvalidInput, "email or phone number is required")
	}
	if in.Password == "" {
		return nil, Errorf(KindInvalidInput, "password is required")
	}
	if err := checkIdentifiers(email, phone); err != nil {
		return nil, err
	}
	if err := s.ensureUnused(ctx, "", email, phone); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	u := &User{
		ID:           ids.New(),
		Email:        email,
		PhoneNumber:  phone,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks username (email or phone) and password and issues a token
// for the user's primary identifier. Every failure reports
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (Credential, *User, error) {
	u, err := s.resolver.Resolve(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Credential{}, nil, ErrInvalidCredentials
		}
		return Credential{}, nil, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return Credential{}, nil, ErrInvalidCredentials
	}
	cred, err := s.codec.Issue(u.PrimaryIdentifier())
	if err != nil {
		return Credential{}, nil, fmt.Errorf("issue token: %w", err)
	}
	return cred, u, nil
}

// CurrentUser loads the record of the principal bound to ctx. A principal
// whose user has since disappeared is treated as unauthenticated.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	p, err := CurrentPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, p.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	return u, err
}

// ProfileUpdate carries optional changes; nil fields are left untouched.
type ProfileUpdate struct {
	Email       *string
	PhoneNumber *string
	FirstName   *string
	LastName    *string
}

func (s *Service) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*User, error) {
	u, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	email, phone := u.Email, u.PhoneNumber
	if upd.Email != nil {
		email = normalizeEmail(*upd.Email)
	}
	if upd.PhoneNumber != nil {
		phone = normalizePhone(*upd.PhoneNumber)
	}
	if email == "" && phone == "" {
		return nil, Errorf(KindInvalidInput, "email or phone number is required")
	}
	if err := checkIdentifiers(email, phone); err != nil {
		return nil, err
	}
	var changedEmail, changedPhone string
	if email != u.Email {
		changedEmail = email
	}
	if phone != u.PhoneNumber {
		changedPhone = phone
	}
	if err := s.ensureUnused(ctx, u.ID, changedEmail, changedPhone); err != nil {
		return nil, err
	}

	u.Email, u.PhoneNumber = email, phone
	if upd.FirstName != nil {
		u.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		u.LastName = strings.TrimSpace(*upd.LastName)
	}
	u.UpdatedAt = s.now()
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, current, next string) error {
	u, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if !CheckPassword(u.PasswordHash, current) {
		return Errorf(KindInvalidCredentials, "current password is incorrect")
	}
	if next == "" {
		return Errorf(KindInvalidInput, "new password is required")
	}
	hash, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.now()
	return s.users.Save(ctx, u)
}

// DeleteAccount removes the current user and everything they own.
func (s *Service) DeleteAccount(ctx context.Context) error {
	u, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if s.purger != nil {
		if err := s.purger.DeleteByOwner(ctx, u.ID); err != nil {
			return fmt.Errorf("purge owned resources: %w", err)
		}
	}
	return s.users.Delete(ctx, u.ID)
}

func checkIdentifiers(email, phone string) error {
	if email != "" && !ValidEmail(email) {
		return Errorf(KindInvalidInput, "email is not a valid address")
	}
	if phone != "" && !ValidPhoneNumber(phone) {
		return Errorf(KindInvalidInput, "phone number is not valid")
	}
	return nil
}

// ensureUnused checks email and phone against both identifier namespaces:
// an email may not match anyone's phone number and vice versa, so a token
// subject always resolves to the user it was issued for.
func (s *Service) ensureUnused(ctx context.Context, selfID, email, phone string) error {
	if email != "" {
		if err := s.claimable(ctx, email, selfID, "email already in use"); err != nil {
			return err
		}
	}
	if phone != "" {
		if err := s.claimable(ctx, phone, selfID, "phone number already in use"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) claimable(ctx context.Context, key, selfID, msg string) error {
	checks := []struct {
		exists func(context.Context, string) (bool, error)
		find   func(context.Context, string) (*User, error)
	}{
		{s.users.ExistsByEmail, s.users.FindByEmail},
		{s.users.ExistsByPhoneNumber, s.users.FindByPhoneNumber},
	}
	for _, c := range checks {
		taken, err := c.exists(ctx, key)
		if err != nil {
			return err
		}
		if taken && !s.heldBy(ctx, c.find, key, selfID) {
			return Errorf(KindConflict, "%s", msg)
		}
	}
	return nil
}

func (s *Service) heldBy(ctx context.Context, find func(context.Context, string) (*User, error), key, selfID string) bool {
	if selfID == "" {
		return false
	}
	u, err := find(ctx, key)
	return err == nil && u.ID == selfID
}
