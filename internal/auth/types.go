package auth

import (
	"strings"
	"time"
)

// User is an account holder. At least one of Email and PhoneNumber is set;
// each is unique across users when present.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PrimaryIdentifier is the identifier tokens are issued against: the
// email when present, otherwise the phone number.
func (u *User) PrimaryIdentifier() string {
	if u == nil {
		return ""
	}
	if email := strings.TrimSpace(u.Email); email != "" {
		return email
	}
	return strings.TrimSpace(u.PhoneNumber)
}

// Principal is the identity bound to a single request.
type Principal struct {
	UserID     string
	Identifier string
}

// NewPrincipal projects a user record onto the request identity.
func NewPrincipal(u *User) Principal {
	if u == nil {
		return Principal{}
	}
	return Principal{UserID: u.ID, Identifier: u.PrimaryIdentifier()}
}

// IsZero reports whether p carries no identity.
func (p Principal) IsZero() bool { return strings.TrimSpace(p.UserID) == "" }

// ValidEmail reports whether s has the shape of an email address. Emails
// always carry an '@' and phone numbers never do, which keeps the two
// identifier namespaces disjoint.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.IndexByte(s, '@')
	return at > 0 && at == strings.LastIndexByte(s, '@') && at < len(s)-1
}

// ValidPhoneNumber accepts an optional leading '+' followed by digits and
// the usual separators (space, '-', '.', parentheses), with at least four
// digits and at most 32 characters.
func ValidPhoneNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 32 {
		return false
	}
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ', r == '-', r == '.', r == '(', r == ')':
		default:
			return false
		}
	}
	return digits >= 4
}
