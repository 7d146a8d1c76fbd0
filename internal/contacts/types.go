package contacts

import (
	"math"
	"strings"
	"time"
)

// Email is an address attached to a contact.
type Email struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Label string `json:"label,omitempty"`
}

// Phone is a number attached to a contact.
type Phone struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
	Label string `json:"label,omitempty"`
}

// Contact is an address-book entry. OwnerID is fixed at creation.
type Contact struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"-"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Title          string    `json:"title,omitempty"`
	EmailAddresses []Email   `json:"emailAddresses"`
	PhoneNumbers   []Phone   `json:"phoneNumbers"`
	ProfileImage   string    `json:"profileImage,omitempty"`
	Tags           []string  `json:"tags"`
	Favorite       bool      `json:"isFavorite"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// clone deep-copies the nested slices. Empty slices come back non-nil so
// they encode as [] rather than null.
func (c Contact) clone() Contact {
	c.EmailAddresses = copyOf(c.EmailAddresses)
	c.PhoneNumbers = copyOf(c.PhoneNumbers)
	c.Tags = copyOf(c.Tags)
	return c
}

func copyOf[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// matches reports whether any searchable field contains q. q must already
// be lower-cased.
func (c Contact) matches(q string) bool {
	fields := []string{c.FirstName, c.LastName, c.Title}
	fields = append(fields, c.Tags...)
	for _, e := range c.EmailAddresses {
		fields = append(fields, e.Email)
	}
	for _, p := range c.PhoneNumbers {
		fields = append(fields, p.Phone)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

type EmailInput struct {
	Email string
	Label string
}

type PhoneInput struct {
	Phone string
	Label string
}

// Input is the client-supplied part of a contact. On update, a nil Tags
// or Favorite leaves the stored value alone and an empty ProfileImage
// keeps the current image; emails and phones are always replaced.
type Input struct {
	FirstName      string
	LastName       string
	Title          string
	EmailAddresses []EmailInput
	PhoneNumbers   []PhoneInput
	ProfileImage   string
	Tags           []string
	Favorite       *bool
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Sort keys accepted by PageRequest.
const (
	SortFirstName = "firstName"
	SortLastName  = "lastName"
	SortTitle     = "title"
)

type PageRequest struct {
	Page   int
	Size   int
	SortBy string
}

// Normalize clamps the request to valid bounds and falls back to sorting
// by first name for unknown keys.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	// keep Page*Size within int32 so the offset never overflows
	if limit := math.MaxInt32 / p.Size; p.Page > limit {
		p.Page = limit
	}
	switch p.SortBy {
	case SortFirstName, SortLastName, SortTitle:
	default:
		p.SortBy = SortFirstName
	}
	return p
}

func (p PageRequest) Offset() int { return p.Page * p.Size }

// Page is one slice of an owner's contacts.
type Page struct {
	Content       []Contact `json:"content"`
	Page          int       `json:"page"`
	Size          int       `json:"size"`
	TotalElements int       `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
}

func NewPage(content []Contact, req PageRequest, total int) Page {
	if content == nil {
		content = []Contact{}
	}
	pages := 0
	if req.Size > 0 {
		pages = (total + req.Size - 1) / req.Size
	}
	return Page{
		Content:       content,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}
