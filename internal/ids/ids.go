package ids

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// New returns a lexicographically sortable identifier for users, contacts
// and their nested email and phone rows.
func New() string {
	return ulid.Make().String()
}

// Valid reports whether s parses as an identifier produced by New. Lookups
// with an invalid id can short-circuit to not found.
func Valid(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(s)
	return err == nil
}
