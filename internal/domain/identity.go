package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Identity is an opaque party handle (an account address).
//
// Identities are compared byte-for-byte, so they are NFC-normalized on the
// way in: two spellings of the same visible address must not become two
// parties.
type Identity string

// ParseIdentity trims and NFC-normalizes s. Empty identities are rejected.
func ParseIdentity(s string) (Identity, error) {
	s = norm.NFC.String(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("%w: empty identity", ErrInvalidParams)
	}
	return Identity(s), nil
}

// MustIdentity is ParseIdentity that panics. For tests and constants.
func MustIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the identity text.
func (i Identity) String() string { return string(i) }

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool { return i == "" }
