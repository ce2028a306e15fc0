// Package validation holds the pure rules behind the vault form errors.
//
// The errors are values rendered inline by the UI; nothing in this package
// panics or has side effects.
package validation

import (
	"errors"
	"strings"
)

var (
	// ErrNoName is reported for an empty or whitespace-only vault name.
	ErrNoName = errors.New("a vault name is required")
	// ErrDuplicateName is reported when the name is already taken, ignoring case.
	ErrDuplicateName = errors.New("a vault with this name already exists")
	// ErrPasswordNoMatch is reported when the password confirmation differs.
	ErrPasswordNoMatch = errors.New("the supplied passwords do not match")
)

// ValidateName checks a vault name against the lower-cased names of the
// existing vaults.
func ValidateName(name string, existing map[string]struct{}) error {
	if strings.TrimSpace(name) == "" {
		return ErrNoName
	}
	if _, ok := existing[strings.ToLower(name)]; ok {
		return ErrDuplicateName
	}
	return nil
}

// ValidatePasswordRepeat returns ErrPasswordNoMatch unless both values are equal.
func ValidatePasswordRepeat(password, repeat string) error {
	if password != repeat {
		return ErrPasswordNoMatch
	}
	return nil
}

// LowerNames builds the case-insensitive name index used by ValidateName.
func LowerNames(names []string) map[string]struct{} {
	index := make(map[string]struct{}, len(names))
	for _, name := range names {
		index[strings.ToLower(name)] = struct{}{}
	}
	return index
}
