package otp

import (
	"errors"
	"regexp"
	"strings"
)

// ErrAddressSuffixRequired is returned when an AddressValidator is built without a suffix.
var ErrAddressSuffixRequired = errors.New("otp: address suffix is required")

// AddressValidator accepts addresses whose domain ends with a fixed suffix.
//
// The local part is one or more of [A-Za-z0-9._-], followed by "@", any
// (possibly empty) run of [A-Za-z0-9.-] and the suffix anchored at the end.
// Matching is case-sensitive.
type AddressValidator struct {
	suffix string
	re     *regexp.Regexp
}

// NewAddressValidator compiles the allow-list pattern for suffix.
func NewAddressValidator(suffix string) (*AddressValidator, error) {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return nil, ErrAddressSuffixRequired
	}

	re, err := regexp.Compile(`^[A-Za-z0-9._-]+@[A-Za-z0-9.-]*` + regexp.QuoteMeta(suffix) + `$`)
	if err != nil {
		return nil, err
	}

	return &AddressValidator{suffix: suffix, re: re}, nil
}

// Validate reports whether address is acceptable for delivery.
func (v *AddressValidator) Validate(address string) bool {
	return v.re.MatchString(address)
}

// Suffix returns the required domain suffix.
func (v *AddressValidator) Suffix() string {
	return v.suffix
}
