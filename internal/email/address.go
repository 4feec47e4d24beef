package email

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// MaxAddressLength is the longest address we store.
const MaxAddressLength = 255

var (
	// ErrInvalidEmail indicates an email address is not valid.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrEmptyEmail indicates no email address was provided at all.
	ErrEmptyEmail = errors.New("email address is required")
)

// Address is how rentals represents email addresses.
type Address string

// ParseAddress parses the given string and checks if it's shaped like an email address.
// It returns an error if the input is not a valid email address.
// Note that this doesn't guarantee the email address actually exists, it only checks the format.
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Address(""), ErrEmptyEmail
	}

	if utf8.RuneCountInString(trimmed) > MaxAddressLength {
		return Address(""), ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return Address(""), ErrInvalidEmail
	}

	// mail.ParseAddress accepts addresses with names and comments:
	// "Alice <alice@example.com>(comment)".
	//
	// We only want to accept inputs that consist of the address part.
	if addr.Address != trimmed {
		return Address(""), ErrInvalidEmail
	}

	return Address(addr.Address), nil
}

// NormalizeAddress returns the canonical form of an address, the form
// in which addresses are stored and compared. Both the local part and
// the domain are lowercased.
func NormalizeAddress(a Address) Address {
	return Address(strings.ToLower(strings.TrimSpace(string(a))))
}

// ParseNormalizedAddress parses raw and returns it in its normalized form.
func ParseNormalizedAddress(raw string) (Address, error) {
	addr, err := ParseAddress(raw)
	if err != nil {
		return Address(""), err
	}

	return NormalizeAddress(addr), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	addr, err := ParseAddress(string(text))
	if err != nil {
		return err
	}

	*a = addr

	return nil
}
