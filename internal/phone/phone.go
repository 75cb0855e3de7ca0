// Package phone normalizes guest phone numbers to E.164.
package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
)

var ErrInvalid = errors.New("invalid phone number")

// Normalize parses raw in the given default region (ISO 3166 alpha-2) and
// returns the E.164 form. Numbers already starting with + ignore region.
func Normalize(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalid)
	}
	num, err := libphonenumber.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalid, raw, err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q", ErrInvalid, raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
