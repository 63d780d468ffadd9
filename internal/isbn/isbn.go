// Package isbn normalizes raw ISBN input and manages the persisted list of
// ISBNs waiting to be resolved.
package isbn

import (
	"fmt"
	"regexp"

	"github.com/lepinkainen/bookshelf/internal/errors"
)

// Length is the number of digits in an accepted ISBN.
const Length = 13

var nonDigits = regexp.MustCompile(`\D`)

// Digits strips every non-digit character from raw.
func Digits(raw string) string {
	return nonDigits.ReplaceAllString(raw, "")
}

// Sanitize returns the 13-digit form of raw. Hyphens, spaces and any other
// non-digit characters are dropped first. The checksum digit is not verified.
func Sanitize(raw string) (string, error) {
	digits := Digits(raw)
	if len(digits) != Length {
		return "", errors.Validation("sanitize ISBN", raw,
			fmt.Errorf("must contain exactly %d digits, got %d", Length, len(digits)))
	}
	return digits, nil
}
