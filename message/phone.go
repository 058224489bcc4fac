package message

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidPhone = errors.New("enter a valid 10-digit mobile number")

var validate = validator.New()

// NormalizePhone strips everything but digits and requires exactly ten.
func NormalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, raw)

	if err := validate.Var(digits, "required,len=10,numeric"); err != nil {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// HasPhone reports whether number is already a usable ten-digit number.
func HasPhone(number string) bool {
	n, err := NormalizePhone(number)
	return err == nil && n == number
}
