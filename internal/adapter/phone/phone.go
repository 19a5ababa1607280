package phone

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidNumber is returned when a number has too few or too many digits.
var ErrInvalidNumber = errors.New("invalid phone number")

// Options configures the digit ranges used for normalisation.
type Options struct {
	CountryCode    string
	LocalMinDigits int
	LocalMaxDigits int
	MinDigits      int
	MaxDigits      int
	ChatIDSuffix   string
}

// DefaultOptions matches Brazilian numbering: 10-11 digit local numbers get
// the 55 prefix and full numbers must have 12-15 digits.
func DefaultOptions() Options {
	return Options{
		CountryCode:    "55",
		LocalMinDigits: 10,
		LocalMaxDigits: 11,
		MinDigits:      12,
		MaxDigits:      15,
		ChatIDSuffix:   "@s.whatsapp.net",
	}
}

// Normalizer maps free-form phone numbers onto transport chat addresses.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Digits strips everything but digits and prefixes the country code when
// the digit count indicates a bare local number. Only the count decides: an
// 11 digit number starting with the country code is a local number whose
// area code matches it, and it is prefixed like any other.
func (n *Normalizer) Digits(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) >= n.opts.LocalMinDigits && len(digits) <= n.opts.LocalMaxDigits {
		digits = n.opts.CountryCode + digits
	}
	if len(digits) < n.opts.MinDigits || len(digits) > n.opts.MaxDigits {
		return "", fmt.Errorf("%w: %d digits", ErrInvalidNumber, len(digits))
	}
	return digits, nil
}

// ChatID returns the transport address for raw.
func (n *Normalizer) ChatID(raw string) (string, error) {
	digits, err := n.Digits(raw)
	if err != nil {
		return "", err
	}
	return digits + n.opts.ChatIDSuffix, nil
}
