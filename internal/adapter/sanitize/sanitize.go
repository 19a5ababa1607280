package sanitize

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyContent is returned when nothing is left after sanitising.
var ErrEmptyContent = errors.New("message content is empty")

var tagPattern = regexp.MustCompile(`<[^>]*>?`)

// Content strips HTML tags and surrounding whitespace from a message body.
func Content(msg string) (string, error) {
	clean := strings.TrimSpace(tagPattern.ReplaceAllString(msg, ""))
	if clean == "" {
		return "", ErrEmptyContent
	}
	return clean, nil
}
