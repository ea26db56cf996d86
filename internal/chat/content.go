package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	DefaultMaxContentLength = 2000
	DefaultSnippetLength    = 100
	truncationMarker        = "..."
)

// NormalizeContent returns the NFC form of content without surrounding
// whitespace, or an error if the result is empty or longer than maxLength
// runes.
func NormalizeContent(content string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxContentLength
	}
	normalized := strings.TrimSpace(norm.NFC.String(content))
	if normalized == "" {
		return "", ErrEmptyContent
	}
	if n := utf8.RuneCountInString(normalized); n > maxLength {
		return "", fmt.Errorf("%w: %d characters, limit is %d", ErrContentTooLong, n, maxLength)
	}
	return normalized, nil
}

// Snippet keeps the first length runes of content and appends a truncation
// marker when anything was cut.
func Snippet(content string, length int) string {
	if length <= 0 {
		length = DefaultSnippetLength
	}
	if utf8.RuneCountInString(content) <= length {
		return content
	}
	runes := []rune(content)
	return string(runes[:length]) + truncationMarker
}
