// Package identity turns user-supplied names into filesystem-safe storage keys.
//
// A Token is the only key the stores accept, so every path or record lookup is
// forced through Sanitize. Two raw names that reduce to the same token share
// history and notes.
package identity

import (
	"errors"
	"strings"
)

// MaxLen is the maximum token length in characters.
const MaxLen = 50

// ErrInvalid is returned when a raw name is empty after sanitization.
var ErrInvalid = errors.New("invalid username")

// Token is a sanitized identity. The zero value is invalid.
type Token string

func (t Token) String() string { return string(t) }

// Valid reports whether t could have been produced by Sanitize.
func (t Token) Valid() bool { return t != "" }

const forbidden = `\/*?:"<>|`

// Sanitize strips forbidden filesystem characters, truncates to MaxLen
// characters and trims surrounding whitespace.
func Sanitize(raw string) (Token, error) {
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbidden, r) {
			return -1
		}
		return r
	}, raw)

	if runes := []rune(stripped); len(runes) > MaxLen {
		stripped = string(runes[:MaxLen])
	}

	safe := strings.TrimSpace(stripped)
	if safe == "" {
		return "", ErrInvalid
	}
	return Token(safe), nil
}
