// Package canon normalizes user-entered tokens and composes storage keys.
package canon

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// KeySeparator joins the parts of a storage key
const KeySeparator = ":"

// Token canonicalizes a free-text token: surrounding whitespace is trimmed,
// inner whitespace collapsed, control characters dropped, letters uppercased
// and diacritics folded away. Token(Token(s)) == Token(s).
func Token(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)

	// Uppercase before folding: some uppercase forms decompose into a base
	// letter plus a combining mark, which the fold must see.
	s = cases.Upper(language.Und).String(s)

	// transform.Chain keeps state, so it is built per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}

	// Whitespace goes last so marks removed between words cannot leave a
	// double space behind
	return strings.Join(strings.Fields(s), " ")
}

// Tokens canonicalizes every token and drops the ones that end up empty
func Tokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if c := Token(t); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Equal reports whether two tokens canonicalize identically
func Equal(a, b string) bool {
	return Token(a) == Token(b)
}

// UnitKey returns the found-words key for a content unit
func UnitKey(marker int) string {
	return strconv.Itoa(marker)
}

// Unit normalizes a caller-supplied unit key
func Unit(s string) string {
	return strings.TrimSpace(s)
}

// Key joins non-empty parts into a storage key
func Key(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, KeySeparator)
}

// DocumentPath returns the collection path of a player's document
func DocumentPath(collection, id string) string {
	return collection + "/" + id
}
