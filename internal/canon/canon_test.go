package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToken(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase", input: "cat", expected: "CAT"},
		{name: "surrounding whitespace", input: "  dog \t", expected: "DOG"},
		{name: "inner whitespace collapsed", input: "ice   cream", expected: "ICE CREAM"},
		{name: "acute accent", input: "café", expected: "CAFE"},
		{name: "already canonical", input: "CAFE", expected: "CAFE"},
		{name: "uppercase accent", input: "ÉCOLE", expected: "ECOLE"},
		{name: "decomposed input", input: "café", expected: "CAFE"},
		{name: "tilde", input: "piñata", expected: "PINATA"},
		{name: "umlaut", input: "Über", expected: "UBER"},
		{name: "control character", input: "ra\u0007t", expected: "RAT"},
		{name: "empty", input: "", expected: ""},
		{name: "only whitespace", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Token(tt.input))
		})
	}
}

func TestTokenIsIdempotent(t *testing.T) {
	inputs := []string{
		"café", "CAFE", "  Crème Brûlée ", "naïve", "straße", "ǰ", "ŉ",
		"Ἀθῆναι", "İstanbul", "ﬁsh", "x́̂", "résumé", "Ångström",
		"", " ", " word ",
	}
	for _, in := range inputs {
		once := Token(in)
		assert.Equal(t, once, Token(once), "input %q", in)
	}
}

func TestCafeMatchesCAFE(t *testing.T) {
	assert.Equal(t, Token("café"), Token("CAFE"))
	assert.True(t, Equal("café", "CAFE"))
	assert.False(t, Equal("cafe", "cafes"))
}

func TestTokensDropsEmpty(t *testing.T) {
	assert.Equal(t, []string{"CAT", "DOG"}, Tokens([]string{"cat", "  ", "Dog", ""}))
	assert.Empty(t, Tokens(nil))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "7", UnitKey(7))
	assert.Equal(t, "2", Unit(" 2 "))
	assert.Equal(t, "wordsync:player:abc", Key("wordsync", "player", "abc"))
	assert.Equal(t, "wordsync:abc", Key("wordsync", "", "abc"))
	assert.Equal(t, "players/abc", DocumentPath("players", "abc"))
}

func TestTokenIsIdempotentAroundRemovedMarks(t *testing.T) {
	for _, in := range []string{"a ́ b", "a \u0007 b", "x​ y"} {
		once := Token(in)
		assert.Equal(t, once, Token(once), "input %q", in)
	}
}
