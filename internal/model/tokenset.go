package model

import (
	"encoding/json"
	"slices"
)

// TokenSet is a set of canonical tokens
type TokenSet map[string]struct{}

// NewTokenSet creates a set holding the given tokens
func NewTokenSet(tokens ...string) TokenSet {
	s := make(TokenSet, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

// Add inserts a token, returning false if it was already present
func (s TokenSet) Add(token string) bool {
	if _, ok := s[token]; ok {
		return false
	}
	s[token] = struct{}{}
	return true
}

// Contains reports membership. Safe on a nil set.
func (s TokenSet) Contains(token string) bool {
	_, ok := s[token]
	return ok
}

// Clone returns a copy; a nil set clones to an empty set
func (s TokenSet) Clone() TokenSet {
	c := make(TokenSet, len(s))
	for t := range s {
		c[t] = struct{}{}
	}
	return c
}

// Sorted returns the tokens in ascending order
func (s TokenSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Union returns a new set holding every token of a and b
func Union(a, b TokenSet) TokenSet {
	out := make(TokenSet, len(a)+len(b))
	for t := range a {
		out[t] = struct{}{}
	}
	for t := range b {
		out[t] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array
func (s TokenSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of tokens
func (s *TokenSet) UnmarshalJSON(data []byte) error {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}
	*s = NewTokenSet(tokens...)
	return nil
}
