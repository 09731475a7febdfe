package model

import (
	"maps"
	"time"
)

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Counter names tracked in Progress.Counters
const (
	CounterWordsFound          = "wordsFound"
	CounterBonusWordsFound     = "bonusWordsFound"
	CounterLevelsCompleted     = "levelsCompleted"
	CounterCurrentStreak       = "currentStreak"
	CounterHintsUsed           = "hintsUsed"
	CounterRevealsUsed         = "revealsUsed"
	CounterConsecutiveFailures = "consecutiveFailures"
)

// Progress is the local mirror of a player's persisted progress
type Progress struct {
	PlayerID          PlayerID            `json:"player_id"`
	ProgressionMarker int                 `json:"progression_marker"`
	Currency          int64               `json:"currency"`
	FoundWords        map[string]TokenSet `json:"found_words"` // unit key -> tokens
	BonusTokens       TokenSet            `json:"bonus_tokens"`
	Counters          map[string]int64    `json:"counters"`
	LastSeen          time.Time           `json:"last_seen"` // server assigned
}

// NewProgress returns an empty progress for a player at the given marker
func NewProgress(id PlayerID, marker int, currency int64) *Progress {
	return &Progress{
		PlayerID:          id,
		ProgressionMarker: marker,
		Currency:          currency,
		FoundWords:        make(map[string]TokenSet),
		BonusTokens:       NewTokenSet(),
		Counters:          make(map[string]int64),
	}
}

// Clone returns a deep copy
func (p *Progress) Clone() *Progress {
	if p == nil {
		return nil
	}
	c := *p
	c.FoundWords = make(map[string]TokenSet, len(p.FoundWords))
	for unit, tokens := range p.FoundWords {
		c.FoundWords[unit] = tokens.Clone()
	}
	c.BonusTokens = p.BonusTokens.Clone()
	c.Counters = maps.Clone(p.Counters)
	if c.Counters == nil {
		c.Counters = make(map[string]int64)
	}
	return &c
}

// HasWord reports whether token was already found in unit
func (p *Progress) HasWord(unit, token string) bool {
	return p.FoundWords[unit].Contains(token)
}

// AddWord records token as found in unit, returning false if it already was
func (p *Progress) AddWord(unit, token string) bool {
	set, ok := p.FoundWords[unit]
	if !ok {
		set = NewTokenSet()
		p.FoundWords[unit] = set
	}
	return set.Add(token)
}

// Counter returns a counter value, zero if never set
func (p *Progress) Counter(name string) int64 {
	return p.Counters[name]
}
