package model

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/mcoot/wordsync/internal/canon"
)

// Document is the remote shape of a player's progress, one per identity
type Document struct {
	PlayerID           PlayerID            `json:"playerId"`
	ProgressionMarker  int                 `json:"progressionMarker"`
	Currency           int64               `json:"currency"`
	PerLevelFoundWords map[string][]string `json:"perLevelFoundWords"`
	FoundBonusTokens   []string            `json:"foundBonusTokens"`
	Counters           map[string]int64    `json:"counters"`
	LastSeen           time.Time           `json:"lastSeenTimestamp"`
}

// Metadata describes where a change notification came from
type Metadata struct {
	// PendingWrite marks an optimistic echo of a local write the server has
	// not acknowledged yet
	PendingWrite bool
	// WriteID identifies the write that produced the change, empty for the
	// initial snapshot
	WriteID string
}

// Change is a single notification delivered by a document subscription
type Change struct {
	Document *Document
	Metadata Metadata
}

// DefaultDocument returns the baseline document created on first session
func DefaultDocument(id PlayerID, startMarker int, signupBonus int64) *Document {
	return &Document{
		PlayerID:           id,
		ProgressionMarker:  startMarker,
		Currency:           signupBonus,
		PerLevelFoundWords: make(map[string][]string),
		FoundBonusTokens:   []string{},
		Counters:           make(map[string]int64),
	}
}

// DocumentFromProgress converts local progress to its remote shape
func DocumentFromProgress(p *Progress) *Document {
	doc := &Document{
		PlayerID:           p.PlayerID,
		ProgressionMarker:  p.ProgressionMarker,
		Currency:           p.Currency,
		PerLevelFoundWords: make(map[string][]string, len(p.FoundWords)),
		FoundBonusTokens:   p.BonusTokens.Sorted(),
		Counters:           maps.Clone(p.Counters),
		LastSeen:           p.LastSeen,
	}
	for unit, tokens := range p.FoundWords {
		doc.PerLevelFoundWords[unit] = tokens.Sorted()
	}
	if doc.Counters == nil {
		doc.Counters = make(map[string]int64)
	}
	return doc
}

// Validate checks the invariants a decoded document must hold
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil document", ErrMalformedDocument)
	}
	if d.PlayerID == "" {
		return fmt.Errorf("%w: missing player id", ErrMalformedDocument)
	}
	if d.Currency < 0 {
		return fmt.Errorf("%w: negative currency %d", ErrMalformedDocument, d.Currency)
	}
	for name, v := range d.Counters {
		if v < 0 {
			return fmt.Errorf("%w: negative counter %s", ErrMalformedDocument, name)
		}
	}
	return nil
}

// ToProgress validates the document and converts it to local progress.
// Every token is canonicalized on the way in.
func (d *Document) ToProgress() (*Progress, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	p := NewProgress(d.PlayerID, d.ProgressionMarker, d.Currency)
	for unit, tokens := range d.PerLevelFoundWords {
		p.FoundWords[unit] = NewTokenSet(canon.Tokens(tokens)...)
	}
	p.BonusTokens = NewTokenSet(canon.Tokens(d.FoundBonusTokens)...)
	maps.Copy(p.Counters, d.Counters)
	p.LastSeen = d.LastSeen
	return p, nil
}

// Clone returns a deep copy
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.PerLevelFoundWords = make(map[string][]string, len(d.PerLevelFoundWords))
	for unit, tokens := range d.PerLevelFoundWords {
		c.PerLevelFoundWords[unit] = slices.Clone(tokens)
	}
	c.FoundBonusTokens = slices.Clone(d.FoundBonusTokens)
	c.Counters = maps.Clone(d.Counters)
	if c.Counters == nil {
		c.Counters = make(map[string]int64)
	}
	return &c
}
