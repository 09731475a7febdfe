package response

import (
	"time"

	"github.com/mcoot/wordsync/internal/model"
)

// Progress represents a player's local progress in API responses
type Progress struct {
	PlayerID          string              `json:"player_id"`
	ProgressionMarker int                 `json:"progression_marker"`
	Currency          int64               `json:"currency"`
	FoundWords        map[string][]string `json:"found_words"`
	BonusWords        []string            `json:"bonus_words"`
	Counters          map[string]int64    `json:"counters"`
	LastSeen          *time.Time          `json:"last_seen,omitempty"`
}

// ProgressFromModel converts a model.Progress to a response Progress
func ProgressFromModel(p *model.Progress) Progress {
	words := make(map[string][]string, len(p.FoundWords))
	for unit, tokens := range p.FoundWords {
		words[unit] = tokens.Sorted()
	}

	counters := make(map[string]int64, len(p.Counters))
	for name, v := range p.Counters {
		counters[name] = v
	}

	resp := Progress{
		PlayerID:          string(p.PlayerID),
		ProgressionMarker: p.ProgressionMarker,
		Currency:          p.Currency,
		FoundWords:        words,
		BonusWords:        p.BonusTokens.Sorted(),
		Counters:          counters,
	}
	if !p.LastSeen.IsZero() {
		lastSeen := p.LastSeen
		resp.LastSeen = &lastSeen
	}
	return resp
}

// Session is the response for session endpoints
type Session struct {
	PlayerID string    `json:"player_id"`
	Progress *Progress `json:"progress,omitempty"`
}

// Operation is the response for gameplay mutations. Synced is set when the
// caller asked to wait for the remote write; SyncError reports its failure.
type Operation struct {
	Progress  Progress `json:"progress"`
	Synced    bool     `json:"synced"`
	SyncError string   `json:"sync_error,omitempty"`
}

// Health is the response for the health endpoint
type Health struct {
	Status   string `json:"status"`
	PlayerID string `json:"player_id,omitempty"`
}
