package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Emitted once per subscription, when the first remote snapshot lands
	EventProgressLoaded EventType = "progress_loaded"
	// Remote change merged without a marker change
	EventProgressRefreshed EventType = "progress_refreshed"
	// The progression marker moved; the only event that should drive navigation
	EventProgressionAdvanced EventType = "progression_advanced"
	// Local optimistic mutation from a gameplay operation
	EventProgressMutated EventType = "progress_mutated"
	// Local state dropped after sign-out or identity change
	EventProgressCleared EventType = "progress_cleared"
)

// Event is a change notification carrying a snapshot of the local store
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	PlayerID  PlayerID  `json:"player_id"`
	Progress  *Progress `json:"progress,omitempty"` // nil for EventProgressCleared
}
