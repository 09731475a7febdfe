package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Progress:
		o.printProgress(v)
	case Session:
		o.printSession(v)
	case Operation:
		o.printOperation(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Progress response type (matches API)
type Progress struct {
	PlayerID          string              `json:"player_id"`
	ProgressionMarker int                 `json:"progression_marker"`
	Currency          int64               `json:"currency"`
	FoundWords        map[string][]string `json:"found_words"`
	BonusWords        []string            `json:"bonus_words"`
	Counters          map[string]int64    `json:"counters"`
	LastSeen          *time.Time          `json:"last_seen,omitempty"`
}

// Session response type
type Session struct {
	PlayerID string    `json:"player_id"`
	Progress *Progress `json:"progress,omitempty"`
}

// Operation response type
type Operation struct {
	Progress  Progress `json:"progress"`
	Synced    bool     `json:"synced"`
	SyncError string   `json:"sync_error,omitempty"`
}

// HealthResult response type
type HealthResult struct {
	Status   string `json:"status"`
	PlayerID string `json:"player_id,omitempty"`
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

func (o *Output) printProgress(p Progress) {
	o.printf("Player: %s\n", p.PlayerID)
	o.printf("Level: %d\n", p.ProgressionMarker)
	o.printf("Currency: %d\n", p.Currency)
	if p.LastSeen != nil {
		o.printf("Last seen: %s\n", p.LastSeen.Format(time.RFC3339))
	}

	if len(p.FoundWords) > 0 {
		o.printf("Found words:\n")
		for _, unit := range sortedKeys(p.FoundWords) {
			o.printf("  %s: %s\n", unit, strings.Join(p.FoundWords[unit], ", "))
		}
	}
	if len(p.BonusWords) > 0 {
		o.printf("Bonus words: %s\n", strings.Join(p.BonusWords, ", "))
	}
	if len(p.Counters) > 0 {
		o.printf("Counters:\n")
		for _, name := range sortedKeys(p.Counters) {
			o.printf("  %s: %d\n", name, p.Counters[name])
		}
	}
}

func (o *Output) printSession(s Session) {
	o.printf("Signed in as %s\n", s.PlayerID)
	if s.Progress != nil {
		o.printProgress(*s.Progress)
	} else {
		o.printf("Progress not loaded yet\n")
	}
}

func (o *Output) printOperation(op Operation) {
	switch {
	case op.Synced:
		o.printf("Saved\n")
	case op.SyncError != "":
		o.printf("Applied locally; remote write failed: %s\n", op.SyncError)
	default:
		o.printf("Applied locally\n")
	}
	o.printProgress(op.Progress)
}

func (o *Output) printHealthResult(h HealthResult) {
	o.printf("Status: %s\n", h.Status)
	if h.PlayerID != "" {
		o.printf("Signed in: %s\n", h.PlayerID)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
