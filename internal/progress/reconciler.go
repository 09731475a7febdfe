package progress

import (
	"log/slog"

	"github.com/mcoot/wordsync/internal/model"
)

// Reconciler folds remote change notifications into local progress
type Reconciler struct {
	logger *slog.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(logger *slog.Logger) *Reconciler {
	return &Reconciler{
		logger: logger.With(slog.String("component", "reconciler")),
	}
}

// Reconcile decides what a notification does to local state. It returns an
// empty event type when the notification must be ignored. queued holds
// counter values written locally but not yet flushed; they win over the
// notification.
func (r *Reconciler) Reconcile(gate *Gate, id model.PlayerID, local *model.Progress, change model.Change, queued map[model.Field]int64) (*model.Progress, model.EventType) {
	doc := change.Document
	if doc == nil {
		r.logger.Warn("change without document", slog.String("player_id", string(id)))
		return nil, ""
	}
	if doc.PlayerID != id {
		r.logger.Debug("dropping change for another identity",
			slog.String("player_id", string(id)),
			slog.String("document_player_id", string(doc.PlayerID)))
		return nil, ""
	}
	if change.Metadata.PendingWrite && gate.State() == Steady {
		return nil, ""
	}

	incoming, err := doc.ToProgress()
	if err != nil {
		r.logger.Warn("ignoring malformed document",
			slog.String("player_id", string(id)),
			slog.String("write_id", change.Metadata.WriteID),
			slog.String("error", err.Error()))
		return nil, ""
	}

	switch gate.Observe(incoming.ProgressionMarker) {
	case Bootstrap:
		r.logger.Info("progress loaded",
			slog.String("player_id", string(id)),
			slog.Int("progression_marker", incoming.ProgressionMarker))
		return incoming, model.EventProgressLoaded
	case Advance:
		r.logger.Info("progression advanced",
			slog.String("player_id", string(id)),
			slog.Int("progression_marker", incoming.ProgressionMarker))
		return incoming, model.EventProgressionAdvanced
	default:
		merged := MergeProgress(local, incoming)
		overlayCounters(merged, queued)
		return merged, model.EventProgressRefreshed
	}
}

// MergeProgress takes scalars from incoming and unions every token set with
// local. Counters only known locally are kept. The marker never moves back:
// an incoming marker behind local belongs to a write issued before a level
// completion that has not round-tripped yet.
func MergeProgress(local, incoming *model.Progress) *model.Progress {
	out := incoming.Clone()
	if local == nil {
		return out
	}
	out.ProgressionMarker = max(out.ProgressionMarker, local.ProgressionMarker)
	for unit, tokens := range local.FoundWords {
		out.FoundWords[unit] = model.Union(out.FoundWords[unit], tokens)
	}
	out.BonusTokens = model.Union(out.BonusTokens, local.BonusTokens)
	for name, v := range local.Counters {
		if _, ok := out.Counters[name]; !ok {
			out.Counters[name] = v
		}
	}
	return out
}

func overlayCounters(p *model.Progress, queued map[model.Field]int64) {
	for field, v := range queued {
		if name, ok := field.Counter(); ok {
			p.Counters[name] = v
		}
	}
}
