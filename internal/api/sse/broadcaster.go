package sse

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mcoot/wordsync/internal/model"
)

// Broadcaster forwards progress events to the owning player's hub
type Broadcaster struct {
	hubManager *HubManager
	logger     *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hubManager *HubManager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubManager: hubManager,
		logger:     logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// Run publishes events until ctx is done or the stream closes
func (b *Broadcaster) Run(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			b.Publish(evt)
		case <-ctx.Done():
			return
		}
	}
}

// Publish sends one event to the player's streams. A cleared event is the
// last one a stream sees before its hub closes.
func (b *Broadcaster) Publish(evt model.Event) {
	hub := b.hubManager.GetHub(evt.PlayerID)
	if hub == nil {
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error("sse failed to encode event",
			slog.String("event", string(evt.Type)),
			slog.Any("error", err))
		return
	}
	hub.BroadcastEvent(string(evt.Type), string(data))

	if evt.Type == model.EventProgressCleared {
		b.hubManager.RemoveHub(evt.PlayerID)
	}
}
