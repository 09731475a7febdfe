package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/wordsync/internal/api/middleware"
	"github.com/mcoot/wordsync/internal/api/response"
	"github.com/mcoot/wordsync/internal/api/sse"
	"github.com/mcoot/wordsync/internal/progress"
)

// SnapshotEvent names the event carrying current progress when a stream opens
const SnapshotEvent = "progress_snapshot"

// EventsHandler streams progress events over SSE
type EventsHandler struct {
	engine     *progress.Engine
	hubManager *sse.HubManager
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(engine *progress.Engine, hubManager *sse.HubManager) *EventsHandler {
	return &EventsHandler{
		engine:     engine,
		hubManager: hubManager,
	}
}

// Stream handles GET /api/v1/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())
	hub := h.hubManager.GetOrCreateHub(playerID)

	var initial []sse.Message
	if p, err := h.engine.Snapshot(); err == nil {
		if data, err := json.Marshal(response.ProgressFromModel(p)); err == nil {
			initial = append(initial, sse.Message{Event: SnapshotEvent, Data: string(data)})
		}
	}

	sse.ServeSSE(w, r, hub, playerID, initial...)
}
