package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/wordsync/internal/api/request"
	"github.com/mcoot/wordsync/internal/api/response"
	"github.com/mcoot/wordsync/internal/model"
	"github.com/mcoot/wordsync/internal/progress"
)

// SessionHandler handles sign-in and sign-out
type SessionHandler struct {
	engine      *progress.Engine
	loadTimeout time.Duration
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(engine *progress.Engine, loadTimeout time.Duration) *SessionHandler {
	return &SessionHandler{
		engine:      engine,
		loadTimeout: loadTimeout,
	}
}

// Start handles POST /api/v1/session. It returns once the first remote
// snapshot has loaded.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req request.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	id := model.PlayerID(strings.TrimSpace(req.PlayerID))
	if id == "" {
		WriteError(w, NewInvalidRequestError("player_id is required"))
		return
	}

	if err := h.engine.SetIdentity(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.loadTimeout)
	defer cancel()
	if err := h.engine.AwaitLoaded(ctx); err != nil {
		WriteError(w, err)
		return
	}

	p, err := h.engine.Snapshot()
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := response.ProgressFromModel(p)
	response.JSON(w, http.StatusOK, response.Session{PlayerID: string(id), Progress: &resp})
}

// Get handles GET /api/v1/session. Progress is omitted until it has loaded.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := h.engine.Identity()
	if id == "" {
		WriteError(w, model.ErrNoIdentity)
		return
	}

	session := response.Session{PlayerID: string(id)}
	p, err := h.engine.Snapshot()
	switch {
	case err == nil:
		resp := response.ProgressFromModel(p)
		session.Progress = &resp
	case !errors.Is(err, model.ErrProgressNotLoaded):
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, session)
}

// End handles DELETE /api/v1/session
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.SignOut(r.Context()); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}
