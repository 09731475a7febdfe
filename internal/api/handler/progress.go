package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/wordsync/internal/api/request"
	"github.com/mcoot/wordsync/internal/api/response"
	"github.com/mcoot/wordsync/internal/progress"
)

// ProgressHandler handles gameplay operations for the signed-in player
type ProgressHandler struct {
	engine      *progress.Engine
	syncTimeout time.Duration
}

// NewProgressHandler creates a new progress handler. syncTimeout bounds how
// long a request with ?sync=true waits for its remote write.
func NewProgressHandler(engine *progress.Engine, syncTimeout time.Duration) *ProgressHandler {
	return &ProgressHandler{
		engine:      engine,
		syncTimeout: syncTimeout,
	}
}

// Get handles GET /api/v1/progress
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.Snapshot()
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.ProgressFromModel(p))
}

// FindWord handles POST /api/v1/progress/words
func (h *ProgressHandler) FindWord(w http.ResponseWriter, r *http.Request) {
	var req request.FindWordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	pending, err := h.engine.FindWord(req.Unit, req.Word)
	h.respond(w, r, pending, err)
}

// FindBonusWord handles POST /api/v1/progress/bonus
func (h *ProgressHandler) FindBonusWord(w http.ResponseWriter, r *http.Request) {
	var req request.FindBonusWordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	pending, err := h.engine.FindBonusWord(req.Word)
	h.respond(w, r, pending, err)
}

// CompleteLevel handles POST /api/v1/progress/levels/complete
func (h *ProgressHandler) CompleteLevel(w http.ResponseWriter, r *http.Request) {
	pending, err := h.engine.CompleteLevel()
	h.respond(w, r, pending, err)
}

// UseHint handles POST /api/v1/progress/hints
func (h *ProgressHandler) UseHint(w http.ResponseWriter, r *http.Request) {
	pending, err := h.engine.UseHint()
	h.respond(w, r, pending, err)
}

// UseReveal handles POST /api/v1/progress/reveals
func (h *ProgressHandler) UseReveal(w http.ResponseWriter, r *http.Request) {
	pending, err := h.engine.UseReveal()
	h.respond(w, r, pending, err)
}

// Spend handles POST /api/v1/progress/spend
func (h *ProgressHandler) Spend(w http.ResponseWriter, r *http.Request) {
	var req request.SpendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	pending, err := h.engine.Spend(req.Amount, req.Counter)
	h.respond(w, r, pending, err)
}

// ResetUnit handles DELETE /api/v1/progress/units/{unit}
func (h *ProgressHandler) ResetUnit(w http.ResponseWriter, r *http.Request) {
	pending, err := h.engine.ResetUnit(mux.Vars(r)["unit"])
	h.respond(w, r, pending, err)
}

// SetCounter handles PUT /api/v1/progress/counters/{name}
func (h *ProgressHandler) SetCounter(w http.ResponseWriter, r *http.Request) {
	var req request.SetCounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Value == nil {
		WriteError(w, NewInvalidRequestError("value is required"))
		return
	}

	h.respondQueued(w, h.engine.SetCounter(mux.Vars(r)["name"], *req.Value))
}

// RecordFailure handles POST /api/v1/progress/failures
func (h *ProgressHandler) RecordFailure(w http.ResponseWriter, r *http.Request) {
	h.respondQueued(w, h.engine.RecordFailure())
}

// ResetFailures handles DELETE /api/v1/progress/failures
func (h *ProgressHandler) ResetFailures(w http.ResponseWriter, r *http.Request) {
	h.respondQueued(w, h.engine.ResetFailures())
}

// Flush handles POST /api/v1/progress/flush. It writes queued counters and
// waits for every in-flight batch.
func (h *ProgressHandler) Flush(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.syncTimeout)
	defer cancel()

	if err := h.engine.Flush(ctx); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.engine.Drain(ctx); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// respond reports a batch mutation. The local change has already applied;
// with ?sync=true the response also waits for the remote write.
func (h *ProgressHandler) respond(w http.ResponseWriter, r *http.Request, pending *progress.Pending, err error) {
	if err != nil {
		WriteError(w, err)
		return
	}

	var resp response.Operation
	status := http.StatusAccepted
	if wantSync(r) {
		ctx, cancel := context.WithTimeout(r.Context(), h.syncTimeout)
		defer cancel()
		if err := pending.Wait(ctx); err != nil {
			resp.SyncError = err.Error()
		} else {
			resp.Synced = true
			status = http.StatusOK
		}
	}

	p, err := h.engine.Snapshot()
	if err != nil {
		WriteError(w, err)
		return
	}
	resp.Progress = response.ProgressFromModel(p)
	response.JSON(w, status, resp)
}

// respondQueued reports a counter change left to the write coalescer
func (h *ProgressHandler) respondQueued(w http.ResponseWriter, err error) {
	if err != nil {
		WriteError(w, err)
		return
	}

	p, err := h.engine.Snapshot()
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, response.Operation{Progress: response.ProgressFromModel(p)})
}

func wantSync(r *http.Request) bool {
	sync, _ := strconv.ParseBool(r.URL.Query().Get("sync"))
	return sync
}
