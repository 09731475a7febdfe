package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/wordsync/internal/api/handler"
	"github.com/mcoot/wordsync/internal/api/middleware"
	"github.com/mcoot/wordsync/internal/api/response"
	"github.com/mcoot/wordsync/internal/api/sse"
	"github.com/mcoot/wordsync/internal/progress"
)

// Default request-scoped waits
const (
	DefaultLoadTimeout = 10 * time.Second
	DefaultSyncTimeout = 10 * time.Second
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger     *slog.Logger
	Engine     *progress.Engine
	HubManager *sse.HubManager
	// LoadTimeout bounds how long sign-in waits for the first snapshot
	LoadTimeout time.Duration
	// SyncTimeout bounds ?sync=true waits and flushes
	SyncTimeout time.Duration
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.LoadTimeout == 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}
	if cfg.SyncTimeout == 0 {
		cfg.SyncTimeout = DefaultSyncTimeout
	}

	r := mux.NewRouter()

	// Create handlers
	sessionHandler := handler.NewSessionHandler(cfg.Engine, cfg.LoadTimeout)
	progressHandler := handler.NewProgressHandler(cfg.Engine, cfg.SyncTimeout)
	eventsHandler := handler.NewEventsHandler(cfg.Engine, cfg.HubManager)

	// Create middleware
	identityMiddleware := middleware.Identity(cfg.Engine)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	api.HandleFunc("/health", healthHandler(cfg.Engine)).Methods(http.MethodGet)

	// Session routes (no identity required)
	api.HandleFunc("/session", sessionHandler.Start).Methods(http.MethodPost)
	api.HandleFunc("/session", sessionHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/session", sessionHandler.End).Methods(http.MethodDelete)

	// Progress routes (signed-in player only)
	prog := api.PathPrefix("/progress").Subrouter()
	prog.Use(identityMiddleware)
	prog.HandleFunc("", progressHandler.Get).Methods(http.MethodGet)
	prog.HandleFunc("/words", progressHandler.FindWord).Methods(http.MethodPost)
	prog.HandleFunc("/bonus", progressHandler.FindBonusWord).Methods(http.MethodPost)
	prog.HandleFunc("/levels/complete", progressHandler.CompleteLevel).Methods(http.MethodPost)
	prog.HandleFunc("/hints", progressHandler.UseHint).Methods(http.MethodPost)
	prog.HandleFunc("/reveals", progressHandler.UseReveal).Methods(http.MethodPost)
	prog.HandleFunc("/spend", progressHandler.Spend).Methods(http.MethodPost)
	prog.HandleFunc("/units/{unit}", progressHandler.ResetUnit).Methods(http.MethodDelete)
	prog.HandleFunc("/counters/{name}", progressHandler.SetCounter).Methods(http.MethodPut)
	prog.HandleFunc("/failures", progressHandler.RecordFailure).Methods(http.MethodPost)
	prog.HandleFunc("/failures", progressHandler.ResetFailures).Methods(http.MethodDelete)
	prog.HandleFunc("/flush", progressHandler.Flush).Methods(http.MethodPost)

	// Event stream (signed-in player only)
	events := api.PathPrefix("/events").Subrouter()
	events.Use(identityMiddleware)
	events.HandleFunc("", eventsHandler.Stream).Methods(http.MethodGet)

	return r
}

func healthHandler(engine *progress.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, response.Health{
			Status:   "ok",
			PlayerID: string(engine.Identity()),
		})
	}
}
