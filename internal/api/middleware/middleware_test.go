package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcoot/wordsync/internal/model"
	"github.com/mcoot/wordsync/internal/testutil"
)

type fixedIdentity model.PlayerID

func (f fixedIdentity) Identity() model.PlayerID { return model.PlayerID(f) }

func echoPlayer() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(MustGetPlayerID(r.Context())))
	})
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		name    string
		current string
		header  string
		query   string
		status  int
		body    string
	}{
		{name: "signed in, no claim", current: "alice", status: http.StatusOK, body: "alice"},
		{name: "matching header", current: "alice", header: "alice", status: http.StatusOK, body: "alice"},
		{name: "matching query", current: "alice", query: "alice", status: http.StatusOK, body: "alice"},
		{name: "mismatched header", current: "alice", header: "bob", status: http.StatusConflict},
		{name: "signed out", current: "", header: "alice", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Identity(fixedIdentity(tt.current))(echoPlayer())
			target := "/progress"
			if tt.query != "" {
				target += "?player_id=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set(PlayerIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestMustGetPlayerIDPanicsWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Panics(t, func() { MustGetPlayerID(req.Context()) })
	assert.Empty(t, GetPlayerID(req.Context()))
}

func TestRecovery(t *testing.T) {
	h := Recovery(testutil.NopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestLoggingSetsRequestID(t *testing.T) {
	h := Logging(testutil.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
}
