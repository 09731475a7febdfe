package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/wordsync/internal/api/apierr"
	"github.com/mcoot/wordsync/internal/model"
)

type contextKey string

const playerContextKey contextKey = "player"

// PlayerIDHeader names the player a request acts for
const PlayerIDHeader = "X-Player-ID"

// IdentitySource reports the signed-in player
type IdentitySource interface {
	Identity() model.PlayerID
}

// Identity requires a signed-in player. A request naming a different player
// is rejected so a stale client cannot write into another player's progress.
func Identity(source IdentitySource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := source.Identity()
			if current == "" {
				apierr.WriteError(w, model.ErrNoIdentity)
				return
			}

			if claimed := extractPlayerID(r); claimed != "" && claimed != current {
				apierr.WriteError(w, apierr.NewIdentityMismatchError())
				return
			}

			ctx := context.WithValue(r.Context(), playerContextKey, current)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractPlayerID reads the claimed player from the header, falling back to
// the query string for EventSource clients that cannot set headers
func extractPlayerID(r *http.Request) model.PlayerID {
	if id := strings.TrimSpace(r.Header.Get(PlayerIDHeader)); id != "" {
		return model.PlayerID(id)
	}
	return model.PlayerID(strings.TrimSpace(r.URL.Query().Get("player_id")))
}

// GetPlayerID returns the signed-in player from the request context
func GetPlayerID(ctx context.Context) model.PlayerID {
	id, _ := ctx.Value(playerContextKey).(model.PlayerID)
	return id
}

// MustGetPlayerID returns the signed-in player or panics
func MustGetPlayerID(ctx context.Context) model.PlayerID {
	id := GetPlayerID(ctx)
	if id == "" {
		panic("no player in context - identity middleware not applied?")
	}
	return id
}
