package middleware

import (
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/iho/coopledger/internal/domain"
)

// ActorIDHeader names the admin performing a change. Authentication happens
// upstream; the header is trusted as given.
const ActorIDHeader = "X-Actor-ID"

const anonymousActor = "anonymous"

// Actor stores the caller's identity in the request context so audited use
// cases can record who made a change.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(ActorIDHeader))
		if id == "" {
			id = anonymousActor
		}

		ctx := domain.ContextWithActor(r.Context(), domain.Actor{
			ID:        id,
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
			RequestID: chimiddleware.GetReqID(r.Context()),
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
