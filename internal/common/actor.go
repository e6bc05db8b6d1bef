package common

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const actorIDKey ctxKey = "engine/actor-id"

// ActorHeader names the request header carrying the caller identity. Every
// engine mutation is scoped to an explicit actor instead of a hardcoded
// default user.
const ActorHeader = "X-Actor-Id"

// WithActor stores the acting user identifier on the provided context.
func WithActor(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actorIDKey, id)
}

// Actor extracts the acting user identifier from the context if present.
func Actor(ctx context.Context) (string, bool) {
	v := ctx.Value(actorIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// RequireActor rejects requests without an actor identity. Mounted on every
// mutating route group.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			JSONError(w, http.StatusBadRequest, CodeBadRequest, "missing "+ActorHeader+" header", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}
