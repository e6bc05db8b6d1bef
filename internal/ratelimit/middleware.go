// Package ratelimit throttles mutating endpoints with a Redis-backed limiter.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/backend-warung/internal/common"
)

// New builds a limiter allowing max requests per window, backed by Redis.
func New(client *redis.Client, window time.Duration, max int64) (*limiter.Limiter, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "ratelimit",
	})
	if err != nil {
		return nil, fmt.Errorf("init limiter store: %w", err)
	}
	return limiter.New(store, limiter.Rate{Period: window, Limit: max}), nil
}

// KeyFunc derives the limit key for a request.
type KeyFunc func(*http.Request) string

// ActorOrIPKey keys on the actor id when present, the remote address
// otherwise.
func ActorOrIPKey(r *http.Request) string {
	if actor, ok := common.Actor(r.Context()); ok {
		return "actor:" + actor
	}
	return "ip:" + r.RemoteAddr
}

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Limiter *limiter.Limiter
	Key     KeyFunc
	OnError func(error)
}

// Middleware implements chi middleware. Limiter errors fail open.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := ActorOrIPKey(r)
		if h.Key != nil {
			key = h.Key(r)
		}
		lctx, err := h.Limiter.Get(r.Context(), key)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retryAfter := lctx.Reset - time.Now().Unix()
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			common.JSONError(w, http.StatusTooManyRequests, common.CodeBadRequest, "rate limit exceeded", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
