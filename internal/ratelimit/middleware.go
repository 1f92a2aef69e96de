package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/loyalty-shop/internal/common"
)

// Config describes how to derive a rate limit key and thresholds. An empty
// key skips limiting for that request.
type Config struct {
	Key     func(*http.Request) string
	Window  time.Duration
	Max     int
	Message string
}

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// Middleware rejects over-limit requests with 429 and an {"error": ...} body.
// Limiter failures let the request through.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := h.Config.Key(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		d, err := h.Limiter.Allow(r.Context(), key, h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(h.Config.Max, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			headers.Set("Retry-After", strconv.Itoa(max(int(time.Until(d.ResetAt).Seconds()), 0)))
			msg := h.Config.Message
			if msg == "" {
				msg = "rate limit exceeded"
			}
			common.JSONError(w, http.StatusTooManyRequests, msg)
			return
		}

		next.ServeHTTP(w, r)
	})
}
