package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/synthgen/internal/api/response"
	"github.com/kiranshivaraju/synthgen/internal/cache"
	"github.com/kiranshivaraju/synthgen/internal/logging"
)

// Counter is the part of the cache RateLimit needs.
type Counter interface {
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// Window allows Limit requests per Period.
type Window struct {
	Limit  int
	Period time.Duration
}

// RateLimit provides fixed-window rate limiting via Redis. Every window must
// admit a request for it to pass.
type RateLimit struct {
	counter Counter
	windows []Window
}

// NewRateLimit creates a new RateLimit middleware. Windows with a
// non-positive limit or period are ignored.
func NewRateLimit(c Counter, windows ...Window) *RateLimit {
	var ws []Window
	for _, w := range windows {
		if w.Limit > 0 && w.Period > 0 {
			ws = append(ws, w)
		}
	}
	return &RateLimit{counter: c, windows: ws}
}

// Limit keys callers by API key prefix when authenticated, otherwise by
// client IP. Counter errors fail open. The X-RateLimit headers describe the
// window closest to exhaustion.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := rateSubject(r)

		var tightest *Window
		remaining := int64(-1)
		for i, win := range rl.windows {
			count, err := rl.counter.IncrWithExpiry(r.Context(), cache.RateLimitKey(subject, win.Period), win.Period)
			if err != nil {
				logging.FromContext(r.Context()).Warn("rate limit counter unavailable, allowing request",
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(win.Limit) {
				retry := int(win.Period.Seconds())
				setLimitHeaders(w, win, 0)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				response.Error(w, http.StatusTooManyRequests,
					"RATE_LIMIT_EXCEEDED", "Too many requests", map[string]any{
						"limit":          win.Limit,
						"window_seconds": retry,
					})
				return
			}

			left := int64(win.Limit) - count
			if tightest == nil || left < remaining {
				tightest = &rl.windows[i]
				remaining = left
			}
		}

		if tightest != nil {
			setLimitHeaders(w, *tightest, remaining)
		}
		next.ServeHTTP(w, r)
	})
}

func setLimitHeaders(w http.ResponseWriter, win Window, remaining int64) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(win.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(win.Period).Unix(), 10))
}

func rateSubject(r *http.Request) string {
	if prefix, ok := GetKeyPrefix(r); ok {
		return "key:" + prefix
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
