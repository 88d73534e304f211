package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/synthgen/internal/api/response"
)

// Pinger is anything with a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler reports cache and, when configured, database
// connectivity. A nil db is reported as "disabled".
func NewHealthHandler(cache, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"cache":    "ok",
			"database": "disabled",
		}

		degraded := false
		if err := cache.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
			degraded = true
		}
		if db != nil {
			checks["database"] = "ok"
			if err := db.Ping(r.Context()); err != nil {
				checks["database"] = "degraded"
				degraded = true
			}
		}

		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
