package handlers

import (
	"context"
	"net/http"
	"time"
)

// Health reports liveness plus store readiness when App.Ready is set.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok", "time": a.now().UTC().Format(time.RFC3339)}
	if a.Ledger != nil {
		body["plans_version"] = a.Ledger.Catalog().Version()
	}
	if a.Ready == nil {
		a.json(w, http.StatusOK, body)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.Ready(ctx); err != nil {
		a.logger().Warn().Err(err).Msg("readiness check failed")
		body["status"] = "degraded"
		a.json(w, http.StatusServiceUnavailable, body)
		return
	}
	a.json(w, http.StatusOK, body)
}
