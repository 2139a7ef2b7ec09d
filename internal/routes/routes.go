package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/CyberwizD/sensor-notifier/pkg/metrics"
)

// NextRunner reports when the cleanup job fires next.
type NextRunner interface {
	Next() time.Time
}

// NewRouter serves the health and metrics endpoints of the notifier.
func NewRouter(appName string, m *metrics.Metrics, cleanup NextRunner, started time.Time) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		meta := map[string]interface{}{
			"uptime_seconds": int(time.Since(started).Seconds()),
			"timestamp":      time.Now().UTC(),
		}
		if cleanup != nil {
			if next := cleanup.Next(); !next.IsZero() {
				meta["next_cleanup"] = next.UTC()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": appName + " healthy",
			"meta":    meta,
		})
	})
	mux.Handle("/metrics", m.Handler())
	return mux
}
