package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jrong1271/scrum-planning-poker/internal/services"
)

// HandleMetrics returns WebSocket server metrics
func HandleMetrics(metrics *services.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(metrics.Snapshot())
	}
}

// HandleHealth returns server health status
func HandleHealth(metrics *services.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := metrics.Snapshot()

		status := http.StatusOK
		if snapshot.HealthStatus == "critical" {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":             snapshot.HealthStatus,
			"active_connections": snapshot.ActiveConnections,
			"active_rooms":       snapshot.ActiveRooms,
			"uptime_seconds":     snapshot.UptimeSeconds,
		})
	}
}
