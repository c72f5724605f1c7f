package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jrong1271/scrum-planning-poker/internal/services"
)

// SetupRoutes builds the HTTP surface: the WebSocket endpoint plus health and
// metrics instrumentation.
func SetupRoutes(ws *WSHandler, metrics *services.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)

	r.Get("/ws", ws.HandleWebSocket)
	r.Get("/healthz", HandleHealth(metrics))
	r.Get("/metrics", HandleMetrics(metrics))

	return r
}
