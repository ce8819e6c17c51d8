package main

import (
	"net/http"

	"music-bot-go/config"
	"music-bot-go/middleware"

	"github.com/gorilla/mux"
)

// setupRoutes registers the HTTP surface. Only the webhook accepts writes
// from the outside; everything else is read-only operational tooling.
func setupRoutes(router *mux.Router, app *Application) {
	cfg := config.Get()

	secret := middleware.SecretTokenMiddleware(cfg.Telegram.WebhookSecret)
	router.Handle(cfg.Telegram.WebhookPath, secret(http.HandlerFunc(app.webhookHandler))).Methods("POST")

	router.HandleFunc("/health", app.healthHandler).Methods("GET")
	router.HandleFunc("/stats", app.statsHandler).Methods("GET")
	router.HandleFunc("/circuit-breaker", app.circuitBreakerHandler).Methods("GET")
	router.HandleFunc("/circuit-breaker/reset", app.circuitBreakerResetHandler).Methods("POST")

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		Respond(w).JSON(map[string]interface{}{
			"service": "music-bot-go",
			"endpoints": map[string]string{
				"POST " + cfg.Telegram.WebhookPath: "Telegram webhook (secret token required)",
				"GET /health":                      "Liveness and basic gauges",
				"GET /stats":                       "Counters snapshot",
				"GET /circuit-breaker":             "Search source breaker states",
				"POST /circuit-breaker/reset":      "Close all breakers",
			},
		})
	}).Methods("GET")
}
