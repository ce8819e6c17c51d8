package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"music-bot-go/config"
	"music-bot-go/logcolors"
	"music-bot-go/middleware"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel) // Set to InfoLevel (change to DebugLevel for detailed logs)
}

func main() {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		log.Fatalf("%s Failed to start: %v", logcolors.LogServer, err)
	}

	router := mux.NewRouter()
	setupRoutes(router, app)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	})

	handler := c.Handler(middleware.LoggingMiddleware(router))

	server := &http.Server{
		Addr:    ":" + cfg.Telegram.ListenPort,
		Handler: handler,
	}

	go func() {
		log.Infof("%s Server listening on port %s", logcolors.LogServer, cfg.Telegram.ListenPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s Server failed: %v", logcolors.LogServer, err)
		}
	}()

	if err := app.messenger.InstallWebhook(ctx); err != nil {
		log.Errorf("%s Could not install the webhook: %v", logcolors.LogServer, err)
	}

	<-ctx.Done()
	log.Infof("%s Shutting down", logcolors.LogServer)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("%s Server shutdown: %v", logcolors.LogServer, err)
	}
	app.shutdown(shutdownCtx)

	log.Infof("%s Goodbye", logcolors.LogServer)
}
