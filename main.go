package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/juanfuturochile/appstore.koplugin/internal/api"
	"github.com/juanfuturochile/appstore.koplugin/internal/core"
	"github.com/juanfuturochile/appstore.koplugin/internal/jobs"
	"github.com/juanfuturochile/appstore.koplugin/internal/logging"
	"github.com/juanfuturochile/appstore.koplugin/internal/watcher"
)

var version = "dev"

func main() {
	logging.Setup(os.Getenv("APPSTORE_LOG_LEVEL"), os.Stderr)

	// Initialize the core application components
	app, err := core.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Fatal error during application setup")
	}
	defer app.Close()
	app.Version = version
	logging.Setup(app.Config().LogLevel, os.Stderr)

	go app.WsHub().Run()

	// Scheduled catalog refreshes go through the job manager.
	if scheduler := jobs.StartJobs(app); scheduler != nil {
		defer scheduler.Stop()
	}

	// Changes to installed artifacts invalidate their cached update checks.
	w := watcher.New(app.Engine().PluginsDir(), app.Engine().PatchesDir(), app.Engine(), watcher.DefaultDebounce)
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("File watcher disabled")
	} else {
		defer w.Stop()
	}

	// Setup the API server
	server := api.NewServer(app)
	addr := fmt.Sprintf(":%d", app.Config().Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}
	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Starting web server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Could not start server")
		}
	}()

	// Wait for an interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Create a context with a timeout to allow existing connections to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Attempt a graceful shutdown.
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting.")
}
