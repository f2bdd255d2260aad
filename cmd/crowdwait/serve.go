package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/nicktill/crowdwait/pkg/config"
	"github.com/nicktill/crowdwait/pkg/server"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 30 * time.Second
)

// ServeCommand runs the refresh scheduler and the HTTP API.
type ServeCommand struct {
	globals *GlobalFlags
}

// Execute implements goflags.Commander
func (c *ServeCommand) Execute(args []string) error {
	log.Println("🚀 Starting crowdwait server...")

	app, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer closeApp(app)
	cfg := app.Config

	log.Printf("⚙️  Configuration: backend=%s data=%s log=%s refresh every %v",
		cfg.Storage.Backend, cfg.Storage.DataDir, cfg.Log.Path, cfg.Interval())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Serve the last computed estimates until the first refresh lands.
	if err := app.Refresher.Rebuild(ctx); err != nil {
		log.Printf("⚠️  Could not restore estimates from storage: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.Hub.Run(ctx)
	}()
	log.Println("📡 WebSocket hub started")

	wg.Add(1)
	go server.RunScheduler(ctx, app.Refresher, server.DefaultSchedule(cfg.Interval()), &wg)

	stopGC := make(chan bool)
	wg.Add(1)
	go server.RunBadgerGC(app.Store, stopGC, &wg)

	router := mux.NewRouter()
	server.SetupRoutes(router, app)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.LoggingHandler(os.Stdout, router),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("🌐 Server starting on http://localhost:%s", cfg.Server.Port)
		log.Println("📡 API endpoints:")
		log.Println("   GET  /v1/estimates      - Today's wait-time estimates")
		log.Println("   POST /v1/refresh        - Run a refresh now")
		log.Println("   GET  /v1/ws             - Estimate updates over websocket")
		log.Println("   GET  /v1/export         - Backup (json/csv)")
		log.Println("   GET  /v1/health         - Health and last refresh")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		log.Println("🛑 Shutdown signal received...")
	case runErr = <-serveErr:
		log.Printf("❌ Server failed: %v", runErr)
	}

	// Cancel first so the hub and scheduler return before wg.Wait.
	log.Println("⏸️  Stopping background tasks...")
	cancel()
	close(stopGC)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	log.Println("🔄 Gracefully shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown warning: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ All background tasks stopped cleanly")
	case <-time.After(config.ShutdownTimeout):
		log.Println("⚠️  Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("👋 crowdwait server exited")
	return runErr
}
