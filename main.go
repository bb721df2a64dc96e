package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cropguard-web/config"
	"cropguard-web/handlers"
	"cropguard-web/metrics"
	"cropguard-web/services"
	"cropguard-web/version"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const serviceName = "cropguard-web"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Set log level
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics.Register()

	info := version.Get(serviceName)
	sessions := services.NewSessionStore(cfg.SessionTTL, cfg.SessionSweepInterval)
	sessions.Start()

	api := services.NewAPIClient(cfg.APIBaseURL, cfg.APITimeout)
	router := handlers.NewRouter(cfg, api, sessions, info)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.WithFields(log.Fields{"addr": cfg.Addr(), "api": cfg.APIBaseURL, "version": info.Short()}).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sessions.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
