package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"go-scan-kiosk/internal/config"
	"go-scan-kiosk/internal/container"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize dependency injection container
	c, err := container.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Setup structured logging
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	// Create HTTP server for the local status surface
	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Run the capture loop; cancelling this context releases the camera
	sessionCtx, stopSession := context.WithCancel(context.Background())
	sessionDone := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"camera":    cfg.CameraURL,
			"endpoint":  cfg.ScanEndpointURL,
			"detection": cfg.DetectionEnabled(),
		}).Info("Starting scan session")
		sessionDone <- c.Session().Run(sessionCtx)
	}()

	// Start server in a goroutine
	go func() {
		logrus.WithFields(logrus.Fields{
			"address": cfg.ServerAddress(),
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sessionStopped := false
	select {
	case <-quit:
		logrus.Info("Shutting down...")
	case err := <-sessionDone:
		sessionStopped = true
		if err != nil {
			logrus.WithError(err).Error("Scan session failed")
		}
	}

	// Stop the capture loop first so the camera is released before the
	// status surface disappears
	stopSession()
	if !sessionStopped {
		select {
		case err := <-sessionDone:
			if err != nil {
				logrus.WithError(err).Error("Scan session exited with error")
			}
		case <-time.After(5 * time.Second):
			logrus.Warn("Scan session did not stop in time")
		}
	}

	// Attempt graceful shutdown of the HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("Server forced to shutdown")
	}

	logrus.Info("Kiosk exited")
}
