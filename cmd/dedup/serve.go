package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/handlers"
	"github.com/lessonbank/dedup/internal/jobs"
	"github.com/lessonbank/dedup/internal/middleware"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the review API and the periodic detection job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	log.Println("Starting duplicate review service...")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer database.Close()

	jwtAuth, err := newJWTAuth(a)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.NewHTTPHandler(a.db, a.registry).SetupRoutes(mux)
	handlers.NewAuthHandler(jwtAuth).SetupRoutes(mux)
	handlers.NewDuplicateHandler(a.duplicates, a.resolutions, a.catalog, a.dismissals).SetupRoutes(mux)
	handlers.NewSettingsHandler(a.settings).SetupRoutes(mux)

	corsMiddleware := middleware.NewCORSMiddleware(a.cfg.CORSAllowedOrigins...)
	handler := middleware.RequestIDMiddleware(middleware.RequestLogger(corsMiddleware.Wrap(jwtAuth.Wrap(mux))))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopJob := make(chan struct{})
	go jobs.NewDetectionJob(a.db, a.duplicates).Start(jobs.DefaultPollInterval, stopJob)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %d", a.cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	log.Printf("Health check endpoint: http://localhost:%d/health", a.cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", a.cfg.HTTPPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		close(stopJob)
		return fmt.Errorf("HTTP server error: %w", err)
	case <-sigChan:
		log.Println("Received shutdown signal, cleaning up...")
	}

	close(stopJob)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	log.Println("Shutdown complete")
	return nil
}

// newJWTAuth builds the reviewer auth middleware. Without ADMIN_PASSWORD every
// request is accepted and attributed to an anonymous reviewer.
func newJWTAuth(a *app) (*middleware.JWTAuthMiddleware, error) {
	authConfig := &middleware.JWTAuthConfig{
		Enabled:        a.cfg.AuthEnabled(),
		AdminUsername:  a.cfg.AdminUsername,
		JWTSecret:      a.cfg.JWTSecret,
		JWTExpiryHours: a.cfg.JWTExpiryHours,
		SkipPaths:      []string{"/health", "/metrics", "/auth/login"},
	}

	if !authConfig.Enabled {
		log.Println("Warning: ADMIN_PASSWORD is not set, reviewer authentication is disabled")
		return middleware.NewJWTAuthMiddleware(authConfig), nil
	}

	passwordHash, err := middleware.HashPassword(a.cfg.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}
	authConfig.AdminPasswordHash = passwordHash
	log.Printf("JWT authentication enabled for user: %s", a.cfg.AdminUsername)
	return middleware.NewJWTAuthMiddleware(authConfig), nil
}
