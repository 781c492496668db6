// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/config"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/database"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/handler"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/identity"
	"github.com/Shivanand-hulikatti/hall-attendance/internal/service"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ── 1. Open the record store ──────────────────────────────────────────
	db, closeDB, err := database.OpenStore(ctx, cfg.StoreOptions())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer closeDB()
	log.Printf("✓ Record store ready (backend=%s)", cfg.StoreBackend)

	// ── 2. Wire up layers ────────────────────────────────────────────────
	svc := service.New(db, nil, nil)
	tokens := identity.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	router := handler.NewRouter(svc, tokens)

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("✓ Server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Block until SIGINT/SIGTERM or the server fails.
		<-gctx.Done()
		log.Println("shutting down server…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		closeDB()
		log.Fatalf("%v", err)
	}
	log.Println("server stopped")
}
