package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/prepdeck/backend/internal/config"
	"github.com/prepdeck/backend/internal/handler"
	"github.com/prepdeck/backend/internal/jobs"
	"github.com/prepdeck/backend/internal/service/ai"
	interviewService "github.com/prepdeck/backend/internal/service/interview"
	"github.com/prepdeck/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	st, err := store.Open(store.Config{
		Driver: cfg.Store.Driver,
		DSN:    cfg.Store.DSN,
	})
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	// Initialize the answer generator. A missing provider degrades to a
	// service that opens sessions but rejects submissions.
	var generator ai.Generator
	if cfg.AI.Enabled() {
		generator, err = ai.NewGenerator(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI provider %q: %v", cfg.AI.Provider, err)
			log.Println("continuing without answer generation")
			generator = nil
		} else {
			log.Printf("AI provider %q initialized successfully", cfg.AI.Provider)
		}
	} else {
		log.Printf("AI provider %q has no credentials, skipping answer generation", cfg.AI.Provider)
	}

	sessions := interviewService.NewService(st, generator, cfg.Interview)

	scheduler, err := jobs.NewScheduler(cfg.Jobs, st, sessions)
	if err != nil {
		log.Fatalf("failed to schedule background jobs: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := handler.NewRouter(st, sessions)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("PrepDeck backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
