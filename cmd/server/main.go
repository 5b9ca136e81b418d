package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/brownjh18/SafeTalk-sub000/internal/adapters/http"
	ws "github.com/brownjh18/SafeTalk-sub000/internal/adapters/signal"
	"github.com/brownjh18/SafeTalk-sub000/internal/app"
	"github.com/brownjh18/SafeTalk-sub000/internal/config"
	"github.com/brownjh18/SafeTalk-sub000/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}()

	locks := app.NewKeyedLocks()
	retries := app.RetryPolicy{Attempts: cfg.StoreRetries, Backoff: cfg.RetryBackoff}
	resolver := app.StoreResolver{Store: st}

	presence := app.NewBroker(st, locks, resolver, cfg.SendTimeout, retries)
	lifecycle := &app.Lifecycle{Store: st, Locks: locks, Presence: presence, Retries: retries}
	admission := &app.Admission{Store: st, Locks: locks, Presence: presence, Retries: retries}

	hub := ws.NewHub()
	relay := &app.Relay{Store: st, Locks: locks, Publisher: hub, Retries: retries}

	limiter := ws.NewJoinRateLimiter(5, time.Minute)
	ctrl := ws.NewController(presence, relay, hub, limiter)

	h := &router.Handlers{
		Store:     st,
		Lifecycle: lifecycle,
		Admission: admission,
		Relay:     relay,
		Presence:  presence,
	}

	r := router.SetupRouter(ctx, cfg, h, ctrl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("SafeTalk server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
