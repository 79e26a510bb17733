// Command server runs the meme feed backend.
//
// Startup order: env file, config, logging, tracing, database, vote store,
// router, HTTP server. Shutdown drains in-flight requests, disposes the
// feed cache, closes the vote store, and flushes the trace exporter.
//
// @title           Meme Feed API
// @version         1.0
// @description     Cursor-paginated meme feed with per-user vote snapshots and a tip/like notification ledger.
// @BasePath        /api/v1
// @schemes         http https
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-meme-backend/docs"
	"github.com/tbourn/go-meme-backend/internal/config"
	httpapi "github.com/tbourn/go-meme-backend/internal/http"
	"github.com/tbourn/go-meme-backend/internal/observability"
	"github.com/tbourn/go-meme-backend/internal/repo"
	"github.com/tbourn/go-meme-backend/internal/sysutil"
	"github.com/tbourn/go-meme-backend/internal/votes"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	// Durable vote snapshots are optional; without a path they live in memory.
	var voteStore votes.Store
	if cfg.Vote.StorePath != "" {
		bs, err := votes.NewBoltStore(cfg.Vote.StorePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Vote.StorePath).Msg("open vote store failed")
		}
		defer bs.Close()
		voteStore = bs
	}

	r := gin.New()
	mgr := httpapi.RegisterRoutes(r, db, voteStore, cfg)
	defer mgr.Dispose()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
}
