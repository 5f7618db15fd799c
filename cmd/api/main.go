package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/mathdash-backend/internal/database"
	"github.com/scythe504/mathdash-backend/internal/game"
	"github.com/scythe504/mathdash-backend/internal/highscore"
	"github.com/scythe504/mathdash-backend/internal/mathgen"
	"github.com/scythe504/mathdash-backend/internal/server"
	"github.com/scythe504/mathdash-backend/internal/websockets"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	store := highscore.NewRepo(db.Pool())

	registry := game.NewRegistry()
	scheduler := game.NewScheduler(clockwork.NewRealClock())
	gateway := websockets.NewGateway()
	coordinator := game.NewService(registry, mathgen.New(), scheduler, gateway)
	gateway.Bind(coordinator)

	srv := server.NewServer(db, store, registry, gateway)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
