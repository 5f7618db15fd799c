package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Schema holds everything the server needs at boot. Kept as plain DDL so
// a fresh database comes up without a migration tool.
const Schema = `
CREATE TABLE IF NOT EXISTS highscores (
	id         BIGSERIAL PRIMARY KEY,
	game_type  TEXT NOT NULL,
	mode       TEXT NOT NULL,
	score      INT  NOT NULL,
	details    TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS highscores_leaderboard_idx
	ON highscores (game_type, mode, score DESC, created_at ASC);
`

// Service wraps the connection pool shared by everything that talks to
// Postgres.
type Service struct {
	pool *pgxpool.Pool
}

// New connects using the MATHDASH_DB_* environment variables and ensures
// the schema exists.
func New(ctx context.Context) (*Service, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getenv("MATHDASH_DB_USERNAME", "postgres"),
		getenv("MATHDASH_DB_PASSWORD", "postgres"),
		getenv("MATHDASH_DB_HOST", "localhost"),
		getenv("MATHDASH_DB_PORT", "5432"),
		getenv("MATHDASH_DB_DATABASE", "mathdash"),
		getenv("MATHDASH_DB_SSLMODE", "disable"),
	)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	log.Info().Str("database", getenv("MATHDASH_DB_DATABASE", "mathdash")).Msg("database connected")
	return &Service{pool: pool}, nil
}

func (s *Service) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Service) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Service) Close() {
	s.pool.Close()
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
