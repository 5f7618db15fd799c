package highscore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	GameTypeRounds = "rounds"
	GameTypeTime   = "time"

	// TopN is how many entries survive per (gameType, mode) leaderboard.
	TopN = 10
)

// ValidGameType reports whether a client-supplied game type names one of
// the two leaderboards.
func ValidGameType(gameType string) bool {
	return gameType == GameTypeRounds || gameType == GameTypeTime
}

type Entry struct {
	GameType string    `json:"gameType,omitempty"`
	Score    int       `json:"score"`
	Mode     string    `json:"mode"`
	Details  string    `json:"details"`
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
}

// Store is the append/sort/truncate leaderboard log. Save keeps only the
// top entries per (gameType, mode); Top reads them back best-first.
type Store interface {
	Save(ctx context.Context, entry Entry) error
	Top(ctx context.Context, gameType, mode string, n int) ([]Entry, error)
	All(ctx context.Context) (map[string][]Entry, error)
}

// Repo is the pgx-backed Store.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Save(ctx context.Context, entry Entry) error {
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin highscore save: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO highscores (game_type, mode, score, details, name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.GameType, entry.Mode, entry.Score, entry.Details, entry.Name, entry.Date,
	)
	if err != nil {
		return fmt.Errorf("insert highscore: %w", err)
	}

	// Truncate the leaderboard back to the top N for this bucket.
	_, err = tx.Exec(ctx,
		`DELETE FROM highscores
		 WHERE id IN (
			SELECT id FROM highscores
			WHERE game_type = $1 AND mode = $2
			ORDER BY score DESC, created_at ASC
			OFFSET $3
		 )`,
		entry.GameType, entry.Mode, TopN,
	)
	if err != nil {
		return fmt.Errorf("truncate highscores: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *Repo) Top(ctx context.Context, gameType, mode string, n int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT game_type, mode, score, details, name, created_at
		 FROM highscores
		 WHERE game_type = $1 AND mode = $2
		 ORDER BY score DESC, created_at ASC
		 LIMIT $3`,
		gameType, mode, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query highscores: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// All returns every leaderboard keyed by game type, each sorted
// best-first. Both keys are always present so clients see the same
// shape the original JSON file had.
func (r *Repo) All(ctx context.Context) (map[string][]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT game_type, mode, score, details, name, created_at
		 FROM highscores
		 ORDER BY score DESC, created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query highscores: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	out := map[string][]Entry{
		GameTypeRounds: {},
		GameTypeTime:   {},
	}
	for _, e := range entries {
		out[e.GameType] = append(out[e.GameType], e)
	}
	return out, nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.GameType, &e.Mode, &e.Score, &e.Details, &e.Name, &e.Date); err != nil {
			return nil, fmt.Errorf("scan highscore: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
