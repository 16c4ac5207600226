package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUnknownResult = errors.New("result must be win, lose or draw")

// Standing is one player's running tally.
type Standing struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

type Store interface {
	RecordResult(ctx context.Context, username, result string) error
	GetLeaderboard(ctx context.Context, limit int) ([]Standing, error)
}

// column maps a game result to the tally it increments.
func column(result string) (string, error) {
	switch result {
	case "win":
		return "wins", nil
	case "lose":
		return "losses", nil
	case "draw":
		return "draws", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownResult, result)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) EnsureTables(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS standings (
	username TEXT PRIMARY KEY,
	wins INTEGER NOT NULL DEFAULT 0,
	losses INTEGER NOT NULL DEFAULT 0,
	draws INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL DEFAULT now()
);
`)
	return err
}

func (p *PostgresStore) RecordResult(ctx context.Context, username, result string) error {
	col, err := column(result)
	if err != nil {
		return err
	}
	// col comes from a fixed set, never from the caller.
	query := fmt.Sprintf(`INSERT INTO standings (username, %[1]s) VALUES ($1, 1)
ON CONFLICT (username) DO UPDATE SET %[1]s = standings.%[1]s + 1, updated_at = now()`, col)
	if _, err := p.pool.Exec(ctx, query, username); err != nil {
		return fmt.Errorf("record %s for %s: %w", result, username, err)
	}
	return nil
}

func (p *PostgresStore) GetLeaderboard(ctx context.Context, limit int) ([]Standing, error) {
	rows, err := p.pool.Query(ctx, `
SELECT username, wins, losses, draws
FROM standings
ORDER BY wins DESC, losses ASC, username ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Standing
	for rows.Next() {
		var row Standing
		if err := rows.Scan(&row.Username, &row.Wins, &row.Losses, &row.Draws); err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

// MemoryStore keeps standings for the life of the process. It backs the
// server when no database is configured.
type MemoryStore struct {
	mu        sync.Mutex
	standings map[string]*Standing
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{standings: make(map[string]*Standing)}
}

func (m *MemoryStore) RecordResult(_ context.Context, username, result string) error {
	if _, err := column(result); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.standings[username]
	if !ok {
		s = &Standing{Username: username}
		m.standings[username] = s
	}
	switch result {
	case "win":
		s.Wins++
	case "lose":
		s.Losses++
	case "draw":
		s.Draws++
	}
	return nil
}

func (m *MemoryStore) GetLeaderboard(_ context.Context, limit int) ([]Standing, error) {
	m.mu.Lock()
	res := make([]Standing, 0, len(m.standings))
	for _, s := range m.standings {
		res = append(res, *s)
	}
	m.mu.Unlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].Wins != res[j].Wins {
			return res[i].Wins > res[j].Wins
		}
		if res[i].Losses != res[j].Losses {
			return res[i].Losses < res[j].Losses
		}
		return res[i].Username < res[j].Username
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
