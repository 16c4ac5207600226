package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gomoku/backend/internal/game"
)

const (
	keyPrefix   = "gomoku:move"
	noMoveValue = "none"
	opTimeout   = 200 * time.Millisecond
)

// InitRedis parses url and checks the server answers.
func InitRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error pinging Redis: %w", err)
	}
	return client, nil
}

// MoveCache memoises a deterministic searcher in Redis. The namespace must
// change whenever anything that affects the answer does (depth, weights).
// Any Redis failure falls through to the wrapped searcher.
type MoveCache struct {
	next      game.Searcher
	client    *redis.Client
	namespace string
	ttl       time.Duration
	log       zerolog.Logger
}

func NewMoveCache(next game.Searcher, client *redis.Client, namespace string, ttl time.Duration, log zerolog.Logger) *MoveCache {
	return &MoveCache{next: next, client: client, namespace: namespace, ttl: ttl, log: log}
}

func (c *MoveCache) BestMove(b *game.Board, side game.Cell) (game.Move, bool) {
	if c.client == nil {
		return c.next.BestMove(b, side)
	}
	key := c.Key(b, side)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	val, err := c.client.Get(ctx, key).Result()
	cancel()
	switch {
	case err == nil:
		if m, ok, perr := decodeMove(val); perr == nil {
			return m, ok
		}
		c.log.Warn().Str("key", key).Str("value", val).Msg("discarding malformed cached move")
	case !errors.Is(err, redis.Nil):
		c.log.Debug().Err(err).Msg("move cache read failed")
	}

	m, ok := c.next.BestMove(b, side)

	ctx, cancel = context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.client.Set(ctx, key, encodeMove(m, ok), c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Msg("move cache write failed")
	}
	return m, ok
}

// Key is namespace, side to move, then one digit per cell in row-major order.
func (c *MoveCache) Key(b *game.Board, side game.Cell) string {
	var sb strings.Builder
	sb.Grow(len(keyPrefix) + len(c.namespace) + b.Size()*b.Size() + 8)
	sb.WriteString(keyPrefix)
	sb.WriteByte(':')
	sb.WriteString(c.namespace)
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(int(side)))
	sb.WriteByte(':')
	for _, row := range b.Cells() {
		for _, cell := range row {
			sb.WriteByte('0' + byte(cell))
		}
	}
	return sb.String()
}

func encodeMove(m game.Move, ok bool) string {
	if !ok {
		return noMoveValue
	}
	return strconv.Itoa(m.Row) + "," + strconv.Itoa(m.Col)
}

func decodeMove(s string) (game.Move, bool, error) {
	if s == noMoveValue {
		return game.Move{}, false, nil
	}
	r, c, found := strings.Cut(s, ",")
	if !found {
		return game.Move{}, false, fmt.Errorf("bad cached move %q", s)
	}
	row, err := strconv.Atoi(r)
	if err != nil {
		return game.Move{}, false, err
	}
	col, err := strconv.Atoi(c)
	if err != nil {
		return game.Move{}, false, err
	}
	return game.Move{Row: row, Col: col}, true, nil
}
