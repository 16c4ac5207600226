package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrUnknownMatch = errors.New("unknown match")

// Match is a running controller plus the bookkeeping the server needs.
type Match struct {
	ID         string
	Mode       Mode
	Player     string
	Side       Cell // the side the player controls; Empty for local two-player
	StartedAt  time.Time
	Controller *Controller

	cancel  context.CancelFunc
	done    chan struct{}
	endedAt time.Time
	err     error
}

// Wait blocks until the controller stops and the finish hook has run, then
// returns the controller's error.
func (m *Match) Wait() error {
	<-m.done
	return m.err
}

// Err is the controller's error. It is valid inside the finish hook and
// after Wait returns.
func (m *Match) Err() error {
	return m.err
}

// EndedAt, like Err, is valid inside the finish hook and after Wait returns.
func (m *Match) EndedAt() time.Time {
	return m.endedAt
}

// Manager tracks running matches and tears down the ones left idle.
type Manager struct {
	mu         sync.RWMutex
	matches    map[string]*Match
	lastMoveAt map[string]time.Time
	idleAfter  time.Duration
	onFinish   func(*Match)
	log        zerolog.Logger
}

func NewManager(idleAfter time.Duration, onFinish func(*Match), log zerolog.Logger) *Manager {
	return &Manager{
		matches:    make(map[string]*Match),
		lastMoveAt: make(map[string]time.Time),
		idleAfter:  idleAfter,
		onFinish:   onFinish,
		log:        log,
	}
}

// Open builds a controller for mode and starts it on its own goroutine.
func (m *Manager) Open(mode Mode, player string, side Cell, opts Options) (*Match, error) {
	id := uuid.NewString()
	opts.Log = opts.Log.With().Str("match", id).Logger()
	ctrl, err := NewController(mode, opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	match := &Match{
		ID:         id,
		Mode:       mode,
		Player:     player,
		Side:       side,
		StartedAt:  time.Now(),
		Controller: ctrl,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	m.mu.Lock()
	m.matches[id] = match
	m.lastMoveAt[id] = match.StartedAt
	m.mu.Unlock()

	go m.run(ctx, match)
	return match, nil
}

func (m *Manager) run(ctx context.Context, match *Match) {
	defer close(match.done)
	err := match.Controller.Run(ctx)
	match.cancel()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	match.err = err
	match.endedAt = time.Now()

	m.mu.Lock()
	delete(m.matches, match.ID)
	delete(m.lastMoveAt, match.ID)
	m.mu.Unlock()

	if err != nil {
		m.log.Error().Err(err).Str("match", match.ID).Msg("match faulted")
	}
	if m.onFinish != nil {
		m.onFinish(match)
	}
}

func (m *Manager) Get(id string) (*Match, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[id]
	return match, ok
}

// Click forwards a local move and refreshes the idle timer.
func (m *Manager) Click(id string, row, col int) error {
	match, ok := m.touch(id)
	if !ok {
		return ErrUnknownMatch
	}
	return match.Controller.Click(row, col)
}

// OpponentMove forwards a remote move and refreshes the idle timer.
func (m *Manager) OpponentMove(id string, position int) error {
	match, ok := m.touch(id)
	if !ok {
		return ErrUnknownMatch
	}
	return match.Controller.OpponentMove(position)
}

func (m *Manager) touch(id string) (*Match, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if ok {
		m.lastMoveAt[id] = time.Now()
	}
	return match, ok
}

// Close abandons a match. Any outstanding search result is discarded.
func (m *Manager) Close(id string) {
	m.mu.RLock()
	match, ok := m.matches[id]
	m.mu.RUnlock()
	if ok {
		match.cancel()
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.matches)
}

// SweepIdle abandons matches with no move for longer than the idle window.
func (m *Manager) SweepIdle() {
	if m.idleAfter <= 0 {
		return
	}
	m.mu.RLock()
	var stale []*Match
	now := time.Now()
	for id, last := range m.lastMoveAt {
		if now.Sub(last) > m.idleAfter {
			stale = append(stale, m.matches[id])
		}
	}
	m.mu.RUnlock()

	for _, match := range stale {
		m.log.Info().Str("match", match.ID).Msg("match abandoned after idle timeout")
		match.cancel()
	}
}

// Shutdown abandons every match and waits for their controllers to stop.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	all := make([]*Match, 0, len(m.matches))
	for _, match := range m.matches {
		all = append(all, match)
	}
	m.mu.RUnlock()
	for _, match := range all {
		match.cancel()
		_ = match.Wait()
	}
}
