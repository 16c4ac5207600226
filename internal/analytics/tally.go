package analytics

import (
	"sort"
	"sync"
)

// Tally counts finished matches by mode and by outcome as seen from the
// recorded player.
type Tally struct {
	mu        sync.Mutex
	total     int
	moves     int
	byMode    map[string]int
	byOutcome map[string]int
	byPlayer  map[string]int
}

func NewTally() *Tally {
	return &Tally{
		byMode:    make(map[string]int),
		byOutcome: make(map[string]int),
		byPlayer:  make(map[string]int),
	}
}

// Record folds one event in. Events other than game_over only bump the move
// counter or are ignored.
func (t *Tally) Record(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e.Event {
	case MoveCommitted:
		t.moves++
	case GameOver:
		t.total++
		if mode, ok := e.Payload["mode"].(string); ok && mode != "" {
			t.byMode[mode]++
		}
		if result, ok := e.Payload["result"].(string); ok && result != "" {
			t.byOutcome[result]++
		}
		if player, ok := e.Payload["player"].(string); ok && player != "" {
			t.byPlayer[player]++
		}
	}
}

type Summary struct {
	Games     int
	Moves     int
	ByMode    map[string]int
	ByOutcome map[string]int
	TopPlayer string
}

func (t *Tally) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Summary{
		Games:     t.total,
		Moves:     t.moves,
		ByMode:    make(map[string]int, len(t.byMode)),
		ByOutcome: make(map[string]int, len(t.byOutcome)),
	}
	for k, v := range t.byMode {
		s.ByMode[k] = v
	}
	for k, v := range t.byOutcome {
		s.ByOutcome[k] = v
	}
	players := make([]string, 0, len(t.byPlayer))
	for p := range t.byPlayer {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if t.byPlayer[players[i]] != t.byPlayer[players[j]] {
			return t.byPlayer[players[i]] > t.byPlayer[players[j]]
		}
		return players[i] < players[j]
	})
	if len(players) > 0 {
		s.TopPlayer = players[0]
	}
	return s
}
