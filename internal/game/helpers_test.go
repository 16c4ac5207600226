package game

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// boardFrom builds a square board from rows of '.', 'A' and 'B'.
func boardFrom(t *testing.T, rows ...string) *Board {
	t.Helper()
	b, err := NewBoard(len(rows))
	require.NoError(t, err)
	for r, line := range rows {
		require.Len(t, line, len(rows), "row %d", r)
		for c, ch := range line {
			switch ch {
			case 'A':
				require.True(t, b.Place(SideA, r, c))
			case 'B':
				require.True(t, b.Place(SideB, r, c))
			}
		}
	}
	return b
}

// patternCell never lines up five equal cells in any direction: rows and
// anti-diagonals step the residue by 1, columns by 2, diagonals by 3.
func patternCell(row, col int) Cell {
	if (col+2*row)%4 < 2 {
		return SideA
	}
	return SideB
}

// fullBoard fills every cell with patternCell except the listed holes.
func fullBoard(t *testing.T, size int, holes ...Move) *Board {
	t.Helper()
	b := MustBoard(size)
	skip := map[Move]bool{}
	for _, h := range holes {
		skip[h] = true
	}
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			if skip[Move{r, c}] {
				continue
			}
			require.True(t, b.Place(patternCell(r, c), r, c))
		}
	}
	return b
}

func newTestEngine(depth int) Engine {
	return NewEngine(depth, NewEvaluator(DefaultWeights()), zerolog.Nop())
}

type marker struct {
	Side Cell
	Move Move
}

type recordingRenderer struct {
	mu      sync.Mutex
	markers []marker
}

func (r *recordingRenderer) PlaceMarker(side Cell, m Move) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers = append(r.markers, marker{side, m})
}

func (r *recordingRenderer) all() []marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]marker(nil), r.markers...)
}

type chanSink struct {
	ch chan Outcome
}

func newChanSink() *chanSink {
	return &chanSink{ch: make(chan Outcome, 4)}
}

func (s *chanSink) GameOver(o Outcome) {
	s.ch <- o
}

type sentMove struct {
	Room     string
	Position int
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []sentMove
	err  error
}

func (tr *recordingTransport) SendMove(roomID string, position int) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.sent = append(tr.sent, sentMove{roomID, position})
	return tr.err
}

func (tr *recordingTransport) all() []sentMove {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]sentMove(nil), tr.sent...)
}

// fixedSearcher answers with a canned move, optionally after release is closed.
type fixedSearcher struct {
	move    Move
	ok      bool
	release chan struct{}
}

func (f *fixedSearcher) BestMove(*Board, Cell) (Move, bool) {
	if f.release != nil {
		<-f.release
	}
	return f.move, f.ok
}

func nextEvent(t *testing.T, c *Controller) event {
	t.Helper()
	select {
	case ev := <-c.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for controller event")
		return event{}
	}
}
