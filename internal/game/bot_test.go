package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type countingSearcher struct {
	calls int
	next  Searcher
}

func (c *countingSearcher) BestMove(b *Board, side Cell) (Move, bool) {
	c.calls++
	return c.next.BestMove(b, side)
}

func TestBotOpensInCentre(t *testing.T) {
	search := &countingSearcher{next: newTestEngine(DefaultDepth)}
	bot := NewBot(SideB, search)

	m, ok := bot.ChooseMove(MustBoard(DefaultSize))
	require.True(t, ok)
	require.Equal(t, Move{7, 7}, m)
	require.Zero(t, search.calls)
}

func TestBotTakesImmediateFive(t *testing.T) {
	b := MustBoard(DefaultSize)
	for c := 3; c < 7; c++ {
		require.True(t, b.Place(SideB, 4, c))
	}
	require.True(t, b.Place(SideA, 4, 2))
	before := b.Clone()

	search := &countingSearcher{next: newTestEngine(DefaultDepth)}
	m, ok := NewBot(SideB, search).ChooseMove(b)
	require.True(t, ok)
	require.Equal(t, Move{4, 7}, m)
	require.Zero(t, search.calls)
	require.True(t, before.Equal(b))
}

func TestBotDefersToSearcher(t *testing.T) {
	b := MustBoard(DefaultSize)
	require.True(t, b.Place(SideA, 7, 7))

	search := &countingSearcher{next: newTestEngine(DefaultDepth)}
	want, _ := newTestEngine(DefaultDepth).BestMove(b.Clone(), SideB)
	m, ok := NewBot(SideB, search).ChooseMove(b)
	require.True(t, ok)
	require.Equal(t, want, m)
	require.Equal(t, 1, search.calls)
}

func TestBotFullBoardHasNoMove(t *testing.T) {
	_, ok := NewBot(SideB, newTestEngine(1)).ChooseMove(fullBoard(t, DefaultSize))
	require.False(t, ok)
}

func TestBotBlocksOpponentFive(t *testing.T) {
	tests := []struct {
		name  string
		board func(t *testing.T) *Board
		want  Move
	}{
		{"open four", openFourBoard, Move{7, 4}},
		{"closed four", func(t *testing.T) *Board {
			b := openFourBoard(t)
			require.True(t, b.Place(SideB, 7, 4))
			require.True(t, b.Place(SideA, 0, 14))
			return b
		}, Move{7, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := &countingSearcher{next: newTestEngine(DefaultDepth)}
			m, ok := NewBot(SideB, search).ChooseMove(tt.board(t))
			require.True(t, ok)
			require.Equal(t, tt.want, m)
			require.Zero(t, search.calls)
		})
	}
}

func TestBotPrefersOwnFiveOverBlocking(t *testing.T) {
	b := openFourBoard(t)
	for c := 0; c < 4; c++ {
		require.True(t, b.Place(SideB, 13, c))
	}
	m, ok := NewBot(SideB, newTestEngine(DefaultDepth)).ChooseMove(b)
	require.True(t, ok)
	require.Equal(t, Move{13, 4}, m)
}
