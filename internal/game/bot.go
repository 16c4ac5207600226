package game

// Searcher picks a move for side on b. Engine implements it; the move
// cache wraps one.
type Searcher interface {
	BestMove(b *Board, side Cell) (Move, bool)
}

// Bot is the move source behind a Computed state. It opens in the centre
// when the board is empty, takes an immediate five when one exists, blocks
// the opponent's immediate five, and otherwise defers to its searcher.
type Bot struct {
	Side   Cell
	Search Searcher
}

func NewBot(side Cell, s Searcher) *Bot {
	return &Bot{Side: side, Search: s}
}

// ChooseMove may mutate board speculatively; callers hand it a private copy.
func (b *Bot) ChooseMove(board *Board) (Move, bool) {
	// The neighbour filter yields nothing on an empty board.
	if board.IsEmpty() {
		return board.Center(), true
	}
	// 1. Take a winning move if available.
	if move, ok := findImmediate(board, b.Side); ok {
		return move, true
	}
	// 2. Block the opponent's winning move.
	if move, ok := findImmediate(board, b.Side.Opponent()); ok {
		return move, true
	}
	return b.Search.BestMove(board, b.Side)
}

// findImmediate returns the first candidate, in scan order, that completes
// a five for side.
func findImmediate(board *Board, side Cell) (Move, bool) {
	if wins := winningCells(board, Candidates(board), side); len(wins) > 0 {
		return wins[0], true
	}
	return Move{}, false
}
