package game

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultDepth is the number of plies searched, the root move included.
	DefaultDepth = 2
	// MaxDepth caps Depth so ply-adjusted win and loss scores stay apart
	// from heuristic ones.
	MaxDepth = 64
)

// Result is the outcome of one search. Found is false only when no
// candidate exists (full or empty board).
type Result struct {
	Move  Move
	Score float64
	Found bool
	Nodes int
}

// Engine picks moves with depth-limited minimax and alpha-beta pruning.
// It keeps no state between calls.
type Engine struct {
	Depth     int
	Evaluator Evaluator
	Log       zerolog.Logger
}

func NewEngine(depth int, eval Evaluator, log zerolog.Logger) Engine {
	return Engine{Depth: clampDepth(depth), Evaluator: eval, Log: log}
}

func clampDepth(depth int) int {
	return min(max(depth, 1), MaxDepth)
}

// BestMove returns the move Search would pick.
func (e Engine) BestMove(b *Board, side Cell) (Move, bool) {
	res := e.Search(b, side)
	return res.Move, res.Found
}

// Search explores the candidate moves for side. The board is mutated
// speculatively and restored before returning.
func (e Engine) Search(b *Board, side Cell) Result {
	start := time.Now()
	s := &searcher{eval: e.Evaluator, side: side, depth: clampDepth(e.Depth)}

	var res Result
	alpha, beta := -MaxScore, MaxScore
	for _, m := range RootCandidates(b, side) {
		b.set(m.Row, m.Col, side)
		score := s.minimax(b, 1, false, alpha, beta)
		b.clear(m.Row, m.Col)

		if !res.Found || score > res.Score {
			res.Move, res.Score, res.Found = m, score, true
		}
		alpha = max(alpha, res.Score)
		if beta <= alpha {
			break
		}
	}
	res.Nodes = s.nodes

	e.Log.Debug().
		Str("side", side.String()).
		Bool("found", res.Found).
		Stringer("move", res.Move).
		Float64("score", res.Score).
		Int("nodes", res.Nodes).
		Dur("took", time.Since(start)).
		Msg("search finished")
	return res
}

type searcher struct {
	eval  Evaluator
	side  Cell
	depth int
	nodes int
}

func (s *searcher) minimax(b *Board, ply int, maximizing bool, alpha, beta float64) float64 {
	s.nodes++
	if b.HasLineOfFive(s.side.Opponent()) {
		return lossScore(ply)
	}
	if b.HasLineOfFive(s.side) {
		return winScore(ply)
	}
	if b.IsFull() {
		return 0
	}
	if ply >= s.depth {
		return s.eval.Evaluate(b, s.side)
	}

	cands := Candidates(b)
	if len(cands) == 0 {
		return s.eval.Evaluate(b, s.side)
	}

	if maximizing {
		best := -MaxScore
		for _, m := range cands {
			b.set(m.Row, m.Col, s.side)
			score := s.minimax(b, ply+1, false, alpha, beta)
			b.clear(m.Row, m.Col)
			best = max(best, score)
			alpha = max(alpha, best)
			if beta <= alpha {
				break
			}
		}
		return best
	}

	best := MaxScore
	opp := s.side.Opponent()
	for _, m := range cands {
		b.set(m.Row, m.Col, opp)
		score := s.minimax(b, ply+1, true, alpha, beta)
		b.clear(m.Row, m.Col)
		best = min(best, score)
		beta = min(beta, best)
		if beta <= alpha {
			break
		}
	}
	return best
}

// winScore and lossScore rank decided positions by distance from the root:
// a quicker win and a slower loss score better.
func winScore(ply int) float64 {
	return MaxScore - float64(ply)
}

func lossScore(ply int) float64 {
	return -winScore(ply)
}

// RootCandidates narrows Candidates to forced moves. If side can complete
// five, only those cells are searched; otherwise, if the opponent threatens
// five, only the cells that stop it. Both lists keep scan order.
func RootCandidates(b *Board, side Cell) []Move {
	cands := Candidates(b)
	if wins := winningCells(b, cands, side); len(wins) > 0 {
		return wins
	}
	if blocks := winningCells(b, cands, side.Opponent()); len(blocks) > 0 {
		return blocks
	}
	return cands
}

// winningCells returns the moves in cands that give side five in a row.
func winningCells(b *Board, cands []Move, side Cell) []Move {
	var out []Move
	for _, m := range cands {
		if b.completesFive(m.Row, m.Col, side) {
			out = append(out, m)
		}
	}
	return out
}

// Candidates lists the empty cells touching at least one stone, in
// row-major order. An empty board has none.
func Candidates(b *Board) []Move {
	var out []Move
	for row := 0; row < b.size; row++ {
		for col := 0; col < b.size; col++ {
			if b.at(row, col) == Empty && hasNeighbor(b, row, col) {
				out = append(out, Move{Row: row, Col: col})
			}
		}
	}
	return out
}

func hasNeighbor(b *Board, row, col int) bool {
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			r, c := row+dr, col+dc
			if b.InBounds(r, c) && b.at(r, c) != Empty {
				return true
			}
		}
	}
	return false
}
