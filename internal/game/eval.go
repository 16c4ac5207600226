package game

import "errors"

// MaxScore bounds every score the engine produces. Decided positions score
// within MaxDepth of ±MaxScore; heuristic sums are clamped below that band
// so a decided position always dominates.
const MaxScore = 1e9

var ErrBadWeights = errors.New("pattern weights must be positive and defense multiplier at least 1")

// Weights are the per-pattern contributions. Closed patterns blocked on
// both ends score half of their closed value.
type Weights struct {
	OpenFour    float64
	ClosedFour  float64
	OpenThree   float64
	ClosedThree float64
	OpenTwo     float64
	ClosedTwo   float64
	// Defense scales the opponent's patterns so blocking outranks building.
	Defense float64
}

func DefaultWeights() Weights {
	return Weights{
		OpenFour:    50000,
		ClosedFour:  10000,
		OpenThree:   5000,
		ClosedThree: 1000,
		OpenTwo:     100,
		ClosedTwo:   10,
		Defense:     2,
	}
}

func (w Weights) Validate() error {
	for _, v := range []float64{w.OpenFour, w.ClosedFour, w.OpenThree, w.ClosedThree, w.OpenTwo, w.ClosedTwo} {
		if v <= 0 {
			return ErrBadWeights
		}
	}
	if w.Defense < 1 {
		return ErrBadWeights
	}
	return nil
}

// Evaluator scores a position for one side. It holds no state besides its
// weights and is safe for concurrent use.
type Evaluator struct {
	Weights Weights
}

func NewEvaluator(w Weights) Evaluator {
	return Evaluator{Weights: w}
}

// Evaluate returns the heuristic value of b from side's perspective:
// positive favours side, negative favours its opponent.
func (e Evaluator) Evaluate(b *Board, side Cell) float64 {
	n := b.size
	score := 0.0
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			owner := b.at(row, col)
			if owner == Empty {
				continue
			}
			mult := 1.0
			if owner != side {
				mult = -e.Weights.Defense
			}
			for _, d := range directions {
				if !b.InBounds(row+d[0]*(WinLength-1), col+d[1]*(WinLength-1)) {
					continue
				}
				p := scan(b, row, col, d[0], d[1])
				if p.run >= WinLength {
					if owner == side {
						return MaxScore
					}
					return -MaxScore
				}
				score += e.patternValue(p) * mult
			}
		}
	}
	return clampHeuristic(score)
}

type pattern struct {
	run      int // stones from the origin forward
	freeEnds int
}

// scan measures the run starting at (row, col) along (dr, dc) and whether
// the cells beyond each end are free.
func scan(b *Board, row, col, dr, dc int) pattern {
	owner := b.at(row, col)
	p := pattern{run: 1}
	for i := 1; i < WinLength; i++ {
		r, c := row+dr*i, col+dc*i
		if !b.InBounds(r, c) {
			break
		}
		cell := b.at(r, c)
		if cell == owner {
			p.run++
			continue
		}
		if cell == Empty {
			p.freeEnds++
		}
		break
	}
	behind := 0
	for i := 1; i < WinLength; i++ {
		r, c := row-dr*i, col-dc*i
		if !b.InBounds(r, c) {
			break
		}
		cell := b.at(r, c)
		if cell == owner {
			behind++
			continue
		}
		if cell == Empty {
			p.freeEnds++
		}
		break
	}
	// A five straddling the origin still decides the position.
	if p.run+behind >= WinLength {
		p.run += behind
	}
	return p
}

func (e Evaluator) patternValue(p pattern) float64 {
	var open, closed float64
	switch p.run {
	case 4:
		open, closed = e.Weights.OpenFour, e.Weights.ClosedFour
	case 3:
		open, closed = e.Weights.OpenThree, e.Weights.ClosedThree
	case 2:
		open, closed = e.Weights.OpenTwo, e.Weights.ClosedTwo
	default:
		return 0
	}
	switch p.freeEnds {
	case 2:
		return open
	case 1:
		return closed
	default:
		return closed / 2
	}
}

func clampHeuristic(score float64) float64 {
	const limit = MaxScore - MaxDepth - 1
	if score > limit {
		return limit
	}
	if score < -limit {
		return -limit
	}
	return score
}
