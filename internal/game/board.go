package game

import (
	"errors"
	"fmt"
)

const (
	DefaultSize = 15
	WinLength   = 5
)

type Cell uint8

const (
	Empty Cell = iota
	SideA
	SideB
)

var (
	ErrOutOfRange   = errors.New("coordinate out of range")
	ErrInvalidSize  = errors.New("board size must be at least 5")
	ErrBadPosition  = errors.New("linear position out of range")
	ErrMatchStopped = errors.New("match already finished")
)

// directions are the four line axes: horizontal, vertical, down-right, up-right.
var directions = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {-1, 1}}

func (c Cell) String() string {
	switch c {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return "empty"
	}
}

// IsSide reports whether c is one of the two player sides.
func (c Cell) IsSide() bool {
	return c == SideA || c == SideB
}

// Opponent returns the other side. Empty maps to Empty.
func (c Cell) Opponent() Cell {
	switch c {
	case SideA:
		return SideB
	case SideB:
		return SideA
	default:
		return Empty
	}
}

type Move struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (m Move) String() string {
	return fmt.Sprintf("(%d,%d)", m.Row, m.Col)
}

// Position encodes m as row*n + col, the wire format used between peers.
func (m Move) Position(n int) int {
	return m.Row*n + m.Col
}

// MoveFromPosition decodes a linear position for an n×n board.
func MoveFromPosition(pos, n int) (Move, error) {
	if n <= 0 || pos < 0 || pos >= n*n {
		return Move{}, fmt.Errorf("%w: %d", ErrBadPosition, pos)
	}
	return Move{Row: pos / n, Col: pos % n}, nil
}

type Outcome int

const (
	InProgress Outcome = iota
	FirstSideWins
	SecondSideWins
	Draw
)

func (o Outcome) String() string {
	switch o {
	case FirstSideWins:
		return "first_side_wins"
	case SecondSideWins:
		return "second_side_wins"
	case Draw:
		return "draw"
	default:
		return "in_progress"
	}
}

// Terminal reports whether the match is over.
func (o Outcome) Terminal() bool {
	return o != InProgress
}

// ForSide renders the outcome from one side's point of view: "win", "lose", "draw" or "".
func (o Outcome) ForSide(side Cell) string {
	switch {
	case o == Draw:
		return "draw"
	case o == FirstSideWins && side == SideA, o == SecondSideWins && side == SideB:
		return "win"
	case o == FirstSideWins, o == SecondSideWins:
		return "lose"
	default:
		return ""
	}
}

// Board is a fixed-size square grid. The zero value is not usable; call NewBoard.
type Board struct {
	size  int
	cells []Cell
}

func NewBoard(size int) (*Board, error) {
	if size < WinLength {
		return nil, ErrInvalidSize
	}
	return &Board{size: size, cells: make([]Cell, size*size)}, nil
}

// MustBoard is NewBoard for sizes known to be valid.
func MustBoard(size int) *Board {
	b, err := NewBoard(size)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Board) Size() int {
	return b.size
}

func (b *Board) InBounds(row, col int) bool {
	return row >= 0 && col >= 0 && row < b.size && col < b.size
}

func (b *Board) CellAt(row, col int) (Cell, error) {
	if !b.InBounds(row, col) {
		return Empty, fmt.Errorf("%w: (%d,%d)", ErrOutOfRange, row, col)
	}
	return b.cells[b.index(row, col)], nil
}

// Place is the only committing mutation. It returns false without touching
// the board when the move is illegal.
func (b *Board) Place(side Cell, row, col int) bool {
	if !side.IsSide() || !b.InBounds(row, col) {
		return false
	}
	i := b.index(row, col)
	if b.cells[i] != Empty {
		return false
	}
	b.cells[i] = side
	return true
}

// IsLegal reports whether m is in bounds and targets an empty cell.
func (b *Board) IsLegal(m Move) bool {
	return b.InBounds(m.Row, m.Col) && b.cells[b.index(m.Row, m.Col)] == Empty
}

func (b *Board) HasLineOfFive(side Cell) bool {
	if !side.IsSide() {
		return false
	}
	for row := 0; row < b.size; row++ {
		for col := 0; col < b.size; col++ {
			for _, d := range directions {
				if b.runFrom(side, row, col, d[0], d[1]) {
					return true
				}
			}
		}
	}
	return false
}

func (b *Board) runFrom(side Cell, row, col, dr, dc int) bool {
	endRow, endCol := row+dr*(WinLength-1), col+dc*(WinLength-1)
	if !b.InBounds(endRow, endCol) {
		return false
	}
	for i := 0; i < WinLength; i++ {
		if b.cells[b.index(row+dr*i, col+dc*i)] != side {
			return false
		}
	}
	return true
}

// completesFive reports whether side playing the empty cell (row, col)
// would line up five or more through it.
func (b *Board) completesFive(row, col int, side Cell) bool {
	if !side.IsSide() || !b.InBounds(row, col) || b.at(row, col) != Empty {
		return false
	}
	for _, d := range directions {
		run := 1
		for _, sign := range [2]int{1, -1} {
			r, c := row+sign*d[0], col+sign*d[1]
			for b.InBounds(r, c) && b.at(r, c) == side {
				run++
				r, c = r+sign*d[0], c+sign*d[1]
			}
		}
		if run >= WinLength {
			return true
		}
	}
	return false
}

func (b *Board) IsFull() bool {
	for _, c := range b.cells {
		if c == Empty {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no stone has been placed yet.
func (b *Board) IsEmpty() bool {
	for _, c := range b.cells {
		if c != Empty {
			return false
		}
	}
	return true
}

func (b *Board) Center() Move {
	return Move{Row: b.size / 2, Col: b.size / 2}
}

// Outcome derives the match result. SideA is checked first, matching the
// order moves are reported in.
func (b *Board) Outcome() Outcome {
	switch {
	case b.HasLineOfFive(SideA):
		return FirstSideWins
	case b.HasLineOfFive(SideB):
		return SecondSideWins
	case b.IsFull():
		return Draw
	default:
		return InProgress
	}
}

func (b *Board) Clone() *Board {
	clone := &Board{size: b.size, cells: make([]Cell, len(b.cells))}
	copy(clone.cells, b.cells)
	return clone
}

// Equal reports cell-for-cell equality.
func (b *Board) Equal(other *Board) bool {
	if other == nil || b.size != other.size {
		return false
	}
	for i := range b.cells {
		if b.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// Cells returns a row-major copy.
func (b *Board) Cells() [][]Cell {
	rows := make([][]Cell, b.size)
	for r := range rows {
		rows[r] = make([]Cell, b.size)
		copy(rows[r], b.cells[r*b.size:(r+1)*b.size])
	}
	return rows
}

func (b *Board) at(row, col int) Cell {
	return b.cells[b.index(row, col)]
}

// set and clear are for speculative search only.
func (b *Board) set(row, col int, side Cell) {
	b.cells[b.index(row, col)] = side
}

func (b *Board) clear(row, col int) {
	b.cells[b.index(row, col)] = Empty
}

func (b *Board) index(row, col int) int {
	return row*b.size + col
}
