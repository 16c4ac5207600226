package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type Mode int

const (
	ModeSolo Mode = iota
	ModeLocal
	ModeHost
	ModeGuest
)

var (
	ErrUnknownMode       = errors.New("unknown match mode")
	ErrMissingBot        = errors.New("solo match needs a bot playing the second side")
	ErrMissingTransport  = errors.New("networked match needs a transport and room id")
	ErrDesync            = errors.New("remote move is illegal on the local board")
	ErrIllegalEngineMove = errors.New("engine produced an illegal move")
	ErrNoMove            = errors.New("engine found no move on a board with empty cells")
	ErrAlreadyRunning    = errors.New("controller already started")
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "solo", "":
		return ModeSolo, nil
	case "local":
		return ModeLocal, nil
	case "host":
		return ModeHost, nil
	case "guest":
		return ModeGuest, nil
	}
	return ModeSolo, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) String() string {
	switch m {
	case ModeSolo:
		return "solo"
	case ModeLocal:
		return "local"
	case ModeHost:
		return "host"
	case ModeGuest:
		return "guest"
	default:
		return "unknown"
	}
}

// Networked reports whether moves travel to a remote peer.
func (m Mode) Networked() bool {
	return m == ModeHost || m == ModeGuest
}

type StateKind int

const (
	LocalInput StateKind = iota
	RemoteInput
	Computed
)

func (k StateKind) String() string {
	switch k {
	case LocalInput:
		return "local_input"
	case RemoteInput:
		return "remote_input"
	case Computed:
		return "computed"
	default:
		return "unknown"
	}
}

// State is the move source currently allowed to commit for Side.
type State struct {
	Kind StateKind
	Side Cell
}

// wiring returns the states for SideA and SideB.
func wiring(mode Mode) ([2]State, error) {
	switch mode {
	case ModeSolo:
		return [2]State{{LocalInput, SideA}, {Computed, SideB}}, nil
	case ModeLocal:
		return [2]State{{LocalInput, SideA}, {LocalInput, SideB}}, nil
	case ModeHost:
		return [2]State{{RemoteInput, SideA}, {LocalInput, SideB}}, nil
	case ModeGuest:
		return [2]State{{LocalInput, SideA}, {RemoteInput, SideB}}, nil
	}
	return [2]State{}, ErrUnknownMode
}

// Renderer is told about every committed stone. It never mutates game state.
type Renderer interface {
	PlaceMarker(side Cell, m Move)
}

// Transport carries local moves to the remote peer as linear positions.
type Transport interface {
	SendMove(roomID string, position int) error
}

// OutcomeSink receives exactly one notification when the match ends.
type OutcomeSink interface {
	GameOver(o Outcome)
}

type Options struct {
	Size      int
	RoomID    string
	Bot       *Bot
	Renderer  Renderer
	Transport Transport
	Outcome   OutcomeSink
	Log       zerolog.Logger
}

type eventKind int

const (
	evClick eventKind = iota
	evRemote
	evComputed
)

type event struct {
	kind  eventKind
	move  Move
	pos   int
	found bool
	gen   uint64
}

// Controller serialises moves from every source onto one goroutine, the one
// running Run. Click and OpponentMove may be called from any goroutine.
type Controller struct {
	mode   Mode
	board  *Board
	states [2]State
	active int
	opts   Options
	log    zerolog.Logger

	// gen changes on every transition so a late search result can tell it
	// belongs to a state that is gone.
	gen       uint64
	listening bool
	searching bool
	pending   []int
	finished  bool
	outcome   Outcome
	commits   int
	started   atomic.Bool
	events    chan event
	done      chan struct{}
}

func NewController(mode Mode, opts Options) (*Controller, error) {
	states, err := wiring(mode)
	if err != nil {
		return nil, err
	}
	if opts.Size == 0 {
		opts.Size = DefaultSize
	}
	board, err := NewBoard(opts.Size)
	if err != nil {
		return nil, err
	}
	if mode == ModeSolo && (opts.Bot == nil || opts.Bot.Side != states[1].Side) {
		return nil, ErrMissingBot
	}
	if mode.Networked() && (opts.Transport == nil || opts.RoomID == "") {
		return nil, ErrMissingTransport
	}
	return &Controller{
		mode:   mode,
		board:  board,
		states: states,
		opts:   opts,
		log:    opts.Log.With().Str("mode", mode.String()).Logger(),
		events: make(chan event, 16),
		done:   make(chan struct{}),
	}, nil
}

func (c *Controller) Mode() Mode {
	return c.mode
}

// Sides returns the configured state for SideA and SideB.
func (c *Controller) Sides() [2]State {
	return c.states
}

// Outcome and Board are only meaningful once Run has returned.
func (c *Controller) Outcome() Outcome {
	return c.outcome
}

func (c *Controller) Board() *Board {
	return c.board.Clone()
}

func (c *Controller) Commits() int {
	return c.commits
}

// Click delivers a cell chosen by the local player. Out-of-turn or illegal
// clicks are ignored by the game goroutine.
func (c *Controller) Click(row, col int) error {
	return c.post(event{kind: evClick, move: Move{Row: row, Col: col}})
}

// OpponentMove delivers a move reported by the remote peer.
func (c *Controller) OpponentMove(position int) error {
	return c.post(event{kind: evRemote, pos: position})
}

func (c *Controller) post(ev event) error {
	select {
	case <-c.done:
		return ErrMatchStopped
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrMatchStopped
	}
}

// Run owns the board until the match ends, ctx is cancelled or a fault
// occurs. A terminal outcome returns nil.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)

	if err := c.start(); err != nil {
		return c.fault(err)
	}
	for !c.finished {
		select {
		case <-ctx.Done():
			c.exit()
			c.finished = true
			return ctx.Err()
		case ev := <-c.events:
			if err := c.handle(ev); err != nil {
				return c.fault(err)
			}
		}
	}
	return nil
}

func (c *Controller) fault(err error) error {
	c.exit()
	c.finished = true
	c.log.Error().Err(err).Int("commits", c.commits).Msg("match halted")
	return err
}

func (c *Controller) start() error {
	c.active = 0
	return c.enter()
}

func (c *Controller) current() State {
	return c.states[c.active]
}

func (c *Controller) enter() error {
	c.gen++
	st := c.current()
	c.log.Debug().Stringer("state", st.Kind).Stringer("side", st.Side).Msg("enter")
	switch st.Kind {
	case LocalInput:
		c.listening = true
	case RemoteInput:
		c.listening = true
		if len(c.pending) > 0 {
			pos := c.pending[0]
			c.pending = c.pending[1:]
			return c.applyRemote(pos)
		}
	case Computed:
		c.searching = true
		gen, side, snapshot := c.gen, st.Side, c.board.Clone()
		go func() {
			m, ok := c.opts.Bot.ChooseMove(snapshot)
			_ = c.post(event{kind: evComputed, move: m, found: ok, gen: gen})
		}()
		c.log.Debug().Stringer("side", side).Msg("search started")
	}
	return nil
}

// exit undoes enter. Calling it twice is harmless.
func (c *Controller) exit() {
	c.listening = false
	c.searching = false
}

func (c *Controller) handle(ev event) error {
	if c.finished {
		return nil
	}
	st := c.current()
	switch ev.kind {
	case evClick:
		if st.Kind != LocalInput || !c.listening {
			return nil
		}
		if !c.board.IsLegal(ev.move) {
			c.log.Debug().Stringer("move", ev.move).Msg("illegal click ignored")
			return nil
		}
		return c.commit(st, ev.move)
	case evRemote:
		if st.Kind != RemoteInput || !c.listening {
			c.pending = append(c.pending, ev.pos)
			return nil
		}
		return c.applyRemote(ev.pos)
	case evComputed:
		if ev.gen != c.gen || st.Kind != Computed || !c.searching {
			c.log.Debug().Msg("stale search result discarded")
			return nil
		}
		c.searching = false
		if !ev.found {
			if c.board.IsFull() {
				c.finish(Draw)
				return nil
			}
			return ErrNoMove
		}
		if !c.board.IsLegal(ev.move) {
			return fmt.Errorf("%w: %s", ErrIllegalEngineMove, ev.move)
		}
		return c.commit(st, ev.move)
	}
	return nil
}

func (c *Controller) applyRemote(pos int) error {
	st := c.current()
	m, err := MoveFromPosition(pos, c.board.Size())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDesync, err)
	}
	if !c.board.IsLegal(m) {
		return fmt.Errorf("%w: %s", ErrDesync, m)
	}
	return c.commit(st, m)
}

func (c *Controller) commit(st State, m Move) error {
	if !c.board.Place(st.Side, m.Row, m.Col) {
		return nil
	}
	c.commits++
	if c.opts.Renderer != nil {
		c.opts.Renderer.PlaceMarker(st.Side, m)
	}
	if st.Kind == LocalInput && c.mode.Networked() {
		if err := c.opts.Transport.SendMove(c.opts.RoomID, m.Position(c.board.Size())); err != nil {
			return fmt.Errorf("send move %s: %w", m, err)
		}
	}

	outcome := c.board.Outcome()
	if outcome.Terminal() {
		c.finish(outcome)
		return nil
	}
	c.exit()
	c.active = 1 - c.active
	return c.enter()
}

func (c *Controller) finish(o Outcome) {
	c.exit()
	c.finished = true
	c.outcome = o
	c.pending = nil
	c.log.Info().Stringer("outcome", o).Int("commits", c.commits).Msg("match finished")
	if c.opts.Outcome != nil {
		c.opts.Outcome.GameOver(o)
	}
}
