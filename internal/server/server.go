package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"gomoku/backend/internal/analytics"
	"gomoku/backend/internal/game"
	"gomoku/backend/internal/storage"
)

type Server struct {
	router     *gin.Engine
	manager    *game.Manager
	store      storage.Store
	analytics  *analytics.Producer
	bot        *game.Bot
	boardSize  int
	rooms      *rooms
	sweepEvery time.Duration
	log        zerolog.Logger

	clientsMu sync.Mutex
	clients   map[string]*wsClient
}

type Config struct {
	BoardSize   int
	IdleTimeout time.Duration
	SweepEvery  time.Duration
	// Bot plays SideB in solo matches. It is shared, so it must be safe for
	// concurrent use; Engine and MoveCache are.
	Bot       *game.Bot
	Store     storage.Store
	Analytics *analytics.Producer
	Log       zerolog.Logger
}

func New(cfg Config) *Server {
	if cfg.Store == nil {
		cfg.Store = storage.NewMemoryStore()
	}
	if cfg.BoardSize == 0 {
		cfg.BoardSize = game.DefaultSize
	}
	if cfg.SweepEvery == 0 {
		cfg.SweepEvery = 5 * time.Second
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Log))
	s := &Server{
		router:     router,
		store:      cfg.Store,
		analytics:  cfg.Analytics,
		bot:        cfg.Bot,
		boardSize:  cfg.BoardSize,
		rooms:      newRooms(),
		sweepEvery: cfg.SweepEvery,
		log:        cfg.Log,
		clients:    make(map[string]*wsClient),
	}
	s.manager = game.NewManager(cfg.IdleTimeout, s.onFinish, cfg.Log)

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/leaderboard", s.handleLeaderboard)
	router.GET("/ws", s.handleWS)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves addr until ctx is cancelled, then drains running matches.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	go s.sweeper(ctx)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		s.manager.Shutdown()
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.manager.Shutdown()
	if serveErr := <-errc; !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	return err
}

func (s *Server) sweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.manager.SweepIdle()
		}
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}
	rows, err := s.store.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("leaderboard query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard unavailable"})
		return
	}
	if rows == nil {
		rows = []storage.Standing{}
	}
	c.JSON(http.StatusOK, rows)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
		return
	}
	mode, err := game.ParseMode(c.Query("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	roomID := c.Query("room")
	if mode == game.ModeGuest && roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room required to join"})
		return
	}
	if mode == game.ModeSolo && s.bot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "solo play is not configured"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := &wsClient{
		username: username,
		mode:     mode,
		conn:     conn,
		send:     make(chan []byte, sendQueue),
		done:     make(chan struct{}),
		server:   s,
		joinRoom: roomID,
		log:      s.log.With().Str("user", username).Str("mode", mode.String()).Logger(),
	}
	client.log.Info().Msg("connected")

	go client.writePump()
	go client.readPump()
}

// setup opens the client's match, or seats it in a room.
func (s *Server) setup(c *wsClient) error {
	switch c.mode {
	case game.ModeSolo:
		m, err := s.openMatch(c, game.ModeSolo, game.SideA, "")
		if err != nil {
			return err
		}
		s.pushInit(c, m, "init")
	case game.ModeLocal:
		m, err := s.openMatch(c, game.ModeLocal, game.Empty, "")
		if err != nil {
			return err
		}
		s.pushInit(c, m, "init")
	case game.ModeHost:
		id := s.rooms.create(c)
		c.mu.Lock()
		c.roomID = id
		c.mu.Unlock()
		c.sendJSON(map[string]any{"type": "waiting", "room": id, "message": "waiting for opponent"})
	case game.ModeGuest:
		return s.startRoom(c)
	}
	return nil
}

// startRoom seats guest in its room and opens a match on each side. The
// guest plays SideA and moves first.
func (s *Server) startRoom(guest *wsClient) error {
	id := guest.joinRoom
	host, err := s.rooms.join(id, guest)
	if err != nil {
		return err
	}
	guest.mu.Lock()
	guest.roomID = id
	guest.mu.Unlock()
	hostMatch, err := s.openMatch(host, game.ModeHost, game.SideB, id)
	if err != nil {
		s.rooms.end(id, guest)
		return err
	}
	guestMatch, err := s.openMatch(guest, game.ModeGuest, game.SideA, id)
	if err != nil {
		s.rooms.end(id, guest)
		s.manager.Close(hostMatch.ID)
		return err
	}
	s.pushInit(host, hostMatch, "start")
	s.pushInit(guest, guestMatch, "start")
	return nil
}

func (s *Server) openMatch(c *wsClient, mode game.Mode, side game.Cell, roomID string) (*game.Match, error) {
	opts := game.Options{
		Size:     s.boardSize,
		RoomID:   roomID,
		Renderer: c,
		Outcome:  c,
		Log:      c.log,
	}
	if mode == game.ModeSolo {
		opts.Bot = s.bot
	}
	if mode.Networked() {
		opts.Transport = c
	}
	c.mu.Lock()
	c.side = side
	c.mu.Unlock()

	m, err := s.manager.Open(mode, c.username, side, opts)
	if err != nil {
		return nil, err
	}
	c.setMatch(m)
	s.track(m.ID, c)
	s.analytics.Publish(context.Background(), analytics.MatchStarted, m.ID, map[string]any{
		"matchId": m.ID,
		"mode":    mode.String(),
		"player":  c.username,
		"side":    side.String(),
		"room":    roomID,
	})
	return m, nil
}

func (s *Server) pushInit(c *wsClient, m *game.Match, kind string) {
	c.sendJSON(map[string]any{
		"type":    kind,
		"matchId": m.ID,
		"mode":    m.Mode.String(),
		"side":    m.Side.String(),
		"size":    s.boardSize,
		"room":    c.room(),
		"you":     c.username,
	})
}

func (s *Server) track(matchID string, c *wsClient) {
	s.clientsMu.Lock()
	s.clients[matchID] = c
	s.clientsMu.Unlock()
}

func (s *Server) untrack(matchID string) *wsClient {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	c := s.clients[matchID]
	delete(s.clients, matchID)
	return c
}

// unregister abandons the client's match and tells a room peer it is alone.
func (s *Server) unregister(c *wsClient) {
	if !c.close() {
		return
	}
	if m := c.currentMatch(); m != nil {
		s.manager.Close(m.ID)
	}
	if id := c.room(); id != "" {
		if peer := s.rooms.end(id, c); peer != nil {
			peer.sendJSON(map[string]any{"type": "opponent_left", "room": id})
			if pm := peer.currentMatch(); pm != nil {
				s.manager.Close(pm.ID)
			}
		}
	}
	c.log.Info().Msg("disconnected")
}

// onFinish runs once per match after its controller stops.
func (s *Server) onFinish(m *game.Match) {
	client := s.untrack(m.ID)
	outcome := m.Controller.Outcome()
	if err := m.Err(); err != nil && client != nil {
		client.sendJSON(map[string]any{"type": "error", "message": err.Error()})
	}

	result := ""
	if outcome.Terminal() && m.Mode != game.ModeLocal && m.Side.IsSide() {
		result = outcome.ForSide(m.Side)
		if err := s.store.RecordResult(context.Background(), m.Player, result); err != nil {
			s.log.Error().Err(err).Str("match", m.ID).Msg("record result failed")
		}
	}
	s.analytics.Publish(context.Background(), analytics.GameOver, m.ID, map[string]any{
		"matchId":   m.ID,
		"mode":      m.Mode.String(),
		"player":    m.Player,
		"outcome":   outcome.String(),
		"result":    result,
		"abandoned": !outcome.Terminal(),
		"moves":     m.Controller.Commits(),
		"duration":  m.EndedAt().Sub(m.StartedAt).Seconds(),
	})
}
