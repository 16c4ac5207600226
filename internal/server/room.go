package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room already has two players")
	ErrPeerGone     = errors.New("opponent left the room")
)

type roomState int

const (
	roomOpen roomState = iota
	roomStarted
	roomEnded
)

// room pairs a host with a guest. It only decides who plays which side
// and where relayed moves go; the board lives in each side's controller.
type room struct {
	id    string
	host  *wsClient
	guest *wsClient
	state roomState
}

type rooms struct {
	mu   sync.Mutex
	byID map[string]*room
}

func newRooms() *rooms {
	return &rooms{byID: make(map[string]*room)}
}

func (r *rooms) create(host *wsClient) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.byID[id] = &room{id: id, host: host}
	r.mu.Unlock()
	return id
}

// join seats guest and marks the room started. The host is returned so the
// caller can open both matches.
func (r *rooms) join(id string, guest *wsClient) (*wsClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.byID[id]
	if !ok || rm.state == roomEnded {
		return nil, ErrRoomNotFound
	}
	if rm.state != roomOpen {
		return nil, ErrRoomFull
	}
	rm.guest = guest
	rm.state = roomStarted
	return rm.host, nil
}

// peer returns the other seat of room id, or nil once the room has ended.
func (r *rooms) peer(id string, c *wsClient) *wsClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.byID[id]
	if !ok || rm.state != roomStarted {
		return nil
	}
	switch c {
	case rm.host:
		return rm.guest
	case rm.guest:
		return rm.host
	}
	return nil
}

// end closes the room if c is seated in it and returns the other seat.
func (r *rooms) end(id string, c *wsClient) *wsClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.byID[id]
	if !ok || c == nil || (c != rm.host && c != rm.guest) {
		return nil
	}
	rm.state = roomEnded
	delete(r.byID, id)
	if c == rm.host {
		return rm.guest
	}
	return rm.host
}

func (r *rooms) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
