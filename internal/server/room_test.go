package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomLifecycle(t *testing.T) {
	r := newRooms()
	host, guest, stranger := &wsClient{}, &wsClient{}, &wsClient{}

	id := r.create(host)
	require.Nil(t, r.peer(id, host), "no peer before the guest joins")

	got, err := r.join(id, guest)
	require.NoError(t, err)
	require.Same(t, host, got)
	require.Same(t, guest, r.peer(id, host))
	require.Same(t, host, r.peer(id, guest))
	require.Nil(t, r.peer(id, stranger))

	_, err = r.join(id, stranger)
	require.ErrorIs(t, err, ErrRoomFull)

	require.Nil(t, r.end(id, stranger), "outsiders cannot end a room")
	require.Equal(t, 1, r.len())

	require.Same(t, host, r.end(id, guest))
	require.Zero(t, r.len())
	require.Nil(t, r.peer(id, host))

	_, err = r.join(id, stranger)
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestHostLeavingOpenRoom(t *testing.T) {
	r := newRooms()
	host := &wsClient{}
	id := r.create(host)
	require.Nil(t, r.end(id, host))
	require.Zero(t, r.len())
}
