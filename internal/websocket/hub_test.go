package websocket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, username string) *Client {
	return NewClient(hub, nil, Identity{
		ID:       uuid.New(),
		Username: username,
	})
}

func TestRegisterSupersedesPreviousConnection(t *testing.T) {
	hub := NewHub()

	c1 := newTestClient(hub, "alice")
	c2 := NewClient(hub, nil, c1.User)

	require.Nil(t, hub.Register(c1))

	prev := hub.Register(c2)
	require.Same(t, c1, prev)

	assert.True(t, hub.IsOnline(c1.User.ID))
	assert.Len(t, hub.OnlineUsers(), 1)
}

func TestRemoveIsPointerGuarded(t *testing.T) {
	hub := NewHub()

	c1 := newTestClient(hub, "alice")
	c2 := NewClient(hub, nil, c1.User)

	hub.Register(c1)
	hub.Register(c2)

	// Вытесненное соединение не удаляет запись преемника
	removed, roomID := hub.Remove(c1)
	assert.False(t, removed)
	assert.Nil(t, roomID)
	assert.True(t, hub.IsOnline(c1.User.ID))

	removed, _ = hub.Remove(c2)
	assert.True(t, removed)
	assert.False(t, hub.IsOnline(c1.User.ID))
}

func TestJoinRoomTracksSingleRoom(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "alice")
	hub.Register(c)

	r1 := uuid.New()
	r2 := uuid.New()

	require.Nil(t, hub.JoinRoom(c, r1))
	assert.Equal(t, []uuid.UUID{c.User.ID}, hub.RoomUsers(r1))

	current, ok := c.Room()
	require.True(t, ok)
	assert.Equal(t, r1, current)

	prev := hub.JoinRoom(c, r2)
	require.NotNil(t, prev)
	assert.Equal(t, r1, *prev)

	assert.Empty(t, hub.RoomUsers(r1))
	assert.Equal(t, []uuid.UUID{c.User.ID}, hub.RoomUsers(r2))

	current, ok = c.Room()
	require.True(t, ok)
	assert.Equal(t, r2, current)
}

func TestRejoinSameRoomIsNotALeave(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "alice")
	hub.Register(c)

	r := uuid.New()
	hub.JoinRoom(c, r)

	assert.Nil(t, hub.JoinRoom(c, r))
	assert.Equal(t, []uuid.UUID{c.User.ID}, hub.RoomUsers(r))
}

func TestRemoveCleansLiveMembership(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, "alice")
	b := newTestClient(hub, "bob")
	hub.Register(a)
	hub.Register(b)

	r := uuid.New()
	hub.JoinRoom(a, r)
	hub.JoinRoom(b, r)

	removed, roomID := hub.Remove(a)
	assert.True(t, removed)
	require.NotNil(t, roomID)
	assert.Equal(t, r, *roomID)
	assert.Equal(t, []uuid.UUID{b.User.ID}, hub.RoomUsers(r))

	// Пустое множество комнаты выбрасывается целиком
	removed, roomID = hub.Remove(b)
	assert.True(t, removed)
	require.NotNil(t, roomID)
	assert.Empty(t, hub.rooms)
}

func TestSupersededConnectionDoesNotEvictSuccessor(t *testing.T) {
	hub := NewHub()

	c1 := newTestClient(hub, "alice")
	hub.Register(c1)

	r := uuid.New()
	hub.JoinRoom(c1, r)

	// Переподключение: преемник занимает и реестр, и комнату
	c2 := NewClient(hub, nil, c1.User)
	hub.Register(c2)
	hub.JoinRoom(c2, r)

	removed, roomID := hub.Remove(c1)
	assert.False(t, removed)
	assert.Nil(t, roomID)
	assert.Equal(t, []uuid.UUID{c1.User.ID}, hub.RoomUsers(r))
}

func TestBroadcastToRoomExcept(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, "alice")
	b := newTestClient(hub, "bob")
	c := newTestClient(hub, "carol")
	hub.Register(a)
	hub.Register(b)
	hub.Register(c)

	r := uuid.New()
	hub.JoinRoom(a, r)
	hub.JoinRoom(b, r)

	hub.BroadcastToRoomExcept(r, []byte("hello"), a.User.ID)

	assert.Empty(t, a.Send)
	assert.Len(t, b.Send, 1)
	// Не в комнате — ничего не получает
	assert.Empty(t, c.Send)

	hub.BroadcastToRoom(r, []byte("to-all"))
	assert.Len(t, a.Send, 1)
	assert.Len(t, b.Send, 2)
}

func TestStopLeavesTeardownToDisconnectPath(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "alice")
	hub.Register(c)

	roomID := uuid.New()
	hub.JoinRoom(c, roomID)

	// Stop закрывает только транспорты; реестры и Send остаются
	// за disconnect-путём каждого соединения
	hub.Stop()

	assert.True(t, hub.IsOnline(c.User.ID))
	assert.Contains(t, hub.RoomUsers(roomID), c.User.ID)

	select {
	case c.Send <- []byte("still writable"):
	default:
		t.Fatal("Send closed by Stop")
	}

	removed, left := hub.Remove(c)
	assert.True(t, removed)
	require.NotNil(t, left)
	assert.Equal(t, roomID, *left)
	assert.False(t, hub.IsOnline(c.User.ID))
}
