package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/akozyrev/watchroom/internal/models"
	ws "github.com/akozyrev/watchroom/internal/websocket"
)

// fakeStore in-memory замена хранилища для тестов движка
type fakeStore struct {
	mu       sync.Mutex
	rooms    map[string]*models.Room
	playback map[string]models.PlaybackState
	messages []*models.ChatMessage
	presence map[string]bool

	failSaveMessage bool
	failPlayback    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:    make(map[string]*models.Room),
		playback: make(map[string]models.PlaybackState),
		presence: make(map[string]bool),
	}
}

func (f *fakeStore) GetRoom(_ context.Context, id string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	room, ok := f.rooms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return room, nil
}

func (f *fakeStore) UpdatePlaybackState(_ context.Context, roomID string, apply func(*models.PlaybackState)) (*models.PlaybackState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failPlayback {
		return nil, errors.New("store unavailable")
	}

	state := f.playback[roomID]
	apply(&state)
	f.playback[roomID] = state
	return &state, nil
}

func (f *fakeStore) SaveChatMessage(_ context.Context, msg *models.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSaveMessage {
		return errors.New("store unavailable")
	}

	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) SetPresence(_ context.Context, userID string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.presence[userID] = online
	return nil
}

func (f *fakeStore) savedMessages() []*models.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.ChatMessage(nil), f.messages...)
}

// Окружение: хаб, движок и комната с двумя durable-участниками

type syncEnv struct {
	hub    *ws.Hub
	store  *fakeStore
	engine *SyncHandler
	room   *models.Room
}

func newSyncEnv(t *testing.T, users ...ws.Identity) *syncEnv {
	t.Helper()

	room := &models.Room{
		ID:       uuid.New(),
		Name:     "movie night",
		IsActive: true,
		Settings: models.RoomSettings{AllowChatting: true, MaxParticipants: 50},
	}
	for _, u := range users {
		room.Participants = append(room.Participants, models.RoomParticipant{
			RoomID:   room.ID,
			UserID:   u.ID,
			IsActive: true,
			User:     models.User{ID: u.ID, Username: u.Username},
		})
	}

	store := newFakeStore()
	store.rooms[room.ID.String()] = room

	hub := ws.NewHub()
	return &syncEnv{
		hub:    hub,
		store:  store,
		engine: NewSyncHandler(store, hub),
		room:   room,
	}
}

func identity(name string) ws.Identity {
	return ws.Identity{ID: uuid.New(), Username: name}
}

func (e *syncEnv) connect(t *testing.T, user ws.Identity) *ws.Client {
	t.Helper()
	client := ws.NewClient(e.hub, nil, user)
	require.Nil(t, e.hub.Register(client))
	return client
}

func (e *syncEnv) join(t *testing.T, client *ws.Client) {
	t.Helper()
	require.NoError(t, e.engine.HandleEvent(client, event(t, ws.EventJoinRoom, ws.JoinRoomPayload{RoomID: e.room.ID})))
}

func event(t *testing.T, eventType ws.EventType, payload interface{}) *ws.Event {
	t.Helper()
	ev := &ws.Event{Event: eventType, Timestamp: time.Now()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		ev.Data = raw
	}
	return ev
}

func recvEvent(t *testing.T, client *ws.Client) ws.Event {
	t.Helper()
	select {
	case raw := <-client.Send:
		var ev ws.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	default:
		t.Fatal("expected a queued event")
		return ws.Event{}
	}
}

func decodeData(t *testing.T, ev ws.Event, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(ev.Data, dst))
}

func drain(client *ws.Client) {
	for {
		select {
		case <-client.Send:
		default:
			return
		}
	}
}

func TestJoinRoomSnapshotAndPresence(t *testing.T) {
	alice := identity("alice")
	bob := identity("bob")
	env := newSyncEnv(t, alice, bob)

	a := env.connect(t, alice)
	env.join(t, a)

	state := recvEvent(t, a)
	assert.Equal(t, ws.EventRoomState, state.Event)

	var snapshot ws.RoomStatePayload
	decodeData(t, state, &snapshot)
	assert.Equal(t, []uuid.UUID{alice.ID}, snapshot.ConnectedUsers)

	b := env.connect(t, bob)
	env.join(t, b)

	// Остальные получают user-joined, сам вошедший — только снапшот
	joined := recvEvent(t, a)
	assert.Equal(t, ws.EventUserJoined, joined.Event)

	var presence ws.PresencePayload
	decodeData(t, joined, &presence)
	assert.Equal(t, bob.ID, presence.User.ID)
	assert.Equal(t, "bob", presence.User.Username)

	state = recvEvent(t, b)
	assert.Equal(t, ws.EventRoomState, state.Event)
	decodeData(t, state, &snapshot)
	assert.ElementsMatch(t, []uuid.UUID{alice.ID, bob.ID}, snapshot.ConnectedUsers)
	assert.Empty(t, b.Send)
}

func TestJoinRoomUnknownRoom(t *testing.T) {
	alice := identity("alice")
	env := newSyncEnv(t, alice)
	a := env.connect(t, alice)

	err := env.engine.HandleEvent(a, event(t, ws.EventJoinRoom, ws.JoinRoomPayload{RoomID: uuid.New()}))
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, inRoom := a.Room()
	assert.False(t, inRoom)
}

func TestJoinRoomInactiveRoom(t *testing.T) {
	alice := identity("alice")
	env := newSyncEnv(t, alice)
	env.room.IsActive = false

	a := env.connect(t, alice)
	err := env.engine.HandleEvent(a, event(t, ws.EventJoinRoom, ws.JoinRoomPayload{RoomID: env.room.ID}))
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoomRejectsNonParticipant(t *testing.T) {
	alice := identity("alice")
	env := newSyncEnv(t, alice)

	a := env.connect(t, alice)
	env.join(t, a)
	drain(a)

	mallory := identity("mallory")
	m := env.connect(t, mallory)

	err := env.engine.HandleEvent(m, event(t, ws.EventJoinRoom, ws.JoinRoomPayload{RoomID: env.room.ID}))
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// Live-состав не изменился, никто ничего не получил
	assert.Equal(t, []uuid.UUID{alice.ID}, env.hub.RoomUsers(env.room.ID))
	assert.Empty(t, a.Send)
}

func TestJoinRoomRejectsInactiveParticipant(t *testing.T) {
	alice := identity("alice")
	env := newSyncEnv(t, alice)
	env.room.Participants[0].IsActive = false

	a := env.connect(t, alice)
	err := env.engine.HandleEvent(a, event(t, ws.EventJoinRoom, ws.JoinRoomPayload{RoomID: env.room.ID}))
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestJoinSecondRoomLeavesFirst(t *testing.T) {
	alice := identity("alice")
	bob := identity("bob")
	env := newSyncEnv(t, alice, bob)

	second := &models.Room{
		ID:       uuid.New(),
		Name:     "afterparty",
		IsActive: true,
		Participants: []models.RoomParticipant{{
			UserID:   alice.ID,
			IsActive: true,
			User:     models.User{ID: alice.ID, Username: "alice"},
		}},
	}
	env.store.rooms[second.ID.String()] = second

	a := env.connect(t, alice)
	b := env.connect(t, bob)
	env.join(t, a)
	env.join(t, b)
	drain(a)
	drain(b)

	require.NoError(t, env.engine.HandleEvent(a, event(t, ws.EventJoinRoom, ws.JoinRoomPayload{RoomID: second.ID})))

	left := recvEvent(t, b)
	assert.Equal(t, ws.EventUserLeft, left.Event)

	assert.Equal(t, []uuid.UUID{bob.ID}, env.hub.RoomUsers(env.room.ID))
	assert.Equal(t, []uuid.UUID{alice.ID}, env.hub.RoomUsers(second.ID))
}

func TestChatPersistsBeforeBroadcast(t *testing.T) {
	alice := identity("alice")
	bob := identity("bob")
	env := newSyncEnv(t, alice, bob)

	a := env.connect(t, alice)
	b := env.connect(t, bob)
	env.join(t, a)
	env.join(t, b)
	drain(a)
	drain(b)

	require.NoError(t, env.engine.HandleEvent(a, event(t, ws.EventChatMessage, ws.ChatPayload{Message: "  hi  "})))

	saved := env.store.savedMessages()
	require.Len(t, saved, 1)
	assert.Equal(t, "hi", saved[0].Message)
	assert.Equal(t, alice.ID, saved[0].UserID)
	assert.Equal(t, env.room.ID, saved[0].RoomID)

	// Чат — единственная рассылка, включающая отправителя
	for _, client := range []*ws.Client{a, b} {
		ev := recvEvent(t, client)
		assert.Equal(t, ws.EventChatMessage, ev.Event)

		var chat ws.ChatBroadcast
		decodeData(t, ev, &chat)
		assert.Equal(t, saved[0].ID, chat.ID)
		assert.Equal(t, "hi", chat.Message)
		assert.Equal(t, alice.ID, chat.User.ID)
		assert.Equal(t, env.room.ID, chat.RoomID)
		assert.False(t, chat.Timestamp.IsZero())
	}
}

func TestChatValidation(t *testing.T) {
	alice := identity("alice")
	env := newSyncEnv(t, alice)

	a := env.connect(t, alice)

	err := env.engine.HandleEvent(a, event(t, ws.EventChatMessage, ws.ChatPayload{Message: "hi"}))
	assert.ErrorIs(t, err, ErrNotInRoom)

	env.join(t, a)
	drain(a)

	err = env.engine.HandleEvent(a, event(t, ws.EventChatMessage, ws.ChatPayload{Message: "   "}))
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, env.store.savedMessages())
	assert.Empty(t, a.Send)
}

func TestChatPersistenceFailureIsNotBroadcast(t *testing.T) {
	alice := identity("alice")
	bob := identity("bob")
	env := newSyncEnv(t, alice, bob)

	a := env.connect(t, alice)
	b := env.connect(t, bob)
	env.join(t, a)
	env.join(t, b)
	drain(a)
	drain(b)

	env.store.failSaveMessage = true

	err := env.engine.HandleEvent(a, event(t, ws.EventChatMessage, ws.ChatPayload{Message: "hi"}))
	assert.ErrorIs(t, err, ErrSavingMessage)
	assert.Empty(t, a.Send)
	assert.Empty(t, b.Send)
}

func TestVideoPlayPersistsAndBroadcastsToOthers(t *testing.T) {
	alice := identity("alice")
	bob := identity("bob")
	env := newSyncEnv(t, alice, bob)

	a := env.connect(t, alice)
	b := env.connect(t, bob)
	env.join(t, a)
	env.join(t, b)
	drain(a)
	drain(b)

	payload := ws.VideoPayload{VideoURL: "https://cdn.example/movie.mp4", Position: 42.5}
	require.NoError(t, env.engine.HandleEvent(a, event(t, ws.EventVideoPlay, payload)))

	state := env.store.playback[env.room.ID.String()]
	assert.True(t, state.IsPlaying)
	assert.Equal(t, 42.5, state.Position)
	assert.Equal(t, "https://cdn.example/movie.mp4", state.VideoURL)
	assert.False(t, state.LastUpdated.IsZero())

	// Отправитель исключён из рассылки
	assert.Empty(t, a.Send)

	ev := recvEvent(t, b)
	assert.Equal(t, ws.EventVideoPlay, ev.Event)

	var broadcast ws.VideoBroadcast
	decodeData(t, ev, &broadcast)
	assert.True(t, broadcast.IsPlaying)
	assert.Equal(t, 42.5, broadcast.Position)
	assert.Equal(t, "alice", broadcast.TriggeredBy)
}

func TestVideoPauseAndSeek(t *testing.T) {
	alice := identity("alice")
	env := newSyncEnv(t, alice)

	a := env.connect(t, alice)
	env.join(t, a)
	drain(a)

	require.NoError(t, env.engine.HandleEvent(a, event(t, ws.EventVideoPlay, ws.VideoPayload{Position: 10})))
	require.NoError(t, env.engine.HandleEvent(a, event(t, ws.EventVideoSeek, ws.VideoPayload{Position: 99})))

	// seek двигает позицию, не трогая флаг воспроизведения
	state := env.store.playback[env.room.ID.String()]
	assert.True(t, state.IsPlaying)
	assert.Equal(t, 99.0, state.Position)

	require.NoError(t, env.engine.HandleEvent(a, event(t, ws.EventVideoPause, ws.VideoPayload{Position: 100})))
	state = env.store.playback[env.room.ID.String()]
	assert.False(t, state.IsPlaying)
}

func TestVideoPersistenceFailureIsSilent(t *testing.T) {
	alice := identity("alice")
	bob := identity("bob")
	env := newSyncEnv(t, alice, bob)

	a := env.connect(t, alice)
	b := env.connect(t, bob)
	env.join(t, a)
	env.join(t, b)
	drain(a)
	drain(b)

	env.store.failPlayback = true

	// Ошибки отправителю нет, рассылки тоже
	require.NoError(t, env.engine.HandleEvent(a, event(t, ws.EventVideoPlay, ws.VideoPayload{Position: 5})))
	assert.Empty(t, a.Send)
	assert.Empty(t, b.Send)
}

func TestVideoOutsideRoomIsSilent(t *testing.T) {
	alice := identity("alice")
	env := newSyncEnv(t, alice)
	a := env.connect(t, alice)

	require.NoError(t, env.engine.HandleEvent(a, event(t, ws.EventVideoPlay, ws.VideoPayload{Position: 5})))
	assert.Empty(t, a.Send)
	assert.Empty(t, env.store.playback)
}

func TestTypingIndicators(t *testing.T) {
	alice := identity("alice")
	bob := identity("bob")
	env := newSyncEnv(t, alice, bob)

	a := env.connect(t, alice)
	b := env.connect(t, bob)

	// Вне комнаты — no-op
	require.NoError(t, env.engine.HandleEvent(a, event(t, ws.EventTypingStart, nil)))
	assert.Empty(t, b.Send)

	env.join(t, a)
	env.join(t, b)
	drain(a)
	drain(b)

	require.NoError(t, env.engine.HandleEvent(a, event(t, ws.EventTypingStart, nil)))

	ev := recvEvent(t, b)
	assert.Equal(t, ws.EventUserTyping, ev.Event)

	var typing ws.TypingBroadcast
	decodeData(t, ev, &typing)
	assert.Equal(t, alice.ID, typing.UserID)
	assert.Equal(t, "alice", typing.Username)
	assert.True(t, typing.IsTyping)
	assert.Empty(t, a.Send)

	require.NoError(t, env.engine.HandleEvent(a, event(t, ws.EventTypingStop, nil)))
	decodeData(t, recvEvent(t, b), &typing)
	assert.False(t, typing.IsTyping)
}

func TestDisconnectCleanup(t *testing.T) {
	alice := identity("alice")
	bob := identity("bob")
	env := newSyncEnv(t, alice, bob)

	a := env.connect(t, alice)
	b := env.connect(t, bob)
	env.join(t, a)
	env.join(t, b)
	drain(a)
	drain(b)

	env.engine.HandleDisconnect(a)

	left := recvEvent(t, b)
	assert.Equal(t, ws.EventUserLeft, left.Event)

	var presence ws.PresencePayload
	decodeData(t, left, &presence)
	assert.Equal(t, alice.ID, presence.User.ID)

	assert.False(t, env.hub.IsOnline(alice.ID))
	assert.Equal(t, []uuid.UUID{bob.ID}, env.hub.RoomUsers(env.room.ID))

	online, ok := env.store.presence[alice.ID.String()]
	require.True(t, ok)
	assert.False(t, online)
}

func TestSupersededDisconnectKeepsSuccessorPresence(t *testing.T) {
	alice := identity("alice")
	env := newSyncEnv(t, alice)

	c1 := env.connect(t, alice)

	c2 := ws.NewClient(env.hub, nil, alice)
	require.Same(t, c1, env.hub.Register(c2))

	// Разрыв вытесненного соединения не гасит presence преемника
	env.engine.HandleDisconnect(c1)
	_, touched := env.store.presence[alice.ID.String()]
	assert.False(t, touched)
	assert.True(t, env.hub.IsOnline(alice.ID))
}
