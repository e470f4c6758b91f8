package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType определяет типы событий протокола
type EventType string

const (
	// Клиент -> сервер
	EventJoinRoom    EventType = "join-room"
	EventVideoPlay   EventType = "video-play"
	EventVideoPause  EventType = "video-pause"
	EventVideoSeek   EventType = "video-seek"
	EventChatMessage EventType = "chat-message"
	EventTypingStart EventType = "typing-start"
	EventTypingStop  EventType = "typing-stop"

	// Сервер -> клиент
	EventRoomState  EventType = "room-state"
	EventUserJoined EventType = "user-joined"
	EventUserLeft   EventType = "user-left"
	EventUserTyping EventType = "user-typing"
	EventError      EventType = "error"
)

// Event конверт протокола: имя события + произвольный payload
type Event struct {
	Event     EventType       `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent собирает сериализованный конверт с серверным timestamp
func NewEvent(event EventType, data interface{}) ([]byte, error) {
	ev := Event{
		Event:     event,
		Timestamp: time.Now(),
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		ev.Data = raw
	}

	return json.Marshal(ev)
}

// Identity профиль пользователя, полученный один раз при handshake.
// Не меняется до переподключения, даже если профиль в базе обновился.
type Identity struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email,omitempty"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
}

// PublicProfile то, что видят другие участники комнаты (без email)
type PublicProfile struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
}

func (i Identity) Public() PublicProfile {
	return PublicProfile{ID: i.ID, Username: i.Username, Avatar: i.Avatar}
}

// Payload'ы событий

type JoinRoomPayload struct {
	RoomID uuid.UUID `json:"roomId"`
}

type PresencePayload struct {
	User      PublicProfile `json:"user"`
	Timestamp time.Time     `json:"timestamp"`
}

type RoomStatePayload struct {
	Room           interface{} `json:"room"`
	ConnectedUsers []uuid.UUID `json:"connectedUsers"`
}

type VideoPayload struct {
	VideoURL string  `json:"videoUrl,omitempty"`
	Title    string  `json:"title,omitempty"`
	Position float64 `json:"position"`
}

type VideoBroadcast struct {
	VideoURL    string    `json:"videoUrl,omitempty"`
	Title       string    `json:"title,omitempty"`
	Position    float64   `json:"position"`
	IsPlaying   bool      `json:"isPlaying"`
	TriggeredBy string    `json:"triggeredBy"`
	Timestamp   time.Time `json:"timestamp"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

type ChatBroadcast struct {
	ID        uuid.UUID     `json:"id"`
	Message   string        `json:"message"`
	User      PublicProfile `json:"user"`
	Timestamp time.Time     `json:"timestamp"`
	RoomID    uuid.UUID     `json:"roomId"`
}

type TypingBroadcast struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	IsTyping bool      `json:"isTyping"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
