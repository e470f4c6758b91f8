package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// RoomSettings хранится в jsonb колонке
type RoomSettings struct {
	IsPrivate       bool `json:"isPrivate"`
	AllowChatting   bool `json:"allowChatting"`
	MaxParticipants int  `json:"maxParticipants"`
}

func (s RoomSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *RoomSettings) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// PlaybackState текущее состояние просмотра комнаты, jsonb.
// Один слот на комнату, last-writer-wins.
type PlaybackState struct {
	VideoURL    string    `json:"videoUrl,omitempty"`
	Title       string    `json:"title,omitempty"`
	Position    float64   `json:"position"`
	IsPlaying   bool      `json:"isPlaying"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func (s PlaybackState) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *PlaybackState) Scan(value interface{}) error {
	return scanJSON(value, s)
}

func scanJSON(value interface{}, dst interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported jsonb source type")
	}
}

type Room struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string    `gorm:"not null"`
	Description  string
	HostID       uuid.UUID     `gorm:"not null"`
	Settings     RoomSettings  `gorm:"type:jsonb"`
	CurrentVideo PlaybackState `gorm:"type:jsonb"`
	IsActive     bool          `gorm:"default:true"`
	CreatedAt    time.Time

	// Связи
	Host         User              `gorm:"foreignKey:HostID"`
	Participants []RoomParticipant `gorm:"foreignKey:RoomID"`
}

// RoomParticipant durable-участие в комнате. is_active=false означает,
// что пользователь вышел, но строка остаётся для истории.
type RoomParticipant struct {
	RoomID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	IsActive bool      `gorm:"default:true"`
	JoinedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}

// HasActiveParticipant проверяет durable-участие с активным статусом
func (r *Room) HasActiveParticipant(userID uuid.UUID) bool {
	for _, p := range r.Participants {
		if p.UserID == userID && p.IsActive {
			return true
		}
	}
	return false
}

// ActiveParticipantCount количество активных участников
func (r *Room) ActiveParticipantCount() int {
	n := 0
	for _, p := range r.Participants {
		if p.IsActive {
			n++
		}
	}
	return n
}
