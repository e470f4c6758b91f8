package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/akozyrev/watchroom/internal/models"
)

type UserInfo struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
}

type ParticipantResponse struct {
	User     UserInfo  `json:"user"`
	JoinedAt time.Time `json:"joinedAt"`
	IsOnline bool      `json:"isOnline"`
}

type RoomResponse struct {
	ID           uuid.UUID             `json:"id"`
	Name         string                `json:"name"`
	Description  string                `json:"description,omitempty"`
	HostID       uuid.UUID             `json:"hostId"`
	Settings     models.RoomSettings   `json:"settings"`
	CurrentVideo models.PlaybackState  `json:"currentVideo"`
	IsActive     bool                  `json:"isActive"`
	CreatedAt    time.Time             `json:"createdAt"`
	Participants []ParticipantResponse `json:"participants"`
}

// NewRoomResponse собирает ответ по комнате. Вышедшие участники
// (is_active=false) наружу не отдаются, их строки — внутренняя
// история членства.
func NewRoomResponse(room *models.Room) RoomResponse {
	participants := make([]ParticipantResponse, 0, len(room.Participants))
	for _, p := range room.Participants {
		if !p.IsActive {
			continue
		}
		participants = append(participants, ParticipantResponse{
			User: UserInfo{
				ID:       p.UserID,
				Username: p.User.Username,
				Avatar:   p.User.Avatar,
			},
			JoinedAt: p.JoinedAt,
			IsOnline: p.User.IsOnline,
		})
	}

	return RoomResponse{
		ID:           room.ID,
		Name:         room.Name,
		Description:  room.Description,
		HostID:       room.HostID,
		Settings:     room.Settings,
		CurrentVideo: room.CurrentVideo,
		IsActive:     room.IsActive,
		CreatedAt:    room.CreatedAt,
		Participants: participants,
	}
}
