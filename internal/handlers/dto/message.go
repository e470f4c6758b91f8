package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/akozyrev/watchroom/internal/models"
)

type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"roomId"`
	Message   string    `json:"message"`
	User      UserInfo  `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewMessageResponse(msg *models.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:      msg.ID,
		RoomID:  msg.RoomID,
		Message: msg.Message,
		User: UserInfo{
			ID:       msg.UserID,
			Username: msg.User.Username,
			Avatar:   msg.User.Avatar,
		},
		CreatedAt: msg.CreatedAt,
	}
}
