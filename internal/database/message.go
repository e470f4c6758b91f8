package database

import (
	"context"

	"github.com/akozyrev/watchroom/internal/models"
	"github.com/google/uuid"
)

// SaveChatMessage сохраняет сообщение чата. Серверные id и created_at
// заполняются базой и возвращаются в msg.
func (d *Database) SaveChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	return d.db.WithContext(ctx).Create(msg).Error
}

// GetRoomMessages история сообщений комнаты с пагинацией назад
func (d *Database) GetRoomMessages(roomID string, limit int, beforeID *uuid.UUID) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage

	query := d.db.Where("room_id = ?", roomID)

	if beforeID != nil {
		var before models.ChatMessage
		if err := d.db.First(&before, "id = ?", beforeID).Error; err == nil {
			query = query.Where("created_at < ?", before.CreatedAt)
		}
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Preload("User").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Старые сообщения первыми
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
