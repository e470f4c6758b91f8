package services

import (
	"context"

	"github.com/akozyrev/watchroom/internal/models"
)

// SyncStore то, что движку синхронизации нужно от хранилища.
// Реализуется database.Database, в тестах подменяется фейком.
type SyncStore interface {
	// GetRoom возвращает комнату с durable-участниками.
	// Отсутствие комнаты — gorm.ErrRecordNotFound.
	GetRoom(ctx context.Context, id string) (*models.Room, error)

	// UpdatePlaybackState читает слот состояния просмотра, применяет
	// apply и пишет обратно. Last-writer-wins, без слияния конкурентных
	// обновлений.
	UpdatePlaybackState(ctx context.Context, roomID string, apply func(*models.PlaybackState)) (*models.PlaybackState, error)

	// SaveChatMessage сохраняет сообщение, заполняя серверные id и created_at
	SaveChatMessage(ctx context.Context, msg *models.ChatMessage) error

	// SetPresence обновляет is_online и last_seen_at пользователя
	SetPresence(ctx context.Context, userID string, online bool) error
}
