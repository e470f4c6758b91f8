package database

import (
	"context"
	"errors"
	"time"

	"github.com/akozyrev/watchroom/internal/models"
	"gorm.io/gorm"
)

func (d *Database) CreateRoom(room *models.Room) error {
	return d.db.Create(room).Error
}

// GetRoom возвращает комнату вместе с durable-участниками
func (d *Database) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Preload("Host").
		First(&room, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetUserRooms комнаты, где пользователь — активный durable-участник
func (d *Database) GetUserRooms(userID string) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.
		Joins("JOIN room_participants rp ON rp.room_id = rooms.id").
		Where("rp.user_id = ? AND rp.is_active = true AND rooms.is_active = true", userID).
		Preload("Participants").
		Preload("Participants.User").
		Preload("Host").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// AddParticipant добавляет durable-участника или реактивирует вышедшего
func (d *Database) AddParticipant(roomID, userID string) error {
	var participant models.RoomParticipant
	err := d.db.
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&participant).Error

	if err == nil {
		// Вышедший участник возвращается
		return d.db.Model(&participant).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			Updates(map[string]interface{}{
				"is_active": true,
				"joined_at": time.Now(),
			}).Error
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return d.db.Exec(
		"INSERT INTO room_participants (room_id, user_id, is_active, joined_at) VALUES (?, ?, true, ?)",
		roomID, userID, time.Now(),
	).Error
}

// DeactivateParticipant помечает durable-участие неактивным.
// Строка остаётся: история сообщений участника не сиротеет.
func (d *Database) DeactivateParticipant(roomID, userID string) error {
	return d.db.Model(&models.RoomParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("is_active", false).Error
}

// DeactivateRoom снимает комнату с глобальной активности
func (d *Database) DeactivateRoom(id string) error {
	return d.db.Model(&models.Room{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

func (d *Database) UpdateRoom(room *models.Room) error {
	return d.db.Save(room).Error
}

// UpdatePlaybackState читает слот состояния просмотра, применяет apply
// и пишет обратно. Last-writer-wins: конкурентные обновления не
// сливаются, побеждает последняя запись.
func (d *Database) UpdatePlaybackState(ctx context.Context, roomID string, apply func(*models.PlaybackState)) (*models.PlaybackState, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		return nil, err
	}

	state := room.CurrentVideo
	apply(&state)

	err := d.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("current_video", state).Error
	if err != nil {
		return nil, err
	}

	return &state, nil
}
