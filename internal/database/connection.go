package database

import (
	"errors"
	"os"

	"github.com/akozyrev/watchroom/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect открывает Postgres по DATABASE_URL, прогоняет миграции
// и отдаёт готовую обёртку
func Connect() (*Database, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomParticipant{},
		&models.ChatMessage{},
	); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}
