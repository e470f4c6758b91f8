package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/akozyrev/watchroom/internal/database"
	"github.com/akozyrev/watchroom/internal/handlers/dto"
	"github.com/akozyrev/watchroom/internal/middleware"
	"github.com/akozyrev/watchroom/internal/models"
	ws "github.com/akozyrev/watchroom/internal/websocket"
)

const defaultMaxParticipants = 50

// RoomHandler durable-сторона комнат: создание, состав, настройки.
// Live-состав и трансляции — забота движка синхронизации.
type RoomHandler struct {
	db  *database.Database
	hub *ws.Hub
}

func NewRoomHandler(db *database.Database, hub *ws.Hub) *RoomHandler {
	return &RoomHandler{db: db, hub: hub}
}

// CreateRoom создает комнату, хост становится активным участником
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		Settings    struct {
			IsPrivate       bool  `json:"isPrivate"`
			AllowChatting   *bool `json:"allowChatting"`
			MaxParticipants int   `json:"maxParticipants"`
		} `json:"settings"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings := models.RoomSettings{
		IsPrivate:       req.Settings.IsPrivate,
		AllowChatting:   true,
		MaxParticipants: req.Settings.MaxParticipants,
	}
	if req.Settings.AllowChatting != nil {
		settings.AllowChatting = *req.Settings.AllowChatting
	}
	if settings.MaxParticipants <= 0 {
		settings.MaxParticipants = defaultMaxParticipants
	}

	room := &models.Room{
		Name:        req.Name,
		Description: req.Description,
		HostID:      userID,
		Settings:    settings,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}

	if err := h.db.CreateRoom(room); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	if err := h.db.AddParticipant(room.ID.String(), userID.String()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add host as participant"})
		return
	}

	fullRoom, err := h.db.GetRoom(c.Request.Context(), room.ID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch room"})
		return
	}

	c.JSON(http.StatusCreated, dto.NewRoomResponse(fullRoom))
}

// GetMyRooms комнаты, где пользователь — активный участник
func (h *RoomHandler) GetMyRooms(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	rooms, err := h.db.GetUserRooms(userID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get rooms"})
		return
	}

	response := make([]gin.H, len(rooms))
	for i := range rooms {
		response[i] = gin.H{
			"room":        dto.NewRoomResponse(&rooms[i]),
			"onlineCount": len(h.hub.RoomUsers(rooms[i].ID)),
		}
	}

	c.JSON(http.StatusOK, gin.H{"rooms": response})
}

// GetRoom информация о комнате плюс live-состав
func (h *RoomHandler) GetRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	room, err := h.db.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	if !room.HasActiveParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a participant of this room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room":           dto.NewRoomResponse(room),
		"connectedUsers": h.hub.RoomUsers(room.ID),
	})
}

// JoinRoom durable-вход: вставка или реактивация участия.
// Live-вход делается отдельно, через join-room по WebSocket.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID := c.Param("id")

	room, err := h.db.GetRoom(c.Request.Context(), roomID)
	if err != nil || !room.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found or inactive"})
		return
	}

	if room.HasActiveParticipant(userID) {
		c.JSON(http.StatusOK, gin.H{"message": "already in room"})
		return
	}

	if room.ActiveParticipantCount() >= room.Settings.MaxParticipants {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room is full"})
		return
	}

	if err := h.db.AddParticipant(roomID, userID.String()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "joined room successfully"})
}

// LeaveRoom durable-выход: участие помечается неактивным
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID := c.Param("id")

	room, err := h.db.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	if room.HostID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "host cannot leave own room"})
		return
	}

	if err := h.db.DeactivateParticipant(roomID, userID.String()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "left room successfully"})
}

// DeleteRoom хост снимает комнату с активности; записи остаются
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID := c.Param("id")

	room, err := h.db.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	if room.HostID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only host can delete room"})
		return
	}

	if err := h.db.DeactivateRoom(roomID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "room deleted successfully"})
}
