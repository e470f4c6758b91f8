package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/akozyrev/watchroom/internal/database"
	"github.com/akozyrev/watchroom/internal/middleware"
	ws "github.com/akozyrev/watchroom/internal/websocket"
)

// WebSocketHandler поднимает соединения движка синхронизации
type WebSocketHandler struct {
	hub      *ws.Hub
	db       *database.Database
	sync     *SyncHandler
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub, db *database.Database, sync *SyncHandler) *WebSocketHandler {
	return &WebSocketHandler{
		hub:  hub,
		db:   db,
		sync: sync,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: сверять origin со списком из конфига
				return true
			},
		},
	}
}

// HandleWebSocket завершает handshake: токен уже проверен в middleware,
// здесь профиль загружается один раз и замораживается на всё время
// жизни соединения.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.db.GetUser(userID.(uuid.UUID).String())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication error: Invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, ws.Identity{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Avatar:   user.Avatar,
	})

	// Переподключение вытесняет старое соединение того же пользователя
	if prev := h.hub.Register(client); prev != nil {
		log.Printf("User %s reconnected, closing stale connection", user.Username)
		prev.Conn.Close()
	}

	// Онлайн-статус ставится сразу после регистрации, до входа в комнату
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.db.SetPresence(ctx, user.ID.String(), true); err != nil {
		log.Printf("Set online status for user %s: %v", user.ID, err)
	}

	go client.WritePump()
	go client.ReadPump(h.sync)
}
