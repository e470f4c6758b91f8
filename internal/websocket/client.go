package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер события
	maxMessageSize = 64 * 1024
)

// EventHandler обрабатывает события одного клиента. Ошибка уходит
// только отправителю и не влияет ни на соединение, ни на других.
type EventHandler interface {
	HandleEvent(client *Client, event *Event) error
	HandleDisconnect(client *Client)
}

// Client одно живое соединение. На пользователя в реестре всегда
// не больше одного Client; новое соединение вытесняет старое.
type Client struct {
	User        Identity
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time
	Hub         *Hub

	mu          sync.RWMutex
	currentRoom *uuid.UUID
}

func NewClient(hub *Hub, conn *websocket.Conn, user Identity) *Client {
	return &Client{
		User:        user,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		ConnectedAt: time.Now(),
		Hub:         hub,
	}
}

// Room текущая комната соединения, если оно в комнате
func (c *Client) Room() (uuid.UUID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.currentRoom == nil {
		return uuid.Nil, false
	}
	return *c.currentRoom, true
}

func (c *Client) setRoom(roomID *uuid.UUID) {
	c.mu.Lock()
	c.currentRoom = roomID
	c.mu.Unlock()
}

// ReadPump читает события клиента. События одного соединения
// обрабатываются строго по порядку поступления.
func (c *Client) ReadPump(handler EventHandler) {
	defer func() {
		handler.HandleDisconnect(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev Event
		err := c.Conn.ReadJSON(&ev)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error (user %s): %v", c.User.ID, err)
			}
			break
		}

		if err := handler.HandleEvent(c, &ev); err != nil {
			c.SendError(err.Error())
		}
	}
}

// WritePump отправляет события клиенту и держит keepalive
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Досылаем накопившиеся события
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendEvent кладёт событие в очередь клиента без блокировки
func (c *Client) SendEvent(event EventType, data interface{}) error {
	raw, err := NewEvent(event, data)
	if err != nil {
		return err
	}

	select {
	case c.Send <- raw:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) SendError(message string) {
	if err := c.SendEvent(EventError, ErrorPayload{Message: message}); err != nil {
		log.Printf("Failed to send error to user %s: %v", c.User.ID, err)
	}
}
