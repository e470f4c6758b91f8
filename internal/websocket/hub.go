package websocket

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Hub владеет реестром соединений и live-составом комнат.
// Реестр: не больше одного соединения на пользователя. Live-состав
// комнаты — эфемерное множество, живёт только в памяти процесса и
// строится заново после рестарта.
type Hub struct {
	mu sync.RWMutex

	// Реестр соединений: userID -> живое соединение
	clients map[uuid.UUID]*Client

	// Live-состав комнат: roomID -> userID -> соединение
	rooms map[uuid.UUID]map[uuid.UUID]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		rooms:   make(map[uuid.UUID]map[uuid.UUID]*Client),
	}
}

// Register регистрирует соединение. Если у пользователя уже было
// живое соединение, запись вытесняется, а старое соединение
// возвращается вызывающему — тот обязан его закрыть.
func (h *Hub) Register(c *Client) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.clients[c.User.ID]
	h.clients[c.User.ID] = c

	log.Printf("User %s connected", c.User.Username)
	return prev
}

// Remove убирает соединение из реестра и из live-состава комнаты.
// Сравнение по указателю: вытесненное соединение не трогает записи
// своего преемника. Возвращает, владело ли соединение записью
// реестра, и комнату, из которой оно реально удалено.
func (h *Hub) Remove(c *Client) (removed bool, roomID *uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := c.Room(); ok {
		if room, ok := h.rooms[current]; ok && room[c.User.ID] == c {
			delete(room, c.User.ID)
			if len(room) == 0 {
				delete(h.rooms, current)
			}
			id := current
			roomID = &id
		}
	}
	c.setRoom(nil)

	if h.clients[c.User.ID] == c {
		delete(h.clients, c.User.ID)
		close(c.Send)
		removed = true
		log.Printf("User %s disconnected", c.User.Username)
	}

	return removed, roomID
}

// JoinRoom переводит соединение в комнату. Соединение состоит не
// больше чем в одной комнате: предыдущая покидается неявно, её id
// возвращается для прощального broadcast.
func (h *Hub) JoinRoom(c *Client, roomID uuid.UUID) (prevRoom *uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := c.Room(); ok && current != roomID {
		if room, ok := h.rooms[current]; ok && room[c.User.ID] == c {
			delete(room, c.User.ID)
			if len(room) == 0 {
				delete(h.rooms, current)
			}
			id := current
			prevRoom = &id
		}
	}

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}
	h.rooms[roomID][c.User.ID] = c

	id := roomID
	c.setRoom(&id)

	return prevRoom
}

// RoomUsers список пользователей, подключённых к комнате
func (h *Hub) RoomUsers(roomID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(h.rooms[roomID]))
	for userID := range h.rooms[roomID] {
		users = append(users, userID)
	}
	return users
}

// IsOnline есть ли у пользователя живое соединение
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.clients[userID]
	return ok
}

// OnlineUsers список пользователей с живыми соединениями
func (h *Hub) OnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	return users
}

// BroadcastToRoom отправляет событие всем в комнате, включая автора
func (h *Hub) BroadcastToRoom(roomID uuid.UUID, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.broadcastToRoomUnsafe(roomID, message, uuid.Nil)
}

// BroadcastToRoomExcept отправляет событие всем в комнате, кроме автора
func (h *Hub) BroadcastToRoomExcept(roomID uuid.UUID, message []byte, exclude uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.broadcastToRoomUnsafe(roomID, message, exclude)
}

func (h *Hub) broadcastToRoomUnsafe(roomID uuid.UUID, message []byte, exclude uuid.UUID) {
	for userID, client := range h.rooms[roomID] {
		if userID == exclude {
			continue
		}
		select {
		case client.Send <- message:
		default:
			log.Printf("Send queue full for user %s, dropping event", userID)
		}
	}
}

// Stop закрывает транспорты всех живых соединений. Реестры не
// трогает: уборка (user-left, офлайн-статус, закрытие Send) идёт
// обычным disconnect-путём, когда read pump каждого соединения
// завершится.
func (h *Hub) Stop() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
}
