package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/akozyrev/watchroom/internal/handlers/dto"
	"github.com/akozyrev/watchroom/internal/models"
	"github.com/akozyrev/watchroom/internal/services"
	ws "github.com/akozyrev/watchroom/internal/websocket"
)

// Тексты этих ошибок — контракт протокола, их видит клиент в error-событии
var (
	ErrRoomNotFound  = errors.New("Room not found")
	ErrNotAuthorized = errors.New("Not authorized to join this room")
	ErrJoiningRoom   = errors.New("Error joining room")
	ErrNotInRoom     = errors.New("Not in a room")
	ErrEmptyMessage  = errors.New("Message cannot be empty")
	ErrSavingMessage = errors.New("Error saving chat message")
)

// Таймаут обращений к хранилищу из обработчиков событий
const storeTimeout = 5 * time.Second

// SyncHandler движок синхронизации комнат: валидирует join-запросы
// по durable-участию, ретранслирует управление просмотром и чат,
// прибирает за отключившимися. Ошибка обработчика уходит только
// отправителю события.
type SyncHandler struct {
	store services.SyncStore
	hub   *ws.Hub
}

func NewSyncHandler(store services.SyncStore, hub *ws.Hub) *SyncHandler {
	return &SyncHandler{store: store, hub: hub}
}

func (h *SyncHandler) HandleEvent(client *ws.Client, ev *ws.Event) error {
	switch ev.Event {
	case ws.EventJoinRoom:
		return h.handleJoinRoom(client, ev)

	case ws.EventVideoPlay, ws.EventVideoPause, ws.EventVideoSeek:
		return h.handleVideo(client, ev)

	case ws.EventChatMessage:
		return h.handleChatMessage(client, ev)

	case ws.EventTypingStart, ws.EventTypingStop:
		return h.handleTyping(client, ev)

	default:
		log.Printf("Unknown event %q from user %s", ev.Event, client.User.ID)
		return nil
	}
}

// handleJoinRoom вход в комнату: durable-участие проверяется на момент
// входа, после чего соединение попадает в live-состав. Соединение
// состоит не больше чем в одной комнате — предыдущая покидается неявно.
func (h *SyncHandler) handleJoinRoom(client *ws.Client, ev *ws.Event) error {
	var payload ws.JoinRoomPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return ws.ErrInvalidPayload
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	room, err := h.store.GetRoom(ctx, payload.RoomID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		log.Printf("Join room %s: %v", payload.RoomID, err)
		return ErrJoiningRoom
	}

	if !room.IsActive {
		return ErrRoomNotFound
	}

	if !room.HasActiveParticipant(client.User.ID) {
		return ErrNotAuthorized
	}

	prevRoom := h.hub.JoinRoom(client, room.ID)
	if prevRoom != nil {
		h.broadcastPresence(ws.EventUserLeft, *prevRoom, client)
	}

	h.broadcastPresence(ws.EventUserJoined, room.ID, client)

	err = client.SendEvent(ws.EventRoomState, ws.RoomStatePayload{
		Room:           dto.NewRoomResponse(room),
		ConnectedUsers: h.hub.RoomUsers(room.ID),
	})
	if err != nil {
		log.Printf("Failed to send room state to user %s: %v", client.User.ID, err)
	}

	log.Printf("User %s joined room %s", client.User.Username, room.ID)
	return nil
}

// handleVideo play/pause/seek: состояние сначала сохраняется, и только
// после успешной записи расходится остальным. Неудачная запись тихо
// съедается — отправителю ошибка не возвращается.
func (h *SyncHandler) handleVideo(client *ws.Client, ev *ws.Event) error {
	roomID, ok := client.Room()
	if !ok {
		// Событие вне комнаты — не ошибка клиенту, просто тишина
		return nil
	}

	var payload ws.VideoPayload
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return ws.ErrInvalidPayload
		}
	}

	now := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	state, err := h.store.UpdatePlaybackState(ctx, roomID.String(), func(s *models.PlaybackState) {
		if payload.VideoURL != "" {
			s.VideoURL = payload.VideoURL
		}
		if payload.Title != "" {
			s.Title = payload.Title
		}
		s.Position = payload.Position

		switch ev.Event {
		case ws.EventVideoPlay:
			s.IsPlaying = true
		case ws.EventVideoPause:
			s.IsPlaying = false
		}

		s.LastUpdated = now
	})
	if err != nil {
		log.Printf("Persist playback state for room %s: %v", roomID, err)
		return nil
	}

	h.broadcast(ev.Event, roomID, ws.VideoBroadcast{
		VideoURL:    state.VideoURL,
		Title:       state.Title,
		Position:    state.Position,
		IsPlaying:   state.IsPlaying,
		TriggeredBy: client.User.Username,
		Timestamp:   now,
	}, &client.User.ID)

	return nil
}

// handleChatMessage сообщение сначала сохраняется; рассылка — только
// после успешной записи и, в отличие от остальных событий, включает
// самого отправителя.
func (h *SyncHandler) handleChatMessage(client *ws.Client, ev *ws.Event) error {
	roomID, ok := client.Room()
	if !ok {
		return ErrNotInRoom
	}

	var payload ws.ChatPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return ws.ErrInvalidPayload
	}

	text := strings.TrimSpace(payload.Message)
	if text == "" {
		return ErrEmptyMessage
	}

	msg := &models.ChatMessage{
		RoomID:  roomID,
		UserID:  client.User.ID,
		Message: text,
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := h.store.SaveChatMessage(ctx, msg); err != nil {
		log.Printf("Save chat message for room %s: %v", roomID, err)
		return ErrSavingMessage
	}

	h.broadcast(ws.EventChatMessage, roomID, ws.ChatBroadcast{
		ID:        msg.ID,
		Message:   msg.Message,
		User:      client.User.Public(),
		Timestamp: msg.CreatedAt,
		RoomID:    roomID,
	}, nil)

	return nil
}

// handleTyping индикатор набора: без персистентности, вне комнаты — no-op
func (h *SyncHandler) handleTyping(client *ws.Client, ev *ws.Event) error {
	roomID, ok := client.Room()
	if !ok {
		return nil
	}

	h.broadcast(ws.EventUserTyping, roomID, ws.TypingBroadcast{
		UserID:   client.User.ID,
		Username: client.User.Username,
		IsTyping: ev.Event == ws.EventTypingStart,
	}, &client.User.ID)

	return nil
}

// HandleDisconnect уборка после разрыва соединения: реестр, live-состав,
// прощальный broadcast, офлайн-статус. Шаги не транзакционны между
// собой; упавший посередине процесс оставит presence устаревшим до
// следующего переподключения.
func (h *SyncHandler) HandleDisconnect(client *ws.Client) {
	removed, roomID := h.hub.Remove(client)

	if roomID != nil {
		h.broadcastPresence(ws.EventUserLeft, *roomID, client)
	}

	// Вытесненное соединение не трогает presence своего преемника
	if removed {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := h.store.SetPresence(ctx, client.User.ID.String(), false); err != nil {
			log.Printf("Set offline status for user %s: %v", client.User.ID, err)
		}
	}
}

func (h *SyncHandler) broadcastPresence(event ws.EventType, roomID uuid.UUID, client *ws.Client) {
	h.broadcast(event, roomID, ws.PresencePayload{
		User:      client.User.Public(),
		Timestamp: time.Now(),
	}, &client.User.ID)
}

func (h *SyncHandler) broadcast(event ws.EventType, roomID uuid.UUID, data interface{}, exclude *uuid.UUID) {
	raw, err := ws.NewEvent(event, data)
	if err != nil {
		log.Printf("Marshal %s event: %v", event, err)
		return
	}

	if exclude != nil {
		h.hub.BroadcastToRoomExcept(roomID, raw, *exclude)
		return
	}
	h.hub.BroadcastToRoom(roomID, raw)
}
