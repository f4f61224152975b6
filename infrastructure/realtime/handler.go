package realtime

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"peer-chat/auth"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"peer-chat/errors"
	"peer-chat/services"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SocketHandler upgrades authenticated requests to the event channel and
// dispatches inbound frames until the client goes away.
type SocketHandler struct {
	service         services.IRealtimeService
	log             *slog.Logger
	bufferSize      int
	inflightTimeout time.Duration
	upgrader        websocket.Upgrader
}

func NewSocketHandler(service services.IRealtimeService, bufferSize int, log *slog.Logger) *SocketHandler {
	return &SocketHandler{
		service:         service,
		log:             log,
		bufferSize:      bufferSize,
		inflightTimeout: 5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Callers are authenticated by token, not by origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// relayedMessage accepts both the stored message shape and the legacy one where
// the id is "_id" and the chat is a populated object.
type relayedMessage struct {
	ID       string          `json:"id"`
	LegacyID string          `json:"_id"`
	Chat     json.RawMessage `json:"chat"`
	ChatID   string          `json:"chatId"`
}

func (h *SocketHandler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.CallerID(c)
		ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response
			h.log.Debug("Websocket upgrade failed", "user_id", userID, "error", err)
			return
		}

		conn := NewConnection(userID, ws, h.bufferSize, h.log)
		conn.Start()
		defer func() {
			h.service.Disconnect(conn)
			conn.Close()
		}()

		ws.SetReadLimit(readLimit)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
					!stderrors.Is(err, websocket.ErrCloseSent) {
					h.log.Debug("Event channel read ended", "conn_id", conn.ID(), "error", err)
				}
				return
			}
			var frame event.InboundEnvelope
			if err = json.Unmarshal(data, &frame); err != nil {
				h.replyError(conn, fmt.Errorf("%w: invalid frame", errors.ErrInvalidArgument))
				continue
			}
			if err = h.dispatch(c.Request.Context(), conn, frame); err != nil {
				h.replyError(conn, err)
			}
		}
	}
}

func (h *SocketHandler) dispatch(parent context.Context, conn *Connection, frame event.InboundEnvelope) error {
	ctx, cancel := context.WithTimeout(parent, h.inflightTimeout)
	defer cancel()

	switch frame.Event {
	case event.Setup:
		var payload event.SetupPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return fmt.Errorf("%w: setup expects {userId}", errors.ErrInvalidArgument)
		}
		return h.service.Setup(conn, payload.UserID)
	case event.JoinChat, event.LeaveChat, event.Typing, event.StopTyping:
		chatID, err := decodeChatID(frame.Data)
		if err != nil {
			return err
		}
		switch frame.Event {
		case event.JoinChat:
			return h.service.Join(ctx, conn, chatID)
		case event.LeaveChat:
			h.service.Leave(conn, chatID)
		case event.Typing:
			return h.service.Typing(conn, chatID)
		default:
			h.service.StopTyping(conn, chatID)
		}
		return nil
	case event.NewMessage:
		chatID, messageID, err := decodeRelayed(frame.Data)
		if err != nil {
			return err
		}
		return h.service.RelayMessage(ctx, conn, chatID, messageID)
	default:
		return fmt.Errorf("%w: unsupported event %q", errors.ErrInvalidArgument, frame.Event)
	}
}

// decodeChatID reads a chat id given either as a bare string or as an object
// carrying chatId or _id.
func decodeChatID(data json.RawMessage) (chat.ChatID, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil && id != "" {
		return chat.ChatID(id), nil
	}
	var object struct {
		ChatID   string `json:"chatId"`
		LegacyID string `json:"_id"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(data, &object); err == nil {
		for _, candidate := range []string{object.ChatID, object.LegacyID, object.ID} {
			if candidate != "" {
				return chat.ChatID(candidate), nil
			}
		}
	}
	return "", fmt.Errorf("%w: a chat id is required", errors.ErrInvalidArgument)
}

func decodeRelayed(data json.RawMessage) (chat.ChatID, chat.MessageID, error) {
	var msg relayedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: new message expects a message", errors.ErrInvalidArgument)
	}
	chatID := chat.ChatID(msg.ChatID)
	if chatID == "" && len(msg.Chat) > 0 {
		var err error
		if chatID, err = decodeChatID(msg.Chat); err != nil {
			return "", uuid.Nil, err
		}
	}
	if chatID == "" {
		return "", uuid.Nil, fmt.Errorf("%w: a chat id is required", errors.ErrInvalidArgument)
	}
	raw := msg.ID
	if raw == "" {
		raw = msg.LegacyID
	}
	messageID, err := uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: malformed message id", errors.ErrInvalidArgument)
	}
	return chatID, messageID, nil
}

func (h *SocketHandler) replyError(conn *Connection, err error) {
	h.log.Debug("Event rejected", "conn_id", conn.ID(), "error", err)
	_ = conn.Send(event.Envelope{
		Event: event.Error,
		Data:  event.ErrorPayload{Kind: errors.Kind(err), Message: err.Error()},
	})
}

// RegisterRoutes mounts GET /ws on g, which must carry the auth middleware.
func RegisterRoutes(g *gin.RouterGroup, h *SocketHandler) {
	g.GET("/ws", h.Handle())
}
