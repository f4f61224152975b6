// Package client talks to the chat server: REST calls for chats and history, and a
// reconnecting event channel that feeds an Inbox.
package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"peer-chat/errors"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
)

const (
	backOffInit   = 500 * time.Millisecond
	backOffFactor = 2.0
)

type Config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"http://localhost:5000"`
	Token     string `envconfig:"CHAT_TOKEN" required:"true"`
	UserID    string `envconfig:"CHAT_USER_ID" required:"true"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"INFO"`
	// CHAT_COLOURS enables colorized output in the CLI
	Colours      bool          `envconfig:"CHAT_COLOURS" default:"true"`
	ReconnectMax time.Duration `envconfig:"CHAT_RECONNECT_MAX" default:"30s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

// Handlers are called from the read loop. Any of them may be nil.
type Handlers struct {
	OnConnected  func(event.ConnectionID)
	OnTyping     func(event.TypingPayload)
	OnStopTyping func(event.TypingPayload)
	// OnSent receives the cross-device echo of a message posted from another device.
	OnSent  func(chat.Message)
	OnError func(event.ErrorPayload)
}

type Client struct {
	cfg      Config
	log      *slog.Logger
	inbox    *Inbox
	handlers Handlers
	http     *http.Client
	dialer   *websocket.Dialer

	mu      sync.Mutex
	ws      *websocket.Conn
	connID  event.ConnectionID
	rooms   map[chat.ChatID]struct{}
	writeMu sync.Mutex
}

func New(cfg Config, inbox *Inbox, handlers Handlers, log *slog.Logger) *Client {
	return &Client{
		cfg:      cfg,
		log:      log,
		inbox:    inbox,
		handlers: handlers,
		http:     &http.Client{Timeout: 10 * time.Second},
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		rooms:    make(map[chat.ChatID]struct{}),
	}
}

// Run keeps the event channel open until ctx is done, reconnecting with an exponential
// backoff. Joined rooms are joined again after every reconnect. A rejected token stops it.
func (c *Client) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backOffInit
	b.Multiplier = backOffFactor
	b.MaxInterval = c.cfg.ReconnectMax
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		err := c.session(ctx, b.Reset)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if stderrors.Is(err, errors.ErrUnauthenticated) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		c.log.Warn("Event channel lost, reconnecting", "error", err, "in", d)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// session runs one connection until it breaks. onReady is called once the server acknowledged setup.
func (c *Client) session(ctx context.Context, onReady func()) error {
	header := http.Header{"Authorization": {"Bearer " + c.cfg.Token}}
	ws, resp, err := c.dialer.DialContext(ctx, c.wsURL(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: token rejected", errors.ErrUnauthenticated)
		}
		return err
	}
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer func() {
		stop()
		c.mu.Lock()
		c.ws, c.connID = nil, ""
		c.mu.Unlock()
		_ = ws.Close()
	}()

	if err = c.write(ws, event.Setup, event.SetupPayload{UserID: chat.UserID(c.cfg.UserID)}); err != nil {
		return err
	}
	for {
		var frame event.InboundEnvelope
		if err = ws.ReadJSON(&frame); err != nil {
			return err
		}
		if frame.Event == event.Connected {
			if err = c.ready(ws, frame.Data); err != nil {
				return err
			}
			onReady()
			continue
		}
		c.handle(frame)
	}
}

func (c *Client) ready(ws *websocket.Conn, data json.RawMessage) error {
	var payload event.ConnectedPayload
	_ = json.Unmarshal(data, &payload)

	c.mu.Lock()
	c.connID = payload.ConnectionID
	rooms := make([]chat.ChatID, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()

	for _, room := range rooms {
		if err := c.write(ws, event.JoinChat, room); err != nil {
			return err
		}
	}
	c.log.Debug("Event channel ready", "conn_id", payload.ConnectionID, "rooms", len(rooms))
	if c.handlers.OnConnected != nil {
		c.handlers.OnConnected(payload.ConnectionID)
	}
	return nil
}

func (c *Client) handle(frame event.InboundEnvelope) {
	switch frame.Event {
	case event.MessageReceived:
		var msg chat.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			c.log.Warn("Malformed message", "error", err)
			return
		}
		route := c.inbox.Deliver(msg)
		c.log.Debug("Message delivered", "message_id", msg.ID, "route", route)
	case event.MessageSent:
		var msg chat.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return
		}
		c.inbox.Echo(msg)
		if c.handlers.OnSent != nil {
			c.handlers.OnSent(msg)
		}
	case event.Typing, event.StopTyping:
		var payload event.TypingPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return
		}
		handler := c.handlers.OnTyping
		if frame.Event == event.StopTyping {
			handler = c.handlers.OnStopTyping
		}
		if handler != nil {
			handler(payload)
		}
	case event.Error:
		var payload event.ErrorPayload
		_ = json.Unmarshal(frame.Data, &payload)
		c.log.Warn("Server rejected an event", "kind", payload.Kind, "message", payload.Message)
		if c.handlers.OnError != nil {
			c.handlers.OnError(payload)
		}
	}
}

// Join subscribes to a chat room now if connected, and after every reconnect.
func (c *Client) Join(chatID chat.ChatID) error {
	c.mu.Lock()
	c.rooms[chatID] = struct{}{}
	c.mu.Unlock()
	return c.emitIfConnected(event.JoinChat, chatID)
}

func (c *Client) Leave(chatID chat.ChatID) error {
	c.mu.Lock()
	delete(c.rooms, chatID)
	c.mu.Unlock()
	return c.emitIfConnected(event.LeaveChat, chatID)
}

func (c *Client) Typing(chatID chat.ChatID) error {
	return c.emit(event.Typing, chatID)
}

func (c *Client) StopTyping(chatID chat.ChatID) error {
	return c.emit(event.StopTyping, chatID)
}

// ConnectionID is empty while the event channel is down.
func (c *Client) ConnectionID() event.ConnectionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

func (c *Client) emitIfConnected(name event.Name, data any) error {
	err := c.emit(name, data)
	if stderrors.Is(err, errors.ErrConnectionGone) {
		return nil
	}
	return err
}

func (c *Client) emit(name event.Name, data any) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return fmt.Errorf("%w: event channel is not connected", errors.ErrConnectionGone)
	}
	return c.write(ws, name, data)
}

// write serializes frames: a websocket supports a single concurrent writer.
func (c *Client) write(ws *websocket.Conn, name event.Name, data any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteJSON(event.Envelope{Event: name, Data: data})
}

func (c *Client) wsURL() string {
	base := strings.TrimSuffix(c.cfg.ServerURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}
