package client

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"peer-chat/auth"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"peer-chat/errors"
	"peer-chat/infrastructure/realtime"
	"peer-chat/infrastructure/rest"
	"peer-chat/moderation"
	"peer-chat/observability"
	"peer-chat/repositories"
	"peer-chat/runtime"
	"peer-chat/runtime/workers"
	"peer-chat/services"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "a-long-enough-test-secret"
	waitFor    = 3 * time.Second
	tick       = 10 * time.Millisecond
)

// startStack runs the whole server in process: badger, services, fan-out, REST and event channel.
func startStack(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.Default()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)

	moderator, err := moderation.NewModerator([]string{"darn"}, '*', log)
	require.NoError(t, err)
	monitoring := observability.NewMonitoringManager(log)
	registry := runtime.NewRegistry()
	mux := runtime.NewMultiplexer(registry, log)
	presence := runtime.NewPresence(mux, registry, time.Second, log)
	events := make(chan event.DomainEvent, 64)

	chats := repositories.NewChatRepository(db, log)
	messages := repositories.NewMessageRepository(db, log, lo.ToPtr(2))
	members := services.NewMembershipResolver(chats)
	publisher := services.NewEventPublisher(events, log)
	chatService := services.NewChatService(chats, messages, members, registry, presence, moderator, publisher, log)
	realtimeService := services.NewRealtimeService(registry, presence, members, chatService, log)
	mux.OnDrop(realtimeService.HandleDrop)

	ctx, cancel := context.WithCancel(context.Background())
	fanout := workers.NewEventFanout(log, events, time.Second, runtime.NewDeliverySink(mux, log), monitoring)
	done := make(chan struct{})
	go func() {
		_ = fanout.Run(ctx)
		close(done)
	}()

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	api := engine.Group("/", auth.Middleware(auth.NewTokens(testSecret, time.Hour)))
	rest.RegisterRoutes(api, rest.NewChatHandler(chatService, monitoring, log))
	realtime.RegisterRoutes(api, realtime.NewSocketHandler(realtimeService, 16, log))
	server := httptest.NewServer(engine)

	t.Cleanup(func() {
		server.CloseClientConnections()
		server.Close()
		cancel()
		<-done
		_ = db.Close()
	})
	return server
}

type device struct {
	client    *Client
	inbox     *Inbox
	agg       *Aggregator
	mu        sync.Mutex
	viewed    []chat.Message
	sent      []chat.Message
	connected chan event.ConnectionID
}

func (d *device) views() []chat.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]chat.Message(nil), d.viewed...)
}

func (d *device) echoes() []chat.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]chat.Message(nil), d.sent...)
}

func newDevice(t *testing.T, server *httptest.Server, userID chat.UserID) *device {
	t.Helper()
	token, err := auth.NewTokens(testSecret, time.Hour).GenerateToken(userID)
	require.NoError(t, err)
	cfg := Config{ServerURL: server.URL, Token: token, UserID: string(userID), ReconnectMax: 100 * time.Millisecond}
	return newDeviceWith(t, cfg)
}

func newDeviceWith(t *testing.T, cfg Config) *device {
	t.Helper()
	d := &device{agg: NewAggregator(), connected: make(chan event.ConnectionID, 4)}
	d.inbox = NewInbox(d.agg, func(m chat.Message) {
		d.mu.Lock()
		d.viewed = append(d.viewed, m)
		d.mu.Unlock()
	})
	d.client = New(cfg, d.inbox, Handlers{
		OnConnected: func(id event.ConnectionID) { d.connected <- id },
		OnSent: func(m chat.Message) {
			d.mu.Lock()
			d.sent = append(d.sent, m)
			d.mu.Unlock()
		},
	}, slog.Default())
	return d
}

// run starts the event channel and waits for the server to acknowledge it.
func (d *device) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- d.client.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-stopped)
	})
	select {
	case id := <-d.connected:
		require.NotEmpty(t, id)
	case <-time.After(waitFor):
		t.Fatal("event channel never connected")
	}
}

func TestClient_Notification_Then_View(t *testing.T) {
	req := require.New(t)
	server := startStack(t)
	ctx := context.Background()
	alice, bob := newDevice(t, server, "alice"), newDevice(t, server, "bob")
	alice.run(t)
	bob.run(t)

	// Given a direct chat between bob and alice
	direct, err := bob.client.AccessChat(ctx, "alice")
	req.NoError(err)
	req.NoError(alice.client.Join(direct.ID))

	// When bob writes while alice has no chat open
	first, err := bob.client.SendMessage(ctx, direct.ID, "hello alice")
	req.NoError(err)

	// Then alice gets a notification, not a view
	req.Eventually(func() bool { return alice.agg.CountUnread() == 1 }, waitFor, tick)
	req.Equal(first.ID, alice.agg.Pending()[0].ID)
	req.Empty(alice.views())

	// When alice opens the chat, the notification is cleared
	req.Equal(1, alice.inbox.Open(direct.ID))

	// Then the next message lands in the view
	second, err := bob.client.SendMessage(ctx, direct.ID, "are you there?")
	req.NoError(err)
	req.Eventually(func() bool { return len(alice.views()) == 1 }, waitFor, tick)
	req.Equal(second.ID, alice.views()[0].ID)
	req.Zero(alice.agg.CountUnread())

	// And the sender never notifies itself
	req.Zero(bob.agg.CountUnread())
}

func TestClient_Cross_Device_Echo(t *testing.T) {
	req := require.New(t)
	server := startStack(t)
	ctx := context.Background()
	laptop, phone, bob := newDevice(t, server, "alice"), newDevice(t, server, "alice"), newDevice(t, server, "bob")
	laptop.run(t)
	phone.run(t)
	bob.run(t)

	direct, err := laptop.client.AccessChat(ctx, "bob")
	req.NoError(err)
	phone.inbox.Open(direct.ID)

	// When alice posts from her laptop
	msg, err := laptop.client.SendMessage(ctx, direct.ID, "sent from the laptop")
	req.NoError(err)

	// Then her phone shows it, bob is notified, and the laptop gets no echo
	req.Eventually(func() bool { return len(phone.echoes()) == 1 }, waitFor, tick)
	req.Equal(msg.ID, phone.views()[0].ID)
	req.Eventually(func() bool { return bob.agg.CountUnread() == 1 }, waitFor, tick)
	req.Never(func() bool { return len(laptop.echoes()) > 0 }, 200*time.Millisecond, tick)
	req.Zero(phone.agg.CountUnread())
}

func TestClient_History_And_Errors(t *testing.T) {
	req := require.New(t)
	server := startStack(t)
	ctx := context.Background()
	alice, bob, carol := newDevice(t, server, "alice"), newDevice(t, server, "bob"), newDevice(t, server, "carol")

	direct, err := alice.client.AccessChat(ctx, "bob")
	req.NoError(err)
	var sent []chat.MessageID
	for _, content := range []string{"one", "two", "three"} {
		msg, err := alice.client.SendMessage(ctx, direct.ID, content)
		req.NoError(err)
		sent = append(sent, msg.ID)
	}

	// Pages of two, newest page first, each page oldest first
	page, cursor, err := bob.client.GetMessages(ctx, direct.ID, "")
	req.NoError(err)
	req.Len(page, 2)
	req.NotNil(cursor)
	req.Equal(sent[1:], lo.Map(page, func(m chat.Message, _ int) chat.MessageID { return m.ID }))

	older, cursor, err := bob.client.GetMessages(ctx, direct.ID, *cursor)
	req.NoError(err)
	req.Nil(cursor)
	req.Len(older, 1)
	req.Equal(sent[0], older[0].ID)

	read, err := bob.client.MarkRead(ctx, direct.ID, sent[0])
	req.NoError(err)
	req.Contains(read.ReadBy, chat.UserID("bob"))

	chats, err := bob.client.FetchChats(ctx)
	req.NoError(err)
	req.Len(chats, 1)

	// Server errors come back as their sentinel
	_, err = alice.client.SendMessage(ctx, direct.ID, "   ")
	req.ErrorIs(err, errors.ErrEmptyContent)
	_, _, err = carol.client.GetMessages(ctx, direct.ID, "")
	req.ErrorIs(err, errors.ErrNotMember)
	_, err = alice.client.CreateGroup(ctx, "too small", []chat.UserID{"bob"})
	req.ErrorIs(err, errors.ErrInvalidArgument)

	group, err := alice.client.CreateGroup(ctx, "trio", []chat.UserID{"bob", "carol"})
	req.NoError(err)
	req.True(group.IsGroup)
}

func TestClient_Rejected_Token_Stops_Run(t *testing.T) {
	server := startStack(t)
	d := newDeviceWith(t, Config{ServerURL: server.URL, Token: "forged", UserID: "mallory", ReconnectMax: 50 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	err := d.client.Run(ctx)

	require.ErrorIs(t, err, errors.ErrUnauthenticated)
	require.NoError(t, ctx.Err())
}

func TestClient_Offline_Join_Is_Remembered(t *testing.T) {
	req := require.New(t)
	server := startStack(t)
	alice := newDevice(t, server, "alice")

	// Typing needs a live channel, joining does not
	req.ErrorIs(alice.client.Typing("chat-1"), errors.ErrConnectionGone)
	req.NoError(alice.client.Join("chat-1"))
	req.Empty(alice.client.ConnectionID())
}
