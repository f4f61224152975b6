package services

import (
	"context"
	"errors"
	"log/slog"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	chaterrors "peer-chat/errors"
	"peer-chat/mocks"
	"peer-chat/repositories"
	"peer-chat/runtime"
	"peer-chat/runtime/workers"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recordingConn struct {
	mu       sync.Mutex
	id       event.ConnectionID
	userID   chat.UserID
	closed   bool
	received []event.Envelope
}

func newRecordingConn(userID chat.UserID) *recordingConn {
	return &recordingConn{id: event.ConnectionID(uuid.NewString()), userID: userID}
}

func (c *recordingConn) ID() event.ConnectionID { return c.id }
func (c *recordingConn) UserID() chat.UserID    { return c.userID }

func (c *recordingConn) Send(env event.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.received = append(c.received, env)
	return nil
}

func (c *recordingConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *recordingConn) named(name event.Name) []event.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []event.Envelope
	for _, env := range c.received {
		if env.Event == name {
			out = append(out, env)
		}
	}
	return out
}

func TestRealtimeService_Setup_Must_Match_Caller(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	members := mocks.NewMockIMembershipResolver(ctrl)
	registry := runtime.NewRegistry()
	service := NewRealtimeService(registry, mocks.NewMockIPresence(ctrl), members, mocks.NewMockIChatService(ctrl), slog.Default())
	conn := newRecordingConn("alice")

	// When alice claims to be bob
	err := service.Setup(conn, "bob")

	// Then the connection is not bound
	req.ErrorIs(err, chaterrors.ErrForbidden)
	req.Empty(registry.HandlesFor("bob"))

	// When she sets up as herself she is acknowledged
	req.NoError(service.Setup(conn, "alice"))
	connected := conn.named(event.Connected)
	req.Len(connected, 1)
	req.Equal(event.ConnectedPayload{ConnectionID: conn.ID()}, connected[0].Data)
	req.Len(registry.HandlesFor("alice"), 1)
}

func TestRealtimeService_Join_Is_Membership_Gated(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	members := mocks.NewMockIMembershipResolver(ctrl)
	registry := runtime.NewRegistry()
	service := NewRealtimeService(registry, mocks.NewMockIPresence(ctrl), members, mocks.NewMockIChatService(ctrl), slog.Default())
	conn := newRecordingConn("mallory")
	req.NoError(service.Setup(conn, "mallory"))

	members.EXPECT().IsMember(chat.ChatID("chat-1"), chat.UserID("mallory")).Return(false, nil)

	err := service.Join(context.Background(), conn, "chat-1")
	req.ErrorIs(err, chaterrors.ErrForbidden)
	req.Empty(registry.HandlesInRoom("chat-1"))

	// Typing without having joined is refused too
	req.ErrorIs(service.Typing(conn, "chat-1"), chaterrors.ErrForbidden)
}

// stack wires the real store, registry, presence and fan-out loop together.
type stack struct {
	service  *ChatService
	realtime *RealtimeService
	registry *runtime.Registry
	presence *runtime.Presence
}

func newStack(t *testing.T) stack {
	t.Helper()
	log := slog.Default()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	chats := repositories.NewChatRepository(db, log)
	messages := repositories.NewMessageRepository(db, log, nil)
	members := NewMembershipResolver(chats)
	registry := runtime.NewRegistry()
	mux := runtime.NewMultiplexer(registry, log)
	presence := runtime.NewPresence(mux, registry, time.Second, log)

	events := make(chan event.DomainEvent, 16)
	service := NewChatService(chats, messages, members, registry, presence, nil, NewEventPublisher(events, log), log)
	realtime := NewRealtimeService(registry, presence, members, service, log)
	mux.OnDrop(realtime.HandleDrop)

	ctx, cancel := context.WithCancel(context.Background())
	fanout := workers.NewEventFanout(log, events, time.Second, runtime.NewDeliverySink(mux, log))
	done := make(chan struct{})
	go func() {
		_ = fanout.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return stack{service: service, realtime: realtime, registry: registry, presence: presence}
}

func TestScenario_Delivery_Is_Live_Only(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	ctx := context.Background()

	c1, err := s.service.AccessChat(ctx, "alice", "bob")
	req.NoError(err)

	// Given only bob is connected
	bob := newRecordingConn("bob")
	req.NoError(s.realtime.Setup(bob, "bob"))
	req.NoError(s.realtime.Join(ctx, bob, c1.ID))

	// When bob posts "hi" while alice is offline
	posted, err := s.service.SendMessage(ctx, chat.PostMessageCommand{ChatID: c1.ID, SenderID: "bob", Content: "hi", Origin: string(bob.ID())})
	req.NoError(err)

	// Then nothing is delivered to bob's own posting connection
	time.Sleep(50 * time.Millisecond)
	req.Empty(bob.named(event.MessageSent))

	// When alice connects later and joins the chat
	alice := newRecordingConn("alice")
	req.NoError(s.realtime.Setup(alice, "alice"))
	req.NoError(s.realtime.Join(ctx, alice, c1.ID))

	// Then "hi" is not pushed retroactively
	time.Sleep(50 * time.Millisecond)
	req.Empty(alice.named(event.MessageReceived))

	// But it is available from history
	history, _, err := s.service.GetMessages(ctx, chat.GetMessageCommand{ChatID: c1.ID, UserID: "alice"})
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(posted.ID, history[0].ID)
}

func TestScenario_Recipient_Receives_Live(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	ctx := context.Background()

	c1, err := s.service.AccessChat(ctx, "alice", "bob")
	req.NoError(err)

	bob := newRecordingConn("bob")
	req.NoError(s.realtime.Setup(bob, "bob"))
	alicePhone, aliceLaptop := newRecordingConn("alice"), newRecordingConn("alice")
	req.NoError(s.realtime.Setup(alicePhone, "alice"))
	req.NoError(s.realtime.Setup(aliceLaptop, "alice"))

	// When alice posts from her phone
	_, err = s.service.SendMessage(ctx, chat.PostMessageCommand{ChatID: c1.ID, SenderID: "alice", Content: "hi", Origin: string(alicePhone.ID())})
	req.NoError(err)

	// Then bob receives it even without having joined the room
	req.Eventually(func() bool { return len(bob.named(event.MessageReceived)) == 1 }, time.Second, 5*time.Millisecond)
	// And her laptop is kept in sync, her phone is not echoed
	req.Eventually(func() bool { return len(aliceLaptop.named(event.MessageSent)) == 1 }, time.Second, 5*time.Millisecond)
	req.Empty(alicePhone.named(event.MessageSent))
	req.Empty(alicePhone.named(event.MessageReceived))
}

func TestScenario_Disconnect_Stops_Typing(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	ctx := context.Background()

	c1, err := s.service.AccessChat(ctx, "alice", "bob")
	req.NoError(err)
	alice, bob := newRecordingConn("alice"), newRecordingConn("bob")
	for _, conn := range []*recordingConn{alice, bob} {
		req.NoError(s.realtime.Setup(conn, conn.UserID()))
		req.NoError(s.realtime.Join(ctx, conn, c1.ID))
	}

	req.NoError(s.realtime.Typing(alice, c1.ID))
	req.Len(bob.named(event.Typing), 1)

	// When alice's connection goes away mid-sentence
	s.realtime.Disconnect(alice)
	s.realtime.Disconnect(alice)

	// Then bob sees a single stop typing
	req.Len(bob.named(event.StopTyping), 1)
	req.Zero(s.presence.TypingCount())
	req.Equal(1, s.registry.Stats().Connections)
}
