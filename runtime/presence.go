package runtime

import (
	"log/slog"
	"peer-chat/contract"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"sync"
	"time"

	"github.com/samber/lo"
)

const DefaultTypingWindow = 3 * time.Second

type typingKey struct {
	chatID chat.ChatID
	userID chat.UserID
}

// typingState exists only while a user is Typing in a chat.
// generation tells a stale expiry apart from the timer currently armed.
type typingState struct {
	timer      *time.Timer
	generation uint64
}

// lane orders the broadcasts of one (chat, user) pair. announced is what peers were last told.
// One caller at a time flushes; the others only mark the lane dirty and return.
type lane struct {
	announced bool
	flushing  bool
	dirty     bool
}

// Presence tracks, per chat and user, whether someone is typing.
// Only transitions are broadcast: Idle to Typing emits "typing", Typing to Idle emits "stop typing".
type Presence struct {
	mu         sync.Mutex
	typing     map[typingKey]*typingState
	lanes      map[typingKey]*lane
	generation uint64
	window     time.Duration
	mux        contract.IMultiplexer
	registry   contract.IRegistry
	log        *slog.Logger
}

func NewPresence(mux contract.IMultiplexer, registry contract.IRegistry, window time.Duration, log *slog.Logger) *Presence {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	return &Presence{
		typing:   make(map[typingKey]*typingState),
		lanes:    make(map[typingKey]*lane),
		window:   window,
		mux:      mux,
		registry: registry,
		log:      log,
	}
}

// StartTyping (re)arms the expiry timer and broadcasts only when the user was Idle.
func (p *Presence) StartTyping(chatID chat.ChatID, userID chat.UserID) {
	key := typingKey{chatID: chatID, userID: userID}

	p.mu.Lock()
	state, wasTyping := p.typing[key]
	if wasTyping {
		state.timer.Stop()
	} else {
		state = &typingState{}
		p.typing[key] = state
	}
	p.generation++
	generation := p.generation
	state.generation = generation
	state.timer = time.AfterFunc(p.window, func() { p.expire(key, generation) })
	p.mu.Unlock()

	if !wasTyping {
		p.flush(key)
	}
}

func (p *Presence) StopTyping(chatID chat.ChatID, userID chat.UserID) {
	key := typingKey{chatID: chatID, userID: userID}
	if p.clear(key, 0) {
		p.flush(key)
	}
}

// ForgetUser forces Idle in the given chats for a user whose connection went away,
// unless another connection of the same user is still in the room.
func (p *Presence) ForgetUser(userID chat.UserID, chats []chat.ChatID) {
	for _, chatID := range chats {
		if p.registry.UserInRoom(userID, chatID) {
			continue
		}
		p.StopTyping(chatID, userID)
	}
}

// TypingCount is the number of (chat, user) pairs currently Typing.
func (p *Presence) TypingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.typing)
}

func (p *Presence) expire(key typingKey, generation uint64) {
	if p.clear(key, generation) {
		p.log.Debug("Typing expired", "chat_id", key.chatID, "user_id", key.userID)
		p.flush(key)
	}
}

// clear moves key back to Idle. A non zero generation only clears the matching timer.
func (p *Presence) clear(key typingKey, generation uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.typing[key]
	if !ok || (generation != 0 && state.generation != generation) {
		return false
	}
	state.timer.Stop()
	delete(p.typing, key)
	return true
}

// flush broadcasts until peers were told the current state of key. Broadcasts of a key
// never overlap, so "stop typing" cannot overtake the "typing" it ends.
// emit runs outside the lock: a dropped connection calls back into ForgetUser.
func (p *Presence) flush(key typingKey) {
	p.mu.Lock()
	l, ok := p.lanes[key]
	if !ok {
		l = &lane{}
		p.lanes[key] = l
	}
	l.dirty = true
	if l.flushing {
		p.mu.Unlock()
		return
	}
	l.flushing = true
	for l.dirty {
		l.dirty = false
		_, typing := p.typing[key]
		if typing == l.announced {
			continue
		}
		l.announced = typing
		p.mu.Unlock()
		p.emit(lo.Ternary(typing, event.Typing, event.StopTyping), key)
		p.mu.Lock()
	}
	l.flushing = false
	if !l.announced {
		delete(p.lanes, key)
	}
	p.mu.Unlock()
}

func (p *Presence) emit(name event.Name, key typingKey) {
	env := event.Envelope{
		Event: name,
		Data:  event.TypingPayload{ChatID: key.chatID, UserID: key.userID},
	}
	p.mux.Broadcast(key.chatID, env, contract.Exclude{User: key.userID})
}
