package runtime

import (
	"context"
	"log/slog"
	"peer-chat/contract"
	"peer-chat/domain/event"
)

// DeliverySink pushes persisted messages to the live connections of every recipient.
// Recipients other than the sender get "message recieved" on all their devices.
// The sender gets "message sent" on every device except the one that posted.
type DeliverySink struct {
	mux contract.IMultiplexer
	log *slog.Logger
}

func NewDeliverySink(mux contract.IMultiplexer, log *slog.Logger) DeliverySink {
	return DeliverySink{mux: mux, log: log}
}

func (s DeliverySink) Consume(ctx context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := posted.Message
	received := event.Envelope{Event: event.MessageReceived, Data: msg}
	delivered := 0
	for _, recipient := range posted.Recipients {
		if recipient == msg.SenderID {
			continue
		}
		delivered += s.mux.NotifyUser(recipient, received, contract.Exclude{})
	}
	echoed := s.mux.NotifyUser(msg.SenderID,
		event.Envelope{Event: event.MessageSent, Data: msg},
		contract.Exclude{Connection: posted.Origin})

	s.log.Debug("Message delivered",
		"chat_id", msg.ChatID, "message_id", msg.ID,
		"handles", delivered, "sender_echo", echoed)
	return nil
}
