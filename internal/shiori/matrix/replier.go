package matrix

import (
	"context"
	"sync"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// replier answers one inbound event. The first message quotes the event;
// follow-ups are plain messages in the same room.
type replier struct {
	replyTo id.EventID
	send    func(ctx context.Context, content *event.MessageEventContent) error

	mu      sync.Mutex
	replied bool
}

func messageContent(text string, ephemeral bool) *event.MessageEventContent {
	msgType := event.MsgText
	if ephemeral {
		msgType = event.MsgNotice
	}
	return &event.MessageEventContent{MsgType: msgType, Body: text}
}

func (r *replier) Reply(ctx context.Context, text string, ephemeral bool) error {
	content := messageContent(text, ephemeral)
	if r.replyTo != "" {
		content.RelatesTo = &event.RelatesTo{InReplyTo: &event.InReplyTo{EventID: r.replyTo}}
	}
	if err := r.send(ctx, content); err != nil {
		return err
	}
	r.mu.Lock()
	r.replied = true
	r.mu.Unlock()
	return nil
}

func (r *replier) FollowUp(ctx context.Context, text string, ephemeral bool) error {
	return r.send(ctx, messageContent(text, ephemeral))
}

func (r *replier) Replied() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replied
}
