package matrix

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Shiori/internal/shiori/pinboard"
	"github.com/bdobrica/Shiori/internal/shiori/platform"
	"github.com/bdobrica/Shiori/internal/shiori/store"
)

func TestPickParent(t *testing.T) {
	via := []any{"example.org"}
	tests := []struct {
		name    string
		parents map[string]map[string]any
		want    string
	}{
		{name: "none", parents: nil, want: ""},
		{name: "single", parents: map[string]map[string]any{"!space:a": {"via": via}}, want: "!space:a"},
		{name: "removed parent", parents: map[string]map[string]any{"!space:a": {}}, want: ""},
		{name: "empty via", parents: map[string]map[string]any{"!space:a": {"via": []any{}}}, want: ""},
		{
			name: "canonical wins",
			parents: map[string]map[string]any{
				"!a:x": {"via": via},
				"!z:x": {"via": via, "canonical": true},
			},
			want: "!z:x",
		},
		{
			name: "lowest id when none canonical",
			parents: map[string]map[string]any{
				"!m:x": {"via": via},
				"!b:x": {"via": via},
				"!c:x": {},
			},
			want: "!b:x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickParent(tt.parents); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGuildCache(t *testing.T) {
	g := newGuildCache()
	if _, ok := g.get("!r:x"); ok {
		t.Fatal("empty cache returned a hit")
	}
	g.put("!r:x", "")
	if guild, ok := g.get("!r:x"); !ok || guild != "" {
		t.Errorf("cached empty guild: got %q, %v", guild, ok)
	}
	g.forget("!r:x")
	if _, ok := g.get("!r:x"); ok {
		t.Error("forget did not drop the entry")
	}
}

func TestStripReplyFallback(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "!pin list", want: "!pin list"},
		{in: "> <@a:x> earlier\n> more\n\n!pin add 1", want: "!pin add 1"},
		{in: "> only a quote", want: ""},
		{in: ">not a fallback", want: ">not a fallback"},
	}
	for _, tt := range tests {
		if got := stripReplyFallback(tt.in); got != tt.want {
			t.Errorf("stripReplyFallback(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMessageLinkParsesBack(t *testing.T) {
	c := &Client{}
	room, evt := "!room:example.org", "$AbC-123_xyz"

	link := c.MessageLink(room, evt)
	ch, msg, err := pinboard.ParseMessageRef(link, "elsewhere")
	if err != nil {
		t.Fatalf("ParseMessageRef(%q): %v", link, err)
	}
	if ch != room || msg != evt {
		t.Errorf("round trip: got %q/%q from %q", ch, msg, link)
	}
}

func TestMessageFromEvent(t *testing.T) {
	ts := time.Date(2026, 4, 5, 6, 7, 8, 0, time.UTC)
	evt := &event.Event{
		Type:      event.EventMessage,
		ID:        id.EventID("$e1"),
		Sender:    id.UserID("@alice:example.org"),
		Timestamp: ts.UnixMilli(),
		Content: event.Content{Parsed: &event.MessageEventContent{
			MsgType: event.MsgText,
			Body:    "> <@bob:x> hi\n\nworth keeping",
		}},
	}

	msg, err := messageFromEvent("!r:x", evt)
	if err != nil {
		t.Fatalf("messageFromEvent: %v", err)
	}
	if msg.ID != "$e1" || msg.AuthorID != "@alice:example.org" || msg.Channel.ChannelID != "!r:x" {
		t.Errorf("got %+v", msg)
	}
	if msg.Content != "worth keeping" || !msg.CreatedAt.Equal(ts) {
		t.Errorf("content/time: got %q at %v", msg.Content, msg.CreatedAt)
	}

	redacted := &event.Event{Type: event.EventMessage, ID: "$e2", Content: event.Content{Parsed: &event.MessageEventContent{}}}
	if _, err := messageFromEvent("!r:x", redacted); !errors.Is(err, platform.ErrMessageNotFound) {
		t.Errorf("redacted: expected ErrMessageNotFound, got %v", err)
	}

	reaction := &event.Event{Type: event.EventReaction, ID: "$e3"}
	if _, err := messageFromEvent("!r:x", reaction); !errors.Is(err, platform.ErrMessageNotFound) {
		t.Errorf("reaction: expected ErrMessageNotFound, got %v", err)
	}
}

func TestReplier(t *testing.T) {
	var sent []*event.MessageEventContent
	r := &replier{
		replyTo: "$cmd",
		send: func(_ context.Context, content *event.MessageEventContent) error {
			sent = append(sent, content)
			return nil
		},
	}
	ctx := context.Background()

	if r.Replied() {
		t.Fatal("fresh replier reports replied")
	}
	if err := r.Reply(ctx, "first", true); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if err := r.FollowUp(ctx, "second", false); err != nil {
		t.Fatalf("FollowUp: %v", err)
	}
	if !r.Replied() {
		t.Error("Replied should be true after Reply")
	}

	if len(sent) != 2 {
		t.Fatalf("sent %d messages", len(sent))
	}
	if sent[0].MsgType != event.MsgNotice || sent[0].RelatesTo == nil || sent[0].RelatesTo.InReplyTo.EventID != "$cmd" {
		t.Errorf("reply: got %+v", sent[0])
	}
	if sent[1].MsgType != event.MsgText || sent[1].RelatesTo != nil || sent[1].Body != "second" {
		t.Errorf("follow-up: got %+v", sent[1])
	}
}

func TestReplier_FailedReplyIsNotMarked(t *testing.T) {
	r := &replier{send: func(context.Context, *event.MessageEventContent) error { return errors.New("down") }}
	if err := r.Reply(context.Background(), "x", false); err == nil {
		t.Fatal("expected error")
	}
	if r.Replied() {
		t.Error("failed reply should not count")
	}
}

func TestSyncStore(t *testing.T) {
	db, err := store.New(filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewSyncStore(db)
	ctx := context.Background()
	user := id.UserID("@shiori:example.org")

	if tok, err := s.LoadNextBatch(ctx, user); err != nil || tok != "" {
		t.Fatalf("first run: got %q, %v", tok, err)
	}
	if err := s.SaveNextBatch(ctx, user, "s1"); err != nil {
		t.Fatalf("SaveNextBatch: %v", err)
	}
	if err := s.SaveNextBatch(ctx, user, "s2"); err != nil {
		t.Fatalf("SaveNextBatch: %v", err)
	}
	if tok, _ := s.LoadNextBatch(ctx, user); tok != "s2" {
		t.Errorf("next batch: got %q, want s2", tok)
	}

	if err := s.SaveFilterID(ctx, user, "f1"); err != nil {
		t.Fatalf("SaveFilterID: %v", err)
	}
	if f, _ := s.LoadFilterID(ctx, user); f != "f1" {
		t.Errorf("filter: got %q", f)
	}
	if tok, _ := s.LoadNextBatch(ctx, "@other:example.org"); tok != "" {
		t.Errorf("tokens must be per user, got %q", tok)
	}
}
