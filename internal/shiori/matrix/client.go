// Package matrix runs Shiori on a Matrix homeserver.
//
// Rooms are channels and a room's parent space (m.space.parent) is its
// guild. Plain m.text messages become platform.Message values; custom
// dev.shiori.command events carrying a JSON option tree become
// platform.Interaction values. Replies quote the triggering event and
// "ephemeral" replies are sent as m.notice, the closest Matrix has.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Shiori/common/redact"
	"github.com/bdobrica/Shiori/common/retry"
	"github.com/bdobrica/Shiori/internal/shiori/commands"
	"github.com/bdobrica/Shiori/internal/shiori/platform"
)

// CommandEventType is the event type clients send structured commands as.
const CommandEventType = "dev.shiori.command"

// EventCommand is CommandEventType as a timeline event type.
var EventCommand = event.Type{Type: CommandEventType, Class: event.MessageEventType}

var _ platform.Client = (*Client)(nil)

// Config holds Matrix client configuration
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms are joined at start. The bot also serves any other room it is
	// already a member of.
	Rooms []string
	// Sync persists the sync position. When nil, the position is kept in
	// memory and the first sync after a restart skips old events.
	Sync   SyncValues
	Logger *slog.Logger
	// Redactor scrubs errors before they are logged. Nil means one built
	// from AccessToken.
	Redactor *redact.Redactor
}

// Handler receives normalised events. *host.Host implements it.
type Handler interface {
	HandleMessage(ctx context.Context, msg *platform.Message) error
	HandleInteraction(ctx context.Context, in *platform.Interaction) error
	Rebind(ctx context.Context, ref platform.ChannelRef, actorID string) error
}

// Client wraps the Matrix client
type Client struct {
	client *mautrix.Client
	cfg    Config
	logger *slog.Logger
	guilds *guildCache

	handler   Handler
	validator *commands.Validator
	inflight  sync.WaitGroup
}

// New creates a new Matrix client
func New(cfg Config) (*Client, error) {
	if cfg.Homeserver == "" || cfg.UserID == "" || cfg.AccessToken == "" {
		return nil, errors.New("matrix: homeserver, user id and access token are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Redactor == nil {
		cfg.Redactor = redact.New(cfg.AccessToken)
	}

	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %s", cfg.Redactor.Err(err))
	}
	if cfg.Sync != nil {
		client.Store = NewSyncStore(cfg.Sync)
		cfg.Logger.Info("Matrix sync store: using persistent SQLite store")
	} else {
		cfg.Logger.Warn("Matrix sync store: no DB configured, using in-memory store")
	}

	return &Client{
		client: client,
		cfg:    cfg,
		logger: cfg.Logger,
		guilds: newGuildCache(),
	}, nil
}

// Start registers event handlers and joins the configured rooms. validator
// checks dev.shiori.command payloads; with a nil validator such events are
// ignored. Call Run afterwards to begin syncing.
func (c *Client) Start(ctx context.Context, handler Handler, validator *commands.Validator) error {
	c.handler = handler
	c.validator = validator

	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return errors.New("matrix: unexpected syncer type")
	}
	syncer.OnSync(c.client.DontProcessOldEvents)
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	syncer.OnEventType(EventCommand, c.handleCommand)
	syncer.OnEventType(event.StateSpaceParent, c.handleSpaceParent)

	for _, roomID := range c.cfg.Rooms {
		if err := c.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("failed to join room %s: %w", roomID, err)
		}
	}
	return nil
}

// Run syncs until ctx is cancelled or Stop is called, reconnecting with
// exponential back-off. It returns after in-flight events have finished.
func (c *Client) Run(ctx context.Context) error {
	const (
		backoffMin = 2 * time.Second
		backoffMax = 5 * time.Minute
	)
	defer c.inflight.Wait()

	backoff := backoffMin
	for {
		err := c.client.SyncWithContext(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		c.logger.Error("Matrix sync stopped; reconnecting", "err", c.cfg.Redactor.Err(err), "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffMax)
	}
}

// Stop ends the sync loop started by Run.
func (c *Client) Stop() {
	c.client.StopSync()
}

// FetchMessage implements platform.Client.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) (*platform.Message, error) {
	evt, err := c.client.GetEvent(ctx, id.RoomID(channelID), id.EventID(messageID))
	if err != nil {
		if errors.Is(err, mautrix.MNotFound) || errors.Is(err, mautrix.MForbidden) {
			return nil, fmt.Errorf("matrix: event %s: %w", messageID, platform.ErrMessageNotFound)
		}
		return nil, fmt.Errorf("matrix: fetch event %s: %w", messageID, err)
	}
	return messageFromEvent(channelID, evt)
}

// MessageLink implements platform.Client with a matrix.to permalink.
func (c *Client) MessageLink(channelID, messageID string) string {
	return "https://matrix.to/#/" + url.PathEscape(channelID) + "/" + url.PathEscape(messageID)
}

// ResolveGuild returns the parent space of roomID, or "" when it has none
// or the room state cannot be read.
func (c *Client) ResolveGuild(ctx context.Context, roomID string) string {
	guild, err := c.resolveGuild(ctx, roomID)
	if err != nil {
		c.logger.Warn("failed to read room state; treating room as outside any space", "room", roomID, "err", c.cfg.Redactor.Err(err))
		return ""
	}
	return guild
}

func (c *Client) resolveGuild(ctx context.Context, roomID string) (string, error) {
	if guild, ok := c.guilds.get(roomID); ok {
		return guild, nil
	}
	state, err := c.client.State(ctx, id.RoomID(roomID))
	if err != nil {
		return "", err
	}
	parents := make(map[string]map[string]any)
	for stateKey, evt := range state[event.StateSpaceParent] {
		if evt != nil {
			parents[stateKey] = evt.Content.Raw
		}
	}
	guild := pickParent(parents)
	c.guilds.put(roomID, guild)
	return guild, nil
}

func (c *Client) channelRef(ctx context.Context, roomID id.RoomID) platform.ChannelRef {
	return platform.ChannelRef{ChannelID: roomID.String(), GuildID: c.ResolveGuild(ctx, roomID.String())}
}

func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.cfg.UserID) || c.handler == nil {
		return
	}
	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return
	}
	if content.RelatesTo != nil && content.RelatesTo.Type == event.RelReplace {
		return
	}

	c.spawn(ctx, func(ctx context.Context) {
		msg := &platform.Message{
			ID:        evt.ID.String(),
			Channel:   c.channelRef(ctx, evt.RoomID),
			AuthorID:  evt.Sender.String(),
			Content:   stripReplyFallback(content.Body),
			CreatedAt: time.UnixMilli(evt.Timestamp).UTC(),
			Replier:   c.newReplier(evt.RoomID, evt.ID),
		}
		if err := c.handler.HandleMessage(ctx, msg); err != nil {
			c.logger.Warn("message dispatch failed", "room", evt.RoomID, "event", evt.ID, "err", err)
		}
	})
}

// handleSpaceParent re-resolves a room's guild after its m.space.parent
// state changed and moves the room's state along with it.
func (c *Client) handleSpaceParent(ctx context.Context, evt *event.Event) {
	c.guilds.forget(evt.RoomID.String())
	if c.handler == nil {
		return
	}
	c.spawn(ctx, func(ctx context.Context) {
		guild, err := c.resolveGuild(ctx, evt.RoomID.String())
		if err != nil {
			c.logger.Warn("failed to read room state; keeping the room's current space", "room", evt.RoomID, "err", c.cfg.Redactor.Err(err))
			return
		}
		ref := platform.ChannelRef{ChannelID: evt.RoomID.String(), GuildID: guild}
		if err := c.handler.Rebind(ctx, ref, evt.Sender.String()); err != nil {
			c.logger.Warn("failed to rebind room to its new space", "room", evt.RoomID, "guild", guild, "err", err)
		}
	})
}

func (c *Client) handleCommand(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.cfg.UserID) || c.handler == nil || c.validator == nil {
		return
	}
	payload, err := c.validator.Decode(evt.Content.VeryRaw)
	if err != nil {
		c.logger.Warn("dropping malformed command event", "room", evt.RoomID, "event", evt.ID, "sender", evt.Sender, "err", err)
		return
	}

	c.spawn(ctx, func(ctx context.Context) {
		in := &platform.Interaction{
			ID:      evt.ID.String(),
			Channel: c.channelRef(ctx, evt.RoomID),
			UserID:  evt.Sender.String(),
			Command: payload.Command,
			Options: payload.Options,
			Replier: c.newReplier(evt.RoomID, evt.ID),
		}
		if err := c.handler.HandleInteraction(ctx, in); err != nil {
			c.logger.Warn("interaction dispatch failed", "room", evt.RoomID, "event", evt.ID, "err", err)
		}
	})
}

// spawn handles one event off the sync goroutine so rooms are served
// concurrently.
func (c *Client) spawn(ctx context.Context, fn func(ctx context.Context)) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		fn(ctx)
	}()
}

func (c *Client) newReplier(roomID id.RoomID, replyTo id.EventID) *replier {
	return &replier{
		replyTo: replyTo,
		send: func(ctx context.Context, content *event.MessageEventContent) error {
			if _, err := c.client.SendMessageEvent(ctx, roomID, event.EventMessage, content); err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
			return nil
		},
	}
}

// joinRoom joins roomID. M_FORBIDDEN is tolerated: homeservers return it
// when the bot is already a member.
func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	return retry.Do(ctx, retry.DefaultConfig, func() error {
		_, err := c.client.JoinRoomByID(ctx, roomID)
		if errors.Is(err, mautrix.MForbidden) {
			c.logger.Warn("joinRoom: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	})
}

// messageFromEvent converts a fetched m.room.message event.
func messageFromEvent(channelID string, evt *event.Event) (*platform.Message, error) {
	if evt.Type.Type != event.EventMessage.Type {
		return nil, fmt.Errorf("matrix: event %s is %s: %w", evt.ID, evt.Type.Type, platform.ErrMessageNotFound)
	}
	if evt.Content.Parsed == nil {
		if err := evt.Content.ParseRaw(event.EventMessage); err != nil {
			return nil, fmt.Errorf("matrix: parse event %s: %w", evt.ID, err)
		}
	}
	content := evt.Content.AsMessage()
	if content == nil || content.Body == "" {
		// redacted
		return nil, fmt.Errorf("matrix: event %s has no body: %w", evt.ID, platform.ErrMessageNotFound)
	}
	return &platform.Message{
		ID:        evt.ID.String(),
		Channel:   platform.ChannelRef{ChannelID: channelID},
		AuthorID:  evt.Sender.String(),
		Content:   stripReplyFallback(content.Body),
		CreatedAt: time.UnixMilli(evt.Timestamp).UTC(),
	}, nil
}

// stripReplyFallback drops the "> quoted" block some clients prepend to
// replies, so "!pin ..." sent as a reply still parses.
func stripReplyFallback(body string) string {
	if !strings.HasPrefix(body, "> ") {
		return body
	}
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(line, ">") {
			return strings.TrimLeft(strings.Join(lines[i:], "\n"), "\n")
		}
	}
	return ""
}
