// Package host is Shiori's router: it receives normalised platform events,
// serialises them per channel, runs them through the registered modules,
// commits and persists the resulting channel state, and delivers replies.
//
// Every event follows the same path:
//
//  1. attach a trace id and (optionally) check the sender's rate budget
//  2. take the channel's lock
//  3. load the channel state and seed its guild on first use
//  4. hand each module a working copy of the state
//  5. commit and save the copy when the module changed it
//  6. chunk and send the module's reply
//
// A guild mismatch never commits: the working copy is discarded whatever
// the module did to it. Module panics are recovered and answered with
// FailureText. A failed save keeps the committed in-memory state and
// answers with SaveFailureText.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bdobrica/Shiori/common/observability"
	"github.com/bdobrica/Shiori/common/redact"
	"github.com/bdobrica/Shiori/common/retry"
	"github.com/bdobrica/Shiori/common/trace"
	"github.com/bdobrica/Shiori/internal/shiori/channelstate"
	"github.com/bdobrica/Shiori/internal/shiori/commands"
	"github.com/bdobrica/Shiori/internal/shiori/format"
	"github.com/bdobrica/Shiori/internal/shiori/module"
	"github.com/bdobrica/Shiori/internal/shiori/platform"
	"github.com/bdobrica/Shiori/internal/shiori/store"
)

// User-facing texts produced by the host itself.
const (
	FailureText        = "Something went wrong while handling that command. Please try again."
	SaveFailureText    = "That change could not be saved and may be lost if I restart. Please try again later."
	RateLimitedText    = "You're sending commands too quickly. Please wait a moment."
	UnknownCommandText = "Unknown command."
	UnavailableText    = "This channel's data can't be read right now. Please try again shortly."
)

// Auditor receives audit rows. *store.Store implements it.
type Auditor interface {
	WriteAudit(ctx context.Context, rec store.AuditRecord) error
}

// Config holds the host's tunables.
type Config struct {
	Info module.HostInfo
	// MessageLimit is the reply chunk size. Zero means format.DefaultLimit.
	MessageLimit int
	// DispatchTimeout bounds one event. Zero means no deadline beyond the
	// caller's context.
	DispatchTimeout time.Duration
	// RateLimit is the number of commands a sender may issue per minute.
	// Zero or negative disables limiting.
	RateLimit int
	// SaveRetry controls how persistence failures are retried.
	SaveRetry retry.Config
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
	// Redactor scrubs audit payloads and errors. Nil only masks
	// credential-like payload keys.
	Redactor *redact.Redactor
}

// Host dispatches events to modules.
type Host struct {
	cfg      Config
	states   *channelstate.Store
	registry *module.Registry
	client   platform.Client
	auditor  Auditor
	logger   *slog.Logger

	locks    *channelLocks
	limiter  *senderLimiter
	owners   map[string]module.Module
	declared []commands.OptionSpec
}

// New builds a Host. auditor and logger may be nil. Two modules declaring
// the same command namespace is an error.
func New(cfg Config, states *channelstate.Store, registry *module.Registry, client platform.Client, auditor Auditor, logger *slog.Logger) (*Host, error) {
	if states == nil || registry == nil || client == nil {
		return nil, errors.New("host: states, registry and client are required")
	}
	if cfg.Info.Prefix == "" {
		cfg.Info.Prefix = "!"
	}
	if cfg.Info.TopCommand == "" {
		cfg.Info.TopCommand = "shiori"
	}
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = format.DefaultLimit
	}
	if cfg.SaveRetry.MaxAttempts <= 0 {
		cfg.SaveRetry = retry.DefaultConfig
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &Host{
		cfg:      cfg,
		states:   states,
		registry: registry,
		client:   client,
		auditor:  auditor,
		logger:   logger,
		locks:    newChannelLocks(),
		limiter:  newSenderLimiter(cfg.RateLimit, cfg.Now),
		owners:   make(map[string]module.Module),
	}

	for _, m := range registry.Modules() {
		for _, group := range m.DeclareCommands(cfg.Info) {
			ns := strings.ToLower(group.Name)
			if prev, dup := h.owners[ns]; dup {
				return nil, fmt.Errorf("host: namespace %q declared by both %q and %q", ns, prev.ID(), m.ID())
			}
			h.owners[ns] = m
			h.declared = append(h.declared, group)
		}
	}
	return h, nil
}

// Info returns the host description modules see.
func (h *Host) Info() module.HostInfo { return h.cfg.Info }

// Commands returns every declared command group in registration order.
func (h *Host) Commands() []commands.OptionSpec {
	return append([]commands.OptionSpec(nil), h.declared...)
}

// Modules returns the registered modules.
func (h *Host) Modules() []module.Module { return h.registry.Modules() }

// ChannelCount returns the number of channels with cached state.
func (h *Host) ChannelCount() int { return h.states.Len() }

type handleFunc func(ctx context.Context, m module.Module, mc *module.Context) (module.Reply, bool)

type event struct {
	kind    string
	channel platform.ChannelRef
	actor   string
	replier platform.Replier
	// limited events spend a token from the sender's rate budget.
	limited bool
	modules []module.Module
	handle  handleFunc
	// unhandledText is sent when no module handles the event.
	unhandledText string
}

// HandleMessage offers a plain-text message to every module in registration
// order. Only messages starting with the command prefix count toward the
// sender's rate budget.
func (h *Host) HandleMessage(ctx context.Context, msg *platform.Message) error {
	if msg == nil {
		return nil
	}
	return h.dispatch(ctx, event{
		kind:    "message",
		channel: msg.Channel,
		actor:   msg.AuthorID,
		replier: msg.Replier,
		limited: hasPrefixFold(strings.TrimSpace(msg.Content), h.cfg.Info.Prefix),
		modules: h.registry.Modules(),
		handle: func(ctx context.Context, m module.Module, mc *module.Context) (module.Reply, bool) {
			return m.HandlePlainText(ctx, mc, msg)
		},
	})
}

// HandleInteraction routes a structured interaction to the single module
// owning its first option's namespace. Interactions for another top-level
// command are ignored.
func (h *Host) HandleInteraction(ctx context.Context, in *platform.Interaction) error {
	if in == nil || !strings.EqualFold(in.Command, h.cfg.Info.TopCommand) {
		return nil
	}
	ev := event{
		kind:          "interaction",
		channel:       in.Channel,
		actor:         in.UserID,
		replier:       in.Replier,
		limited:       true,
		unhandledText: UnknownCommandText,
		handle: func(ctx context.Context, m module.Module, mc *module.Context) (module.Reply, bool) {
			return m.HandleStructured(ctx, mc, in)
		},
	}
	if len(in.Options) > 0 {
		if owner, ok := h.owners[strings.ToLower(in.Options[0].Name)]; ok {
			ev.modules = []module.Module{owner}
		}
	}
	return h.dispatch(ctx, ev)
}

// Rebind moves a channel's state to the guild ref now reports. The platform
// adapter calls it when a channel's guild changes for real (a Matrix room
// moved to another space); ordinary events never rebind. actorID is whoever
// made the change.
func (h *Host) Rebind(ctx context.Context, ref platform.ChannelRef, actorID string) error {
	ctx = trace.Ensure(ctx)
	log := observability.WithTrace(ctx, h.logger).With("event", "rebind", "channel", ref.ChannelID, "actor", actorID)

	release, err := h.locks.acquire(ctx, ref.ChannelID)
	if err != nil {
		return fmt.Errorf("host: lock channel %s: %w", ref.ChannelID, err)
	}
	defer release()

	live := h.states.GetOrCreate(ctx, ref.ChannelID)
	if live.Unavailable() {
		return fmt.Errorf("host: rebind %s: channel state unavailable", ref.ChannelID)
	}
	working := live.Clone()
	if !h.states.Rebind(working, ref) {
		return nil
	}
	h.states.Put(working)

	ev := event{kind: "rebind", channel: ref, actor: actorID}
	payload := store.AuditPayload{"old_guild": live.GuildID, "new_guild": ref.GuildID}
	if err := h.save(ctx, log, ref.ChannelID); err != nil {
		h.audit(ctx, log, ev, "channel.rebind", store.AuditError, payload, err)
		return fmt.Errorf("host: rebind %s: %w", ref.ChannelID, err)
	}
	log.Info("channel moved to another guild", "old_guild", live.GuildID, "new_guild", ref.GuildID)
	h.audit(ctx, log, ev, "channel.rebind", store.AuditSuccess, payload, nil)
	return nil
}

func (h *Host) dispatch(ctx context.Context, ev event) error {
	ctx = trace.Ensure(ctx)
	log := observability.WithTrace(ctx, h.logger).With(
		"event", ev.kind, "channel", ev.channel.ChannelID, "actor", ev.actor)

	if ev.limited && !h.limiter.Allow(ev.actor) {
		log.Info("sender rate limited")
		h.deliver(ctx, log, ev, module.Reply{Text: RateLimitedText, Ephemeral: true})
		return nil
	}

	if h.cfg.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.DispatchTimeout)
		defer cancel()
	}

	release, err := h.locks.acquire(ctx, ev.channel.ChannelID)
	if err != nil {
		log.Warn("gave up waiting for channel lock", "err", err)
		return fmt.Errorf("host: lock channel %s: %w", ev.channel.ChannelID, err)
	}
	defer release()

	live := h.states.GetOrCreate(ctx, ev.channel.ChannelID)
	if live.Unavailable() {
		log.Warn("channel state unavailable; event not dispatched")
		if ev.limited {
			h.deliver(ctx, log, ev, module.Reply{Text: UnavailableText, Ephemeral: true})
		}
		return nil
	}
	if h.states.EnsureMetadata(live, ev.channel) {
		log.Info("channel bound to guild", "guild", ev.channel.GuildID)
		if err := h.save(ctx, log, ev.channel.ChannelID); err != nil {
			log.Error("failed to save channel metadata", "err", err)
		}
	}
	guildMatch := h.states.IsGuildMatch(live, ev.channel)
	working := live.Clone()

	handled := false
	for _, m := range ev.modules {
		mc := module.NewContext(module.ContextConfig{
			Host:       h.cfg.Info,
			Channel:    ev.channel,
			ActorID:    ev.actor,
			State:      working,
			GuildMatch: guildMatch,
			Platform:   h.client,
			Logger:     log.With("module", m.ID()),
			Now:        h.cfg.Now,
		})

		reply, ok, err := h.invoke(ctx, log, m, mc, ev.handle)
		if err != nil {
			h.audit(ctx, log, ev, m.ID()+".panic", store.AuditError, nil, err)
			h.deliver(ctx, log, ev, module.Reply{Text: FailureText, Ephemeral: true})
			return nil
		}
		if !ok {
			continue
		}
		handled = true

		if !guildMatch {
			log.Warn("refused: channel state belongs to another guild",
				"module", m.ID(), "stored_guild", live.GuildID, "incoming_guild", ev.channel.GuildID)
			h.audit(ctx, log, ev, m.ID()+".guild_mismatch", store.AuditRefused,
				store.AuditPayload{"stored_guild": live.GuildID, "incoming_guild": ev.channel.GuildID}, nil)
			if mc.Dirty() {
				working = live.Clone()
				reply = module.Reply{Text: module.GuildMismatchText, Ephemeral: true}
			}
			h.deliver(ctx, log, ev, reply)
			continue
		}

		if mc.Dirty() {
			if err := ctx.Err(); err != nil {
				log.Warn("dispatch cancelled; discarding uncommitted changes", "module", m.ID(), "err", err)
				return fmt.Errorf("host: dispatch cancelled: %w", err)
			}
			h.states.Put(working)
			if err := h.save(ctx, log, ev.channel.ChannelID); err != nil {
				log.Error("failed to persist channel state; keeping in-memory change", "module", m.ID(), "err", err)
				for _, rec := range mc.Records() {
					h.audit(ctx, log, ev, rec.Action, store.AuditError, rec.Payload, err)
				}
				reply = module.Reply{Text: SaveFailureText, Ephemeral: true}
			} else {
				for _, rec := range mc.Records() {
					h.audit(ctx, log, ev, rec.Action, store.AuditSuccess, rec.Payload, nil)
				}
			}
			live = working
			working = working.Clone()
		}

		log.Debug("module handled event", "module", m.ID(), "dirty", mc.Dirty())
		h.deliver(ctx, log, ev, reply)
	}

	if !handled && ev.unhandledText != "" {
		h.deliver(ctx, log, ev, module.Reply{Text: ev.unhandledText, Ephemeral: true})
	}
	return nil
}

// invoke runs one module call, turning a panic into an error.
func (h *Host) invoke(ctx context.Context, log *slog.Logger, m module.Module, mc *module.Context, fn handleFunc) (reply module.Reply, handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("module panicked", "module", m.ID(), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("module %s panicked: %v", m.ID(), r)
		}
	}()
	reply, handled = fn(ctx, m, mc)
	return reply, handled, nil
}

// save persists the cached channel state, retrying transient failures. It
// is detached from the dispatch deadline so a committed change is not lost
// to a timeout that fired after the commit.
func (h *Host) save(ctx context.Context, log *slog.Logger, channelID string) error {
	saveCtx := context.WithoutCancel(ctx)
	if h.cfg.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(saveCtx, h.cfg.DispatchTimeout)
		defer cancel()
	}
	return retry.Do(saveCtx, h.cfg.SaveRetry, func() error {
		return h.states.Save(saveCtx, channelID)
	})
}

func (h *Host) audit(ctx context.Context, log *slog.Logger, ev event, action, result string, payload map[string]any, cause error) {
	if h.auditor == nil {
		return
	}
	rec := store.AuditRecord{
		TraceID:   trace.FromContext(ctx),
		ActorID:   ev.actor,
		Action:    action,
		ChannelID: ev.channel.ChannelID,
		Result:    result,
		Payload:   h.cfg.Redactor.Map(payload),
	}
	if cause != nil {
		rec.Error = h.cfg.Redactor.Err(cause)
	}
	if err := h.auditor.WriteAudit(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("failed to write audit entry", "action", action, "err", err)
	}
}

func (h *Host) deliver(ctx context.Context, log *slog.Logger, ev event, reply module.Reply) {
	if ev.replier == nil {
		return
	}
	if err := format.Deliver(ctx, ev.replier, reply.Text, h.cfg.MessageLimit, reply.Ephemeral); err != nil {
		log.Warn("failed to deliver reply", "err", err)
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
