package module

import (
	"log/slog"
	"time"

	"github.com/bdobrica/Shiori/internal/shiori/channelstate"
	"github.com/bdobrica/Shiori/internal/shiori/platform"
)

// AuditRecord is an action a module asks the host to write to the audit
// log once the dispatch is committed.
type AuditRecord struct {
	Action  string
	Payload map[string]any
}

// ContextConfig populates a Context.
type ContextConfig struct {
	Host       HostInfo
	Channel    platform.ChannelRef
	ActorID    string
	State      *channelstate.ChannelState
	GuildMatch bool
	Platform   platform.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// Context is what a module sees while handling one event. State is a
// working copy owned by this dispatch; the host commits it only when the
// module marks it dirty. Cancelled events and guild mismatches never commit.
type Context struct {
	cfg     ContextConfig
	dirty   bool
	records []AuditRecord
}

// NewContext builds a Context. Missing Logger and Now default to
// slog.Default and time.Now.
func NewContext(cfg ContextConfig) *Context {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Context{cfg: cfg}
}

func (c *Context) Host() HostInfo                    { return c.cfg.Host }
func (c *Context) Channel() platform.ChannelRef      { return c.cfg.Channel }
func (c *Context) ActorID() string                   { return c.cfg.ActorID }
func (c *Context) State() *channelstate.ChannelState { return c.cfg.State }
func (c *Context) Platform() platform.Client         { return c.cfg.Platform }
func (c *Context) Logger() *slog.Logger              { return c.cfg.Logger }

// Now returns the current time in UTC.
func (c *Context) Now() time.Time { return c.cfg.Now().UTC() }

// GuildMatch reports whether State may be read or changed for this event.
// Modules must answer with GuildMismatchText when it is false.
func (c *Context) GuildMatch() bool { return c.cfg.GuildMatch }

// MarkDirty records that State was changed and must be saved.
func (c *Context) MarkDirty() { c.dirty = true }

// Dirty reports whether MarkDirty was called.
func (c *Context) Dirty() bool { return c.dirty }

// Record queues an audit entry for the host.
func (c *Context) Record(action string, payload map[string]any) {
	c.records = append(c.records, AuditRecord{Action: action, Payload: payload})
}

// Records returns the queued audit entries.
func (c *Context) Records() []AuditRecord { return c.records }
