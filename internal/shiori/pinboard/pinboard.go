// Package pinboard implements the reference Shiori module: per-channel
// bookmarks of messages, with notes, listing and search.
//
//	!pin add <messageIdOrLink> [note text...]
//	!pin remove <id>
//	!pin list [count]
//	!pin search <query text...>
//	!pin                (bare → list)
//
// and the structured equivalent /shiori pin add|remove|list|search.
package pinboard

import (
	"context"
	"fmt"

	"github.com/bdobrica/Shiori/internal/shiori/commands"
	"github.com/bdobrica/Shiori/internal/shiori/module"
	"github.com/bdobrica/Shiori/internal/shiori/platform"
)

// Namespace is the command namespace the pinboard owns.
const Namespace = "pin"

const defaultCommand = "list"

// Config tunes the pinboard's limits.
type Config struct {
	// ListDefault is the number of pins listed when no count is given.
	ListDefault int `yaml:"list_default"`
	// ListMax caps an explicit list count.
	ListMax int `yaml:"list_max"`
	// SearchMax caps the number of search results.
	SearchMax int `yaml:"search_max"`
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{ListDefault: 10, ListMax: 50, SearchMax: 50}
}

type handler func(ctx context.Context, mc *module.Context, req commands.Request) module.Reply

// Module is the pinboard feature module.
type Module struct {
	cfg   Config
	table *commands.Table[handler]
}

var _ module.Module = (*Module)(nil)

// New creates the module; zero limits take their defaults.
func New(cfg Config) *Module {
	def := DefaultConfig()
	if cfg.ListDefault <= 0 {
		cfg.ListDefault = def.ListDefault
	}
	if cfg.ListMax <= 0 {
		cfg.ListMax = def.ListMax
	}
	if cfg.ListDefault > cfg.ListMax {
		cfg.ListDefault = cfg.ListMax
	}
	if cfg.SearchMax <= 0 {
		cfg.SearchMax = def.SearchMax
	}

	m := &Module{cfg: cfg, table: commands.NewTable[handler]()}
	m.table.Register(Namespace, "add", m.handleAdd)
	m.table.Register(Namespace, "remove", m.handleRemove)
	m.table.Register(Namespace, "list", m.handleList)
	m.table.Register(Namespace, "search", m.handleSearch)
	return m
}

func (m *Module) ID() string   { return "pinboard" }
func (m *Module) Name() string { return "Pinboard" }

// group is the declared command tree for the pin namespace.
func (m *Module) group() commands.OptionSpec {
	return commands.Group(Namespace, "Bookmark messages in this channel",
		commands.Subcommand("add", "Pin a message by id or link",
			commands.Leaf("message", platform.OptionString, true, "Message id or link"),
			commands.Leaf("note", platform.OptionString, false, "Optional note"),
		),
		commands.Subcommand("remove", "Remove a pin",
			commands.Leaf("id", platform.OptionInteger, true, "Pin number"),
		),
		commands.Subcommand("list", "List recent pins",
			commands.Leaf("count", platform.OptionInteger, false, fmt.Sprintf("How many (1-%d)", m.cfg.ListMax)),
		),
		commands.Subcommand("search", "Search pin snippets and notes",
			commands.Leaf("query", platform.OptionString, true, "Text to look for"),
		),
	)
}

// DeclareCommands implements module.Module.
func (m *Module) DeclareCommands(module.HostInfo) []commands.OptionSpec {
	return []commands.OptionSpec{m.group()}
}

// HandleStructured implements module.Module.
func (m *Module) HandleStructured(ctx context.Context, mc *module.Context, in *platform.Interaction) (module.Reply, bool) {
	if len(in.Options) == 0 || in.Options[0].Name != Namespace {
		return module.Reply{}, false
	}
	req, err := commands.ParseStructured(m.group(), in.Options[0], defaultCommand)
	if err != nil {
		mc.Logger().Debug("pinboard: bad structured command", "err", err)
		return module.Reply{Text: "Invalid pin command: " + err.Error(), Ephemeral: true}, true
	}
	return m.dispatch(ctx, mc, req), true
}

// HandlePlainText implements module.Module.
func (m *Module) HandlePlainText(ctx context.Context, mc *module.Context, msg *platform.Message) (module.Reply, bool) {
	req, err := commands.ParseText(mc.Host().Prefix, Namespace, msg.Content, defaultCommand)
	if err != nil {
		return module.Reply{}, false
	}
	return m.dispatch(ctx, mc, req), true
}

func (m *Module) dispatch(ctx context.Context, mc *module.Context, req commands.Request) module.Reply {
	if !mc.GuildMatch() {
		return module.Reply{Text: module.GuildMismatchText, Ephemeral: true}
	}
	h, ok := m.table.Lookup(req)
	if !ok {
		mc.Logger().Debug("pinboard: unknown command", "command", req.FullCommand())
		return module.Reply{Text: "Unknown pin command.", Ephemeral: true}
	}
	mc.Logger().Debug("pinboard: command", "command", req.FullCommand(), "args", len(req.Args))
	return h(ctx, mc, req)
}
