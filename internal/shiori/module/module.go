// Package module defines the contract between the Shiori host and its
// feature modules, and the static registry the host is built from.
//
// A module declares the structured commands it owns, answers structured
// interactions routed to its namespace, and decides for itself whether a
// plain-text message is addressed to it. Handlers have no error channel:
// every outcome, including bad input, is a Reply for the user.
package module

import (
	"context"
	"fmt"

	"github.com/bdobrica/Shiori/internal/shiori/commands"
	"github.com/bdobrica/Shiori/internal/shiori/platform"
)

// GuildMismatchText is the refusal sent when a channel's state was built
// under a different guild than the one addressing it now.
const GuildMismatchText = "This channel's saved state belongs to a different space, so I can't act on it here."

// Reply is a module's answer to one event.
type Reply struct {
	Text string
	// Ephemeral asks the platform to show the reply only to the invoker
	// where it can.
	Ephemeral bool
}

// HostInfo describes the host a module is registered in.
type HostInfo struct {
	// Prefix starts plain-text commands, e.g. "!" for "!pin list".
	Prefix string
	// TopCommand is the structured top-level command, e.g. "shiori".
	TopCommand string
}

// Module is a pluggable feature.
type Module interface {
	// ID is the stable registration key.
	ID() string
	// Name is a human-readable name for logs and status output.
	Name() string
	// DeclareCommands returns the subcommand groups this module owns
	// under the host's top-level command.
	DeclareCommands(info HostInfo) []commands.OptionSpec
	// HandleStructured executes an interaction whose first option is one of
	// this module's groups. It returns false when it did not handle it.
	HandleStructured(ctx context.Context, mc *Context, in *platform.Interaction) (Reply, bool)
	// HandlePlainText acts on msg if it is addressed to this module and
	// reports whether it did. Messages it does not understand are ignored.
	HandlePlainText(ctx context.Context, mc *Context, msg *platform.Message) (Reply, bool)
}

// Registry is the ordered, static set of modules assembled at startup.
type Registry struct {
	order []Module
	byID  map[string]Module
}

// NewRegistry registers mods in order. Duplicate ids are an error.
func NewRegistry(mods ...Module) (*Registry, error) {
	r := &Registry{byID: make(map[string]Module)}
	for _, m := range mods {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends m.
func (r *Registry) Register(m Module) error {
	if m.ID() == "" {
		return fmt.Errorf("module: %q has an empty id", m.Name())
	}
	if _, exists := r.byID[m.ID()]; exists {
		return fmt.Errorf("module: duplicate id %q", m.ID())
	}
	r.byID[m.ID()] = m
	r.order = append(r.order, m)
	return nil
}

// Modules returns the modules in registration order.
func (r *Registry) Modules() []Module {
	return append([]Module(nil), r.order...)
}
