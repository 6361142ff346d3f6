package commands

import (
	"strings"

	"github.com/bdobrica/Shiori/internal/shiori/platform"
)

// OptionSpec declares one node of a structured command tree. A module
// declares its namespace as a subcommand group whose Options are its
// subcommands, whose Options in turn are typed leaves.
type OptionSpec struct {
	Name        string              `json:"name" yaml:"name"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Type        platform.OptionType `json:"type" yaml:"type"`
	Required    bool                `json:"required,omitempty" yaml:"required,omitempty"`
	Options     []OptionSpec        `json:"options,omitempty" yaml:"options,omitempty"`
}

// Find returns the direct child declared as name (case-insensitive).
func (s OptionSpec) Find(name string) (OptionSpec, bool) {
	for _, c := range s.Options {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return OptionSpec{}, false
}

// Group declares a namespace.
func Group(name, description string, subcommands ...OptionSpec) OptionSpec {
	return OptionSpec{Name: name, Description: description, Type: platform.OptionSubcommandGroup, Options: subcommands}
}

// Subcommand declares a subcommand with typed leaves.
func Subcommand(name, description string, leaves ...OptionSpec) OptionSpec {
	return OptionSpec{Name: name, Description: description, Type: platform.OptionSubcommand, Options: leaves}
}

// Leaf declares a value-carrying option.
func Leaf(name string, typ platform.OptionType, required bool, description string) OptionSpec {
	return OptionSpec{Name: name, Description: description, Type: typ, Required: required}
}
