// Package commands normalises Shiori's two command surfaces into one Request
// shape and routes requests through a dispatch table.
//
// Plain text:  "!pin add $evt great find"
// Structured:  /shiori pin add message:$evt note:"great find"
//
// both become Request{Namespace: "pin", Command: "add", Args: ["$evt", "great", "find"]}
// (structured leaves keep their spaces: ["$evt", "great find"]).
package commands

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bdobrica/Shiori/internal/shiori/platform"
)

// ErrNotACommand is returned by ParseText when the message is not addressed
// to the namespace. Callers should use errors.Is to distinguish this expected
// case from real errors.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// Request is the normalised form of a command invocation.
type Request struct {
	Namespace string
	Command   string
	Args      []string
}

// Arg returns the argument at index.
func (r Request) Arg(index int) (string, bool) {
	if index < 0 || index >= len(r.Args) {
		return "", false
	}
	return r.Args[index], true
}

// Rest joins the arguments from index on with single spaces.
func (r Request) Rest(index int) string {
	if index >= len(r.Args) {
		return ""
	}
	return strings.Join(r.Args[index:], " ")
}

// FullCommand returns "namespace command".
func (r Request) FullCommand() string {
	if r.Command == "" {
		return r.Namespace
	}
	return r.Namespace + " " + r.Command
}

// ParseText parses a plain-text message addressed to prefix+namespace
// (e.g. "!" + "pin"). The match is case-insensitive and must end at a word
// boundary, so "!pinboard" is not a "!pin" command. The first token after the
// prefix is the lower-cased command; with no token, defaultCommand is used.
func ParseText(prefix, namespace, text, defaultCommand string) (Request, error) {
	text = strings.TrimSpace(text)
	head := prefix + namespace

	if len(text) < len(head) || !strings.EqualFold(text[:len(head)], head) {
		return Request{}, ErrNotACommand
	}
	rest := text[len(head):]
	if r, _ := utf8.DecodeRuneInString(rest); rest != "" && !unicode.IsSpace(r) {
		return Request{}, ErrNotACommand
	}

	req := Request{Namespace: namespace, Command: defaultCommand, Args: []string{}}
	parts := strings.Fields(rest)
	if len(parts) > 0 {
		req.Command = strings.ToLower(parts[0])
		req.Args = append(req.Args, parts[1:]...)
	}
	return req, nil
}

// ParseStructured normalises the group option of an interaction against its
// declaration. The subcommand's own name becomes Command; each declared leaf
// present in the interaction contributes its stringified value to Args in
// declaration order. Subcommands the declaration does not know keep their
// leaves in received order so the module can answer with its own "unknown"
// text. A group without a subcommand yields defaultCommand.
func ParseStructured(group OptionSpec, opt platform.Option, defaultCommand string) (Request, error) {
	if !strings.EqualFold(opt.Name, group.Name) {
		return Request{}, fmt.Errorf("option %q does not belong to namespace %q", opt.Name, group.Name)
	}

	req := Request{Namespace: group.Name, Command: defaultCommand, Args: []string{}}
	if len(opt.Options) == 0 {
		return req, nil
	}
	sub := opt.Options[0]
	if sub.Type != "" && sub.Type != platform.OptionSubcommand {
		return Request{}, fmt.Errorf("namespace %q: expected a subcommand, got %s %q", group.Name, sub.Type, sub.Name)
	}
	req.Command = strings.ToLower(sub.Name)

	decl, ok := group.Find(req.Command)
	if !ok {
		for _, leaf := range sub.Options {
			if leaf.Type.IsLeaf() {
				req.Args = append(req.Args, leaf.StringValue())
			}
		}
		return req, nil
	}

	for _, want := range decl.Options {
		if !want.Type.IsLeaf() {
			continue
		}
		got, present := sub.Find(want.Name)
		if !present {
			if want.Required {
				return Request{}, fmt.Errorf("%s %s: missing required option %q", group.Name, decl.Name, want.Name)
			}
			continue
		}
		req.Args = append(req.Args, got.StringValue())
	}
	return req, nil
}
