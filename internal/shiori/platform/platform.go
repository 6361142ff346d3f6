// Package platform defines the boundary between Shiori's core and the chat
// platform it runs on: channel and guild identifiers, inbound messages and
// structured interactions, and the calls the core needs to fetch messages and
// send replies.
//
// The core never imports a platform SDK; an adapter (see package matrix)
// produces these values and implements Client and Replier.
package platform

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrMessageNotFound is returned by Client.FetchMessage when the message does
// not exist or is not visible to the bot.
var ErrMessageNotFound = errors.New("platform: message not found")

// ChannelRef identifies a channel together with the guild it currently
// belongs to. GuildID is empty for channels outside any guild.
type ChannelRef struct {
	ChannelID string
	GuildID   string
}

// Message is a plain-text message, either inbound or fetched by id.
type Message struct {
	ID        string
	Channel   ChannelRef
	AuthorID  string
	Content   string
	CreatedAt time.Time
	// Replier answers this message. Nil for fetched messages.
	Replier Replier
}

// OptionType is the declared type of a structured command option.
type OptionType string

const (
	OptionSubcommandGroup OptionType = "subcommand_group"
	OptionSubcommand      OptionType = "subcommand"
	OptionString          OptionType = "string"
	OptionInteger         OptionType = "integer"
	OptionBoolean         OptionType = "boolean"
)

// IsLeaf reports whether options of this type carry a value.
func (t OptionType) IsLeaf() bool {
	return t != OptionSubcommandGroup && t != OptionSubcommand
}

// Option is one node of an interaction's option tree. Groups and
// subcommands carry nested Options; leaves carry Value.
type Option struct {
	Name    string     `json:"name"`
	Type    OptionType `json:"type"`
	Value   any        `json:"value,omitempty"`
	Options []Option   `json:"options,omitempty"`
}

// StringValue renders a leaf value as the string form used in requests.
func (o Option) StringValue() string {
	switch v := o.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Find returns the direct child option called name.
func (o Option) Find(name string) (Option, bool) {
	for _, c := range o.Options {
		if c.Name == name {
			return c, true
		}
	}
	return Option{}, false
}

// Interaction is a structured command invocation.
type Interaction struct {
	ID      string
	Channel ChannelRef
	UserID  string
	// Command is the top-level command name.
	Command string
	Options []Option
	Replier Replier
}

// Replier sends the response to one inbound event. The first chunk goes out
// through Reply, later chunks through FollowUp. Implementations must preserve
// send order for a single Replier.
type Replier interface {
	Reply(ctx context.Context, text string, ephemeral bool) error
	FollowUp(ctx context.Context, text string, ephemeral bool) error
	// Replied reports whether an initial reply has already been sent.
	Replied() bool
}

// Client is the subset of platform calls modules use while handling a
// command.
type Client interface {
	// FetchMessage loads a message by id. It returns ErrMessageNotFound
	// (possibly wrapped) when the message is unavailable.
	FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error)
	// MessageLink renders an absolute link whose last two path segments are
	// the channel id and message id.
	MessageLink(channelID, messageID string) string
}
