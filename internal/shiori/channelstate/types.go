package channelstate

import "time"

// ChannelState is the persisted state of one platform channel.
type ChannelState struct {
	ChannelID string `json:"channel_id"`
	// GuildID is the guild the record was built under. Empty until the first
	// reference seeds it, and for channels outside any guild.
	GuildID string `json:"guild_id,omitempty"`
	// Pinboard is owned by the pinboard module; nil until first use.
	Pinboard *PinboardState `json:"pinboard,omitempty"`

	unavailable bool
}

// Unavailable reports whether s stands in for a record that could not be
// loaded. Such a record is empty, is never cached, and must not be
// mutated or saved: doing so would overwrite the durable copy.
func (s *ChannelState) Unavailable() bool { return s != nil && s.unavailable }

// PinboardState holds a channel's bookmarks.
type PinboardState struct {
	Pins []PinboardEntry `json:"pins"`
	// LastID is the highest id ever assigned in this channel. It keeps ids
	// from being reused after the newest pin is removed.
	LastID int `json:"last_id,omitempty"`
}

// PinboardEntry is one bookmarked message.
type PinboardEntry struct {
	ID         int       `json:"id"`
	ChannelID  string    `json:"channel_id"`
	MessageID  string    `json:"message_id"`
	AuthorID   string    `json:"author_id"`
	Snippet    string    `json:"snippet"`
	Note       string    `json:"note,omitempty"`
	CreatedUTC time.Time `json:"created_utc"`
}

// Clone returns a deep copy of s. Modules work on clones so that an aborted
// dispatch leaves the cached record untouched.
func (s *ChannelState) Clone() *ChannelState {
	if s == nil {
		return nil
	}
	out := *s
	if s.Pinboard != nil {
		pb := *s.Pinboard
		pb.Pins = append([]PinboardEntry(nil), s.Pinboard.Pins...)
		out.Pinboard = &pb
	}
	return &out
}
