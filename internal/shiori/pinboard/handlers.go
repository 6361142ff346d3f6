package pinboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bdobrica/Shiori/internal/shiori/channelstate"
	"github.com/bdobrica/Shiori/internal/shiori/commands"
	"github.com/bdobrica/Shiori/internal/shiori/module"
	"github.com/bdobrica/Shiori/internal/shiori/platform"
)

func usage(mc *module.Context, text string) module.Reply {
	return module.Reply{Text: "Usage: " + mc.Host().Prefix + Namespace + " " + text, Ephemeral: true}
}

func (m *Module) handleAdd(ctx context.Context, mc *module.Context, req commands.Request) module.Reply {
	ref, ok := req.Arg(0)
	if !ok {
		return usage(mc, "add <messageIdOrLink> [note]")
	}
	here := mc.Channel().ChannelID
	channelID, messageID, err := ParseMessageRef(ref, here)
	if err != nil {
		return module.Reply{Text: "Could not parse that message reference. Use a message id or a message link.", Ephemeral: true}
	}
	if channelID != here {
		return module.Reply{Text: "You can only pin messages from this channel.", Ephemeral: true}
	}

	msg, err := mc.Platform().FetchMessage(ctx, channelID, messageID)
	if err != nil {
		if !errors.Is(err, platform.ErrMessageNotFound) {
			mc.Logger().Warn("pinboard: fetch message failed", "channel", channelID, "message", messageID, "err", err)
		}
		return module.Reply{Text: "Message not found.", Ephemeral: true}
	}

	st := mc.State()
	if st.Pinboard == nil {
		st.Pinboard = &channelstate.PinboardState{}
	}
	pb := st.Pinboard
	id := nextID(pb)
	pb.Pins = append(pb.Pins, channelstate.PinboardEntry{
		ID:         id,
		ChannelID:  channelID,
		MessageID:  messageID,
		AuthorID:   msg.AuthorID,
		Snippet:    Snippet(msg.Content),
		Note:       req.Rest(1),
		CreatedUTC: mc.Now(),
	})
	pb.LastID = id
	mc.MarkDirty()
	mc.Record("pin.add", map[string]any{"pin_id": id, "message_id": messageID})

	return module.Reply{Text: fmt.Sprintf("Pinned #%d: %s", id, mc.Platform().MessageLink(channelID, messageID))}
}

// nextID is one past the highest id ever assigned on pb.
func nextID(pb *channelstate.PinboardState) int {
	highest := pb.LastID
	for _, p := range pb.Pins {
		if p.ID > highest {
			highest = p.ID
		}
	}
	return highest + 1
}

func (m *Module) handleRemove(ctx context.Context, mc *module.Context, req commands.Request) module.Reply {
	raw, ok := req.Arg(0)
	if !ok {
		return usage(mc, "remove <id>")
	}
	id, err := strconv.Atoi(strings.TrimPrefix(raw, "#"))
	if err != nil {
		return module.Reply{Text: "Pin id must be a number.", Ephemeral: true}
	}

	pb := mc.State().Pinboard
	if pb != nil {
		for i, p := range pb.Pins {
			if p.ID != id {
				continue
			}
			pb.Pins = append(pb.Pins[:i], pb.Pins[i+1:]...)
			mc.MarkDirty()
			mc.Record("pin.remove", map[string]any{"pin_id": id})
			return module.Reply{Text: fmt.Sprintf("Pin #%d removed.", id)}
		}
	}
	return module.Reply{Text: fmt.Sprintf("Pin #%d not found.", id), Ephemeral: true}
}

func (m *Module) handleList(ctx context.Context, mc *module.Context, req commands.Request) module.Reply {
	count := m.cfg.ListDefault
	if raw, ok := req.Arg(0); ok {
		if n, err := strconv.Atoi(raw); err == nil {
			count = min(max(n, 1), m.cfg.ListMax)
		}
	}

	pb := mc.State().Pinboard
	if pb == nil || len(pb.Pins) == 0 {
		return module.Reply{Text: "No pins yet."}
	}
	return module.Reply{Text: m.render(mc, newestFirst(pb.Pins, count))}
}

func (m *Module) handleSearch(ctx context.Context, mc *module.Context, req commands.Request) module.Reply {
	query := strings.TrimSpace(req.Rest(0))
	if query == "" {
		return module.Reply{Text: "Provide search text.", Ephemeral: true}
	}

	var matches []channelstate.PinboardEntry
	if pb := mc.State().Pinboard; pb != nil {
		needle := strings.ToLower(query)
		for _, p := range pb.Pins {
			if strings.Contains(strings.ToLower(p.Snippet), needle) || strings.Contains(strings.ToLower(p.Note), needle) {
				matches = append(matches, p)
			}
		}
	}
	if len(matches) == 0 {
		return module.Reply{Text: "No matches."}
	}
	return module.Reply{Text: m.render(mc, newestFirst(matches, m.cfg.SearchMax))}
}

// newestFirst returns up to limit pins ordered by creation time, newest
// first. Equal times fall back to the higher id first. pins is not modified.
func newestFirst(pins []channelstate.PinboardEntry, limit int) []channelstate.PinboardEntry {
	sorted := append([]channelstate.PinboardEntry(nil), pins...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedUTC.Equal(sorted[j].CreatedUTC) {
			return sorted[i].CreatedUTC.After(sorted[j].CreatedUTC)
		}
		return sorted[i].ID > sorted[j].ID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func (m *Module) render(mc *module.Context, pins []channelstate.PinboardEntry) string {
	var sb strings.Builder
	for i, p := range pins {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "#%d %s by %s: %s", p.ID, mc.Platform().MessageLink(p.ChannelID, p.MessageID), p.AuthorID, p.Snippet)
		if p.Note != "" {
			sb.WriteString(" | ")
			sb.WriteString(p.Note)
		}
	}
	return sb.String()
}
