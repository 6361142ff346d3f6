package matrix

import (
	"sort"
	"sync"
)

// guildCache remembers each room's parent space. Entries are dropped when
// the room's m.space.parent state changes.
type guildCache struct {
	mu    sync.RWMutex
	rooms map[string]string
}

func newGuildCache() *guildCache {
	return &guildCache{rooms: make(map[string]string)}
}

func (g *guildCache) get(roomID string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	guild, ok := g.rooms[roomID]
	return guild, ok
}

func (g *guildCache) put(roomID, guild string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms[roomID] = guild
}

func (g *guildCache) forget(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, roomID)
}

// pickParent chooses a room's guild from its m.space.parent state, keyed
// by parent room id. Parents without a "via" list have been removed. A
// canonical parent wins; otherwise the lowest room id is used so the
// choice is stable.
func pickParent(parents map[string]map[string]any) string {
	var live, canonical []string
	for roomID, content := range parents {
		if roomID == "" || !hasVia(content) {
			continue
		}
		live = append(live, roomID)
		if c, _ := content["canonical"].(bool); c {
			canonical = append(canonical, roomID)
		}
	}
	if len(canonical) > 0 {
		live = canonical
	}
	if len(live) == 0 {
		return ""
	}
	sort.Strings(live)
	return live[0]
}

func hasVia(content map[string]any) bool {
	via, ok := content["via"].([]any)
	return ok && len(via) > 0
}
