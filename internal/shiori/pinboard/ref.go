package pinboard

import (
	"errors"
	"net/url"
	"strings"
)

// SnippetLimit is the maximum snippet length in characters.
const SnippetLimit = 160

const ellipsis = "..."

var errBadRef = errors.New("pinboard: unrecognised message reference")

// Snippet truncates text to SnippetLimit characters, replacing the tail with
// "..." when it is cut. Shorter text is returned verbatim.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= SnippetLimit {
		return text
	}
	return string(runes[:SnippetLimit-len(ellipsis)]) + ellipsis
}

// ParseMessageRef resolves ref into a channel and message id. A bare
// message id (all digits, or a Matrix "$event" id) refers to
// currentChannel. An absolute link must end in /<channelId>/<messageId>;
// links whose target sits in the URL fragment (https://matrix.to/#/...)
// are read the same way.
func ParseMessageRef(ref, currentChannel string) (channelID, messageID string, err error) {
	ref = strings.TrimSpace(ref)
	if !strings.Contains(ref, "://") {
		if !isMessageID(ref) {
			return "", "", errBadRef
		}
		return currentChannel, ref, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", "", errBadRef
	}
	p := u.Path
	if u.Fragment != "" {
		frag, _, _ := strings.Cut(u.Fragment, "?")
		p += "/" + frag
	}
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) < 2 {
		return "", "", errBadRef
	}
	channelID, messageID = segs[len(segs)-2], segs[len(segs)-1]
	if !isMessageID(messageID) {
		return "", "", errBadRef
	}
	return channelID, messageID, nil
}

func isMessageID(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n/") {
		return false
	}
	if s[0] == '$' {
		return len(s) > 1
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
