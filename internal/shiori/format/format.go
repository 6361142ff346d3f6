// Package format splits outbound text into platform-sized chunks and sends
// them as an initial reply followed by ordered follow-ups.
package format

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/bdobrica/Shiori/internal/shiori/platform"
)

// DefaultLimit is the per-message character limit of the reference platform.
const DefaultLimit = 2000

// EmptyResponse replaces an empty result so that at least one message is
// always sent.
const EmptyResponse = "(no response content)"

// Chunk splits text into contiguous pieces of at most limit characters
// (runes). Concatenating the chunks reproduces text exactly. Empty text
// becomes a single EmptyResponse chunk. A non-positive limit means
// DefaultLimit.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if text == "" {
		text = EmptyResponse
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/limit+1)
	start, count := 0, 0
	for i := range text {
		if count == limit {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}

// Deliver sends text through r: the first chunk as the reply (or as a
// follow-up when the event was already answered), the rest as follow-ups in
// order. It stops at the first send error.
func Deliver(ctx context.Context, r platform.Replier, text string, limit int, ephemeral bool) error {
	for i, chunk := range Chunk(text, limit) {
		var err error
		if i == 0 && !r.Replied() {
			err = r.Reply(ctx, chunk, ephemeral)
		} else {
			err = r.FollowUp(ctx, chunk, ephemeral)
		}
		if err != nil {
			return fmt.Errorf("format: send chunk %d: %w", i+1, err)
		}
	}
	return nil
}
