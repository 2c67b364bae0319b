package processor

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/lendsight/engage-cli/internal/model"
)

// maxLastTextLen bounds the last-message excerpt carried in the output.
const maxLastTextLen = 200

// MessageMetadata derives volume and boundary facts from the transcript.
//
// Reads: nothing.
// Writes: message_count, system_message_count, user_message_count,
// first_message_at, last_message_at, last_message_text.
type MessageMetadata struct{}

func (*MessageMetadata) Name() string { return "message_metadata" }

func (*MessageMetadata) OutputKeys() []OutputKey {
	return []OutputKey{
		{Name: "message_count", Default: 0},
		{Name: "system_message_count", Default: 0},
		{Name: "user_message_count", Default: 0},
		{Name: "first_message_at", Default: ""},
		{Name: "last_message_at", Default: ""},
		{Name: "last_message_text", Default: ""},
	}
}

func (*MessageMetadata) Process(_ context.Context, leadCtx *model.Context, transcript model.Transcript, _ Params) error {
	ordered := transcript.Sorted()

	leadCtx.Set("message_count", len(ordered))
	leadCtx.Set("system_message_count", ordered.CountFrom(model.SenderSystem))
	leadCtx.Set("user_message_count", ordered.CountFrom(model.SenderUser))

	if len(ordered) == 0 {
		leadCtx.Set("first_message_at", "")
		leadCtx.Set("last_message_at", "")
		leadCtx.Set("last_message_text", "")
		return nil
	}

	leadCtx.Set("first_message_at", ordered[0].Timestamp.UTC().Format(time.RFC3339))
	last := ordered[len(ordered)-1]
	leadCtx.Set("last_message_at", last.Timestamp.UTC().Format(time.RFC3339))

	leadCtx.Set("last_message_text", truncateRunes(last.Text, maxLastTextLen))
	return nil
}

// truncateRunes cuts s to at most n runes without splitting a
// multibyte character.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
