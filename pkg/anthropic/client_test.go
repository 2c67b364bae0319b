package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageResponseText(t *testing.T) {
	t.Parallel()

	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "first "},
		{Type: "tool_use", Text: "skipped"},
		{Type: "text", Text: "second"},
		{Type: "", Text: "!"},
	}}
	assert.Equal(t, "first second!", resp.Text())

	empty := &MessageResponse{}
	assert.Equal(t, "", empty.Text())
}

func TestTokenUsageAdd(t *testing.T) {
	t.Parallel()

	var u TokenUsage
	u.Add(TokenUsage{InputTokens: 100, OutputTokens: 20, CacheReadInputTokens: 50})
	u.Add(TokenUsage{InputTokens: 40, OutputTokens: 5, CacheCreationInputTokens: 10})

	assert.Equal(t, int64(140), u.InputTokens)
	assert.Equal(t, int64(25), u.OutputTokens)
	assert.Equal(t, int64(10), u.CacheCreationInputTokens)
	assert.Equal(t, int64(50), u.CacheReadInputTokens)
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	t.Parallel()

	blocks := BuildCachedSystemBlocks("you are an analyst")
	require.Len(t, blocks, 1)
	assert.Equal(t, "you are an analyst", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}

func TestToSDKMessages(t *testing.T) {
	t.Parallel()

	out := toSDKMessages([]Message{
		{Role: "user", Content: "hola"},
		{Role: "assistant", Content: "respuesta"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
}
