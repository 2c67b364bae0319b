package processor

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendsight/engage-cli/internal/model"
	"github.com/lendsight/engage-cli/internal/recipe"
)

func TestParamsString(t *testing.T) {
	t.Parallel()

	p := Params{"pattern": "hola", "empty": "", "num": 3}
	assert.Equal(t, "hola", p.String("pattern", "def"))
	assert.Equal(t, "def", p.String("empty", "def"))
	assert.Equal(t, "def", p.String("num", "def"))
	assert.Equal(t, "def", p.String("missing", "def"))
}

func TestParamsFloat(t *testing.T) {
	t.Parallel()

	p := Params{"f": 1.5, "i": 2, "s": "3"}
	assert.Equal(t, 1.5, p.Float("f", 0))
	assert.Equal(t, 2.0, p.Float("i", 0))
	assert.Equal(t, 9.0, p.Float("s", 9))
	assert.Equal(t, 9.0, p.Float("missing", 9))
}

func TestParamsStrings(t *testing.T) {
	t.Parallel()

	p := Params{"keys": []any{"a", "b", 3}, "notlist": "a"}
	assert.Equal(t, []string{"a", "b"}, p.Strings("keys"))
	assert.Nil(t, p.Strings("notlist"))
	assert.Nil(t, p.Strings("missing"))
}

func TestRegistryContainsAllProcessors(t *testing.T) {
	t.Parallel()

	reg := Registry()
	for _, name := range []string{
		"temporal",
		"message_metadata",
		"handoff",
		"human_transfer",
		"template_detection",
		"conversation_state",
		"validation",
	} {
		assert.Contains(t, reg, name)
		assert.Equal(t, name, reg[name].Name())
	}

	names := Names()
	assert.Len(t, names, len(reg))
	assert.True(t, names["temporal"])
}

func TestNewChainUnknownProcessor(t *testing.T) {
	t.Parallel()

	_, err := NewChain([]recipe.ProcessorSpec{{Name: "nonexistent"}})
	assert.Error(t, err)
}

func TestNewChainResolvesInOrder(t *testing.T) {
	t.Parallel()

	chain, err := NewChain([]recipe.ProcessorSpec{
		{Name: "message_metadata"},
		{Name: "validation", Params: map[string]any{"required_keys": []any{"message_count"}}},
	})
	require.NoError(t, err)

	steps := chain.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, "message_metadata", steps[0].Proc.Name())
	assert.Equal(t, "validation", steps[1].Proc.Name())
}

// failing is a test double that always errors.
type failing struct{}

func (*failing) Name() string { return "failing" }
func (*failing) OutputKeys() []OutputKey {
	return []OutputKey{{Name: "failing_out", Default: "fallback"}}
}
func (*failing) Process(context.Context, *model.Context, model.Transcript, Params) error {
	return eris.New("boom")
}

// panicking is a test double that panics.
type panicking struct{}

func (*panicking) Name() string { return "panicking" }
func (*panicking) OutputKeys() []OutputKey {
	return []OutputKey{{Name: "panicking_out", Default: 0}}
}
func (*panicking) Process(context.Context, *model.Context, model.Transcript, Params) error {
	panic("unexpected transcript shape")
}

func TestChainIsolatesFailures(t *testing.T) {
	t.Parallel()

	chain := &Chain{steps: []Step{
		{Proc: &failing{}},
		{Proc: &MessageMetadata{}},
	}}

	leadCtx := model.NewContext()
	err := chain.Run(context.Background(), leadCtx, nil)
	require.NoError(t, err)

	// Failed stage degraded to defaults plus an error marker.
	v, ok := leadCtx.Get("failing_out")
	assert.True(t, ok)
	assert.Equal(t, "fallback", v)
	assert.True(t, leadCtx.Has("failing_error"))

	// Later stages still ran.
	assert.True(t, leadCtx.Has("message_count"))
}

func TestChainRecoversFromPanic(t *testing.T) {
	t.Parallel()

	chain := &Chain{steps: []Step{{Proc: &panicking{}}}}

	leadCtx := model.NewContext()
	err := chain.Run(context.Background(), leadCtx, nil)
	require.NoError(t, err)

	v, ok := leadCtx.Get("panicking_out")
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	assert.True(t, leadCtx.Has("panicking_error"))
}

func TestChainStopsOnCancellation(t *testing.T) {
	t.Parallel()

	chain := &Chain{steps: []Step{{Proc: &MessageMetadata{}}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	leadCtx := model.NewContext()
	err := chain.Run(ctx, leadCtx, nil)
	assert.Error(t, err)
	assert.False(t, leadCtx.Has("message_count"))
}

func TestChainFullRecipeOrder(t *testing.T) {
	t.Parallel()

	fixed := func() time.Time { return time.Date(2026, 3, 12, 12, 0, 0, 0, time.UTC) }

	offer := "tenemos una oferta de credito para ti"
	transcript := model.Transcript{
		{Sender: model.SenderSystem, Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), Text: "Tenemos una oferta de crédito para ti"},
		{Sender: model.SenderUser, Timestamp: time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC), RawPayload: `{"id":"interested","title":"Me interesa"}`},
	}

	chain := &Chain{steps: []Step{
		{Proc: NewTemporal(fixed)},
		{Proc: &MessageMetadata{}},
		{Proc: &TemplateDetection{}, Params: Params{"template_pattern": offer}},
		{Proc: &ConversationState{}},
		{Proc: &Validation{}, Params: Params{"required_keys": []any{"user_response", "engagement_state"}}},
	}}

	leadCtx := model.NewContext()
	require.NoError(t, chain.Run(context.Background(), leadCtx, transcript))

	assert.Equal(t, "Me interesa", leadCtx.GetString("user_response"))
	assert.Equal(t, StateInterested, leadCtx.GetString("engagement_state"))
	assert.Equal(t, "TRUE", leadCtx.GetString("needs_followup"))
	assert.Equal(t, "TRUE", leadCtx.GetString("context_complete"))
	assert.Equal(t, "2", leadCtx.GetString("message_count"))
}
