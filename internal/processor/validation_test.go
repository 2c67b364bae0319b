package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendsight/engage-cli/internal/model"
)

func TestValidationComplete(t *testing.T) {
	t.Parallel()

	leadCtx := model.NewContext()
	leadCtx.Set("user_response", "Me interesa")
	leadCtx.Set("engagement_state", "interested")

	params := Params{"required_keys": []any{"user_response", "engagement_state"}}
	require.NoError(t, (&Validation{}).Process(context.Background(), leadCtx, nil, params))

	assert.Equal(t, "TRUE", leadCtx.GetString("context_complete"))
	assert.Equal(t, "", leadCtx.GetString("missing_keys"))
	assert.Equal(t, "0", leadCtx.GetString("processor_error_count"))
}

func TestValidationMissingKeys(t *testing.T) {
	t.Parallel()

	leadCtx := model.NewContext()
	leadCtx.Set("user_response", "ignored")

	params := Params{"required_keys": []any{"user_response", "engagement_state", "message_count"}}
	require.NoError(t, (&Validation{}).Process(context.Background(), leadCtx, nil, params))

	assert.Equal(t, "FALSE", leadCtx.GetString("context_complete"))
	assert.Equal(t, "engagement_state,message_count", leadCtx.GetString("missing_keys"))
}

func TestValidationCountsErrorMarkers(t *testing.T) {
	t.Parallel()

	leadCtx := model.NewContext()
	leadCtx.Set("temporal_error", "load timezone failed")
	leadCtx.Set("handoff_error", "boom")
	leadCtx.Set("not_a_marker", 1)

	require.NoError(t, (&Validation{}).Process(context.Background(), leadCtx, nil, nil))

	assert.Equal(t, "2", leadCtx.GetString("processor_error_count"))
	assert.Equal(t, "FALSE", leadCtx.GetString("context_complete"))
}

func TestValidationNoRequirements(t *testing.T) {
	t.Parallel()

	leadCtx := model.NewContext()
	require.NoError(t, (&Validation{}).Process(context.Background(), leadCtx, nil, nil))

	assert.Equal(t, "TRUE", leadCtx.GetString("context_complete"))
	assert.Equal(t, "", leadCtx.GetString("missing_keys"))
}
