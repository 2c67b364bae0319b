package processor

import (
	"context"
	"strings"

	"github.com/lendsight/engage-cli/internal/model"
)

// Validation is the terminal chain stage. It audits the accumulated
// context: which required keys are missing, and how many earlier
// stages failed (their error markers end in "_error").
//
// Reads: every key written so far.
// Writes: context_complete, missing_keys, processor_error_count.
type Validation struct{}

func (*Validation) Name() string { return "validation" }

func (*Validation) OutputKeys() []OutputKey {
	return []OutputKey{
		{Name: "context_complete", Default: false},
		{Name: "missing_keys", Default: ""},
		{Name: "processor_error_count", Default: 0},
	}
}

func (*Validation) Process(_ context.Context, leadCtx *model.Context, _ model.Transcript, params Params) error {
	var missing []string
	for _, key := range params.Strings("required_keys") {
		if !leadCtx.Has(key) {
			missing = append(missing, key)
		}
	}

	errCount := 0
	for _, key := range leadCtx.Keys() {
		if strings.HasSuffix(key, "_error") {
			errCount++
		}
	}

	leadCtx.Set("context_complete", len(missing) == 0 && errCount == 0)
	leadCtx.Set("missing_keys", strings.Join(missing, ","))
	leadCtx.Set("processor_error_count", errCount)
	return nil
}
