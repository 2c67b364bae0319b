// Package processor implements the recipe-driven chain of per-lead
// analysis stages. Each stage reads the transcript and the keys earlier
// stages wrote, and adds its own declared output keys to the lead
// context. A stage failure never stops the chain: the stage's outputs
// fall back to typed defaults and an error marker is recorded.
package processor

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lendsight/engage-cli/internal/model"
	"github.com/lendsight/engage-cli/internal/recipe"
)

// Params carries a stage's parameter mapping from the recipe.
type Params map[string]any

// String returns a string param, or def when absent or not a string.
func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Float returns a numeric param, or def when absent.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// Strings returns a string-list param, or nil when absent.
func (p Params) Strings(key string) []string {
	raw, ok := p[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// OutputKey declares one key a processor writes, with the typed default
// substituted when the processor fails.
type OutputKey struct {
	Name    string
	Default any
}

// Processor is one chain stage. Implementations must be pure with
// respect to the lead: only the transcript and the accumulated context
// for the current lead are visible, and writes go only to the declared
// output keys.
type Processor interface {
	Name() string
	OutputKeys() []OutputKey
	Process(ctx context.Context, leadCtx *model.Context, transcript model.Transcript, params Params) error
}

// Registry returns the built-in processors keyed by their stable recipe
// identifiers.
func Registry() map[string]Processor {
	procs := []Processor{
		NewTemporal(nil),
		&MessageMetadata{},
		&Handoff{},
		&HumanTransfer{},
		&TemplateDetection{},
		&ConversationState{},
		&Validation{},
	}
	reg := make(map[string]Processor, len(procs))
	for _, p := range procs {
		reg[p.Name()] = p
	}
	return reg
}

// Names returns the registered processor identifiers as a membership
// set, for recipe validation.
func Names() map[string]bool {
	reg := Registry()
	names := make(map[string]bool, len(reg))
	for name := range reg {
		names[name] = true
	}
	return names
}

// Step is one resolved chain entry.
type Step struct {
	Proc   Processor
	Params Params
}

// Chain runs an ordered list of processors over one lead's context.
type Chain struct {
	steps []Step
}

// NewChain resolves recipe processor specs against the registry.
func NewChain(specs []recipe.ProcessorSpec) (*Chain, error) {
	reg := Registry()
	steps := make([]Step, 0, len(specs))
	for _, spec := range specs {
		proc, ok := reg[spec.Name]
		if !ok {
			return nil, eris.Errorf("processor: unknown processor %q", spec.Name)
		}
		steps = append(steps, Step{Proc: proc, Params: Params(spec.Params)})
	}
	return &Chain{steps: steps}, nil
}

// Steps returns the resolved steps in execution order.
func (c *Chain) Steps() []Step {
	return c.steps
}

// Run executes every step in declared order against the lead context.
// A step that errors or panics is isolated: its declared output keys
// are set to their typed defaults, an error marker key is added, and
// the chain continues. Run itself only fails on context cancellation.
func (c *Chain) Run(ctx context.Context, leadCtx *model.Context, transcript model.Transcript) error {
	for _, step := range c.steps {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "processor: chain canceled")
		}
		if err := runStep(ctx, step, leadCtx, transcript); err != nil {
			zap.L().Warn("processor failed, continuing chain",
				zap.String("processor", step.Proc.Name()),
				zap.Error(err),
			)
			markFailed(leadCtx, step.Proc, err)
		}
	}
	return nil
}

// runStep invokes one processor, converting a panic into an error so a
// single bad transcript cannot take down the batch.
func runStep(ctx context.Context, step Step, leadCtx *model.Context, transcript model.Transcript) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("processor %s: panic: %v", step.Proc.Name(), r)
		}
	}()
	return step.Proc.Process(ctx, leadCtx, transcript, step.Params)
}

// markFailed substitutes typed defaults for the failed processor's
// declared outputs, without clobbering anything it managed to write,
// and records the error marker.
func markFailed(leadCtx *model.Context, proc Processor, procErr error) {
	for _, out := range proc.OutputKeys() {
		if !leadCtx.Has(out.Name) {
			leadCtx.Set(out.Name, out.Default)
		}
	}
	leadCtx.Set(fmt.Sprintf("%s_error", proc.Name()), procErr.Error())
}
