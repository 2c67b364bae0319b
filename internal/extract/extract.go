// Package extract runs the schema-validated language-model step: it
// renders the recipe's prompt from the lead context, calls the model,
// and merges the validated reply back into the context. A field that
// fails validation falls back to its documented default and is counted;
// the lead itself is never dropped.
package extract

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lendsight/engage-cli/internal/model"
	"github.com/lendsight/engage-cli/internal/recipe"
	"github.com/lendsight/engage-cli/internal/resilience"
	"github.com/lendsight/engage-cli/pkg/anthropic"
)

const systemText = "You are an analyst reviewing lending-outreach conversations. " +
	"Answer with a single valid JSON object containing exactly the requested keys. " +
	"Use null for anything the conversation does not establish."

// Config tunes the extraction step.
type Config struct {
	Model       string
	MaxTokens   int64
	Timeout     time.Duration
	MaxAttempts int
}

// Result is the outcome of one lead's extraction.
type Result struct {
	// Fields holds the validated value (or default) for every declared key.
	Fields map[string]any
	// ValidationErrors maps field name to the failure that forced its default.
	ValidationErrors map[string]string
	Usage            anthropic.TokenUsage
}

// Extractor renders prompts and validates model replies for one recipe.
type Extractor struct {
	client   anthropic.Client
	limiter  *rate.Limiter
	cfg      Config
	schema   model.KeySchema
	keys     []string
	template string
	system   []anthropic.SystemBlock
}

// New builds an Extractor for the recipe's llm_config. limiter may be
// nil when the caller imposes no rate limit.
func New(client anthropic.Client, limiter *rate.Limiter, cfg Config, llm recipe.LLMConfig, promptTemplate string) (*Extractor, error) {
	if err := llm.ExpectedLLMKeys.Validate(); err != nil {
		return nil, eris.Wrap(err, "extract: invalid key schema")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Extractor{
		client:   client,
		limiter:  limiter,
		cfg:      cfg,
		schema:   llm.ExpectedLLMKeys,
		keys:     llm.ContextKeys,
		template: promptTemplate,
		system:   anthropic.BuildCachedSystemBlocks(systemText),
	}, nil
}

// Run extracts the declared fields for one lead and merges them into
// leadCtx, overwriting any same-named keys earlier stages wrote. Only a
// run-fatal condition (context canceled before the call) returns an
// error; model failures degrade to per-field defaults.
func (e *Extractor) Run(ctx context.Context, leadCtx *model.Context) (*Result, error) {
	prompt := e.RenderPrompt(leadCtx)

	raw, usage, err := e.invoke(ctx, prompt)
	result := &Result{
		Fields:           make(map[string]any, len(e.schema)),
		ValidationErrors: make(map[string]string),
		Usage:            usage,
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(err, "extract: canceled")
		}
		// Degraded: every declared key gets its default.
		zap.L().Warn("extraction degraded to defaults", zap.Error(err))
		for key, spec := range e.schema {
			result.Fields[key] = spec.Default()
			result.ValidationErrors[key] = "model call failed: " + err.Error()
		}
		e.merge(leadCtx, result)
		return result, nil
	}

	parsed := parseReply(raw)
	for key, spec := range e.schema {
		coerced, cErr := spec.Coerce(parsed[key])
		if cErr != nil {
			result.Fields[key] = spec.Default()
			result.ValidationErrors[key] = eris.Cause(cErr).Error()
			continue
		}
		result.Fields[key] = coerced
	}

	e.merge(leadCtx, result)
	return result, nil
}

// invoke calls the model with per-attempt timeout, rate limiting, and
// the bounded retry policy.
func (e *Extractor) invoke(ctx context.Context, prompt string) (string, anthropic.TokenUsage, error) {
	var usage anthropic.TokenUsage

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = e.cfg.MaxAttempts
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "extract")

	text, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (string, error) {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()

		resp, err := e.client.CreateMessage(callCtx, anthropic.MessageRequest{
			Model:     e.cfg.Model,
			MaxTokens: e.cfg.MaxTokens,
			System:    e.system,
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt},
			},
		})
		if err != nil {
			return "", err
		}
		usage.Add(resp.Usage)
		return resp.Text(), nil
	})
	return text, usage, err
}

// merge writes the validated fields into the lead context. Extraction
// keys win over processor keys of the same name.
func (e *Extractor) merge(leadCtx *model.Context, result *Result) {
	for key := range e.schema {
		leadCtx.Set(key, result.Fields[key])
	}
	leadCtx.Set("llm_validation_errors", len(result.ValidationErrors))
}

// RenderPrompt substitutes the declared context keys into the prompt
// template. Placeholders use {key} syntax; a key the context never
// produced renders as the blank sentinel.
func (e *Extractor) RenderPrompt(leadCtx *model.Context) string {
	pairs := make([]string, 0, 2*len(e.keys))
	for _, key := range e.keys {
		pairs = append(pairs, "{"+key+"}", leadCtx.GetString(key))
	}
	prompt := strings.NewReplacer(pairs...).Replace(e.template)

	// Append the key schema so the model knows the exact shape wanted.
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nReturn a JSON object with exactly these keys:\n")
	for _, key := range sortedKeys(e.schema) {
		spec := e.schema[key]
		b.WriteString("- ")
		b.WriteString(key)
		b.WriteString(" (")
		b.WriteString(spec.Type)
		if len(spec.EnumValues) > 0 {
			b.WriteString(", one of: ")
			b.WriteString(strings.Join(spec.EnumValues, " | "))
		}
		b.WriteString("): ")
		b.WriteString(spec.Description)
		b.WriteString("\n")
	}
	return b.String()
}

// parseReply cleans and parses the raw model reply. Unparseable text
// yields an empty map, so every field degrades to its default.
func parseReply(text string) map[string]any {
	var out map[string]any
	if err := json.Unmarshal([]byte(cleanJSON(text)), &out); err != nil {
		zap.L().Warn("extract: reply is not valid JSON", zap.Error(err))
		return map[string]any{}
	}
	return out
}

// cleanJSON extracts a JSON object from text that may carry markdown
// code fences or prose around it.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func sortedKeys(schema model.KeySchema) []string {
	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	// Deterministic prompt rendering matters for cache hits.
	sort.Strings(keys)
	return keys
}
