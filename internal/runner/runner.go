// Package runner orchestrates one batch run: ingest leads, join
// transcripts, execute the processor chain and the extraction step per
// lead, and assemble the run artifacts. A single lead degrades, the
// batch never aborts; only ingestion failure or cancellation is fatal.
package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lendsight/engage-cli/internal/classifier"
	"github.com/lendsight/engage-cli/internal/config"
	"github.com/lendsight/engage-cli/internal/extract"
	"github.com/lendsight/engage-cli/internal/model"
	"github.com/lendsight/engage-cli/internal/output"
	"github.com/lendsight/engage-cli/internal/processor"
	"github.com/lendsight/engage-cli/internal/recipe"
	"github.com/lendsight/engage-cli/internal/source"
	"github.com/lendsight/engage-cli/internal/store"
	"github.com/lendsight/engage-cli/pkg/anthropic"
)

// Report is the in-memory outcome of a finished run.
type Report struct {
	RunID       string
	OutputDir   string
	CSVPath     string
	SummaryPath string
	Summary     *output.Summary
}

// Runner executes a recipe end to end.
type Runner struct {
	cfg    *config.Config
	rec    *recipe.Recipe
	client anthropic.Client
	store  store.Store
}

// New wires a runner. client may be nil when the recipe declares no
// extraction keys; store may be nil to skip run history.
func New(cfg *config.Config, rec *recipe.Recipe, client anthropic.Client, st store.Store) *Runner {
	return &Runner{cfg: cfg, rec: rec, client: client, store: st}
}

// Run executes the batch. Output rows come back in input order; a lead
// whose processing was canceled mid-run is simply absent from the tail.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	leads, err := r.loadLeads(ctx)
	if err != nil {
		return nil, err
	}

	var transcripts *source.TranscriptIndex
	if dir := r.rec.DataInput.TranscriptsDir; dir != "" {
		transcripts, err = source.LoadTranscripts(resolvePath(r.rec.Dir, dir))
		if err != nil {
			return nil, err
		}
		zap.L().Info("transcripts indexed",
			zap.Int("files", transcripts.Size()),
			zap.Int("leads", len(leads)),
		)
	}

	chain, err := processor.NewChain(r.rec.Processors)
	if err != nil {
		return nil, err
	}

	extractor, err := r.buildExtractor()
	if err != nil {
		return nil, err
	}

	outDir := filepath.Join(r.cfg.Output.Dir, r.rec.RecipeName+"_"+time.Now().UTC().Format("20060102_150405"))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "runner: create output dir")
	}

	runID := r.beginRun(ctx)

	summary := output.NewSummary(r.rec.RecipeName, len(leads))
	records := make([]*output.Record, len(leads))

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	limit := r.cfg.Batch.MaxConcurrentLeads
	if limit <= 0 {
		limit = 5
	}
	g.SetLimit(limit)

	for i, lead := range leads {
		g.Go(func() error {
			leadCtx, valErrs, usage, err := r.processLead(gCtx, lead, transcripts, chain, extractor)
			if err != nil {
				// Only cancellation reaches here; leave the slot empty.
				mu.Lock()
				summary.SkippedLeads++
				mu.Unlock()
				return err
			}

			rec := output.Assemble(leadCtx, r.rec.OutputColumns)

			mu.Lock()
			records[i] = &rec
			summary.Observe(leadCtx, valErrs)
			summary.AddUsage(usage.InputTokens, usage.OutputTokens)
			mu.Unlock()
			return nil
		})
	}

	runErr := g.Wait()
	summary.FinishedAt = time.Now().UTC()

	// Write whatever finished, even on cancellation. Input order is
	// preserved because records is indexed by input position.
	kept := make([]output.Record, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			kept = append(kept, *rec)
		}
	}

	report := &Report{
		RunID:       runID,
		OutputDir:   outDir,
		CSVPath:     filepath.Join(outDir, "results.csv"),
		SummaryPath: filepath.Join(outDir, "summary.txt"),
		Summary:     summary,
	}

	if err := output.WriteCSV(report.CSVPath, r.rec.OutputColumns, kept); err != nil {
		r.finishRun(runID, model.RunStatusFailed, report, err)
		return nil, err
	}
	if err := summary.Write(report.SummaryPath); err != nil {
		r.finishRun(runID, model.RunStatusFailed, report, err)
		return nil, err
	}

	if runErr != nil {
		r.finishRun(runID, model.RunStatusFailed, report, runErr)
		return report, eris.Wrap(runErr, "runner: run interrupted")
	}

	r.finishRun(runID, model.RunStatusComplete, report, nil)
	zap.L().Info("run complete",
		zap.String("recipe", r.rec.RecipeName),
		zap.Int("leads", summary.ProcessedLeads),
		zap.String("csv", report.CSVPath),
	)
	return report, nil
}

// processLead runs the full per-lead stage sequence. Only cancellation
// is returned as an error; stage failures degrade inside the context.
func (r *Runner) processLead(
	ctx context.Context,
	lead model.Lead,
	transcripts *source.TranscriptIndex,
	chain *processor.Chain,
	extractor *extract.Extractor,
) (*model.Context, []string, anthropic.TokenUsage, error) {
	var usage anthropic.TokenUsage

	leadCtx := seedContext(lead)

	var transcript model.Transcript
	if transcripts != nil {
		transcript = transcripts.Find(lead)
	}
	if len(transcript) == 0 {
		leadCtx.Set("user_response", string(classifier.ResponseNoConversation))
	}

	if err := chain.Run(ctx, leadCtx, transcript); err != nil {
		return nil, nil, usage, err
	}

	var valErrs []string
	if extractor != nil {
		result, err := extractor.Run(ctx, leadCtx)
		if err != nil {
			return nil, nil, usage, err
		}
		usage.Add(result.Usage)
		for field, msg := range result.ValidationErrors {
			valErrs = append(valErrs, field+": "+msg)
		}
	}

	return leadCtx, valErrs, usage, nil
}

// seedContext loads the lead's own fields as the first context keys, so
// processors and prompts can reference them like any computed key.
func seedContext(lead model.Lead) *model.Context {
	leadCtx := model.NewContext()
	leadCtx.Set("lead_id", lead.ID)
	leadCtx.Set("name", lead.Name)
	leadCtx.Set("phone", lead.Phone)
	leadCtx.Set("email", lead.Email)
	leadCtx.Set("product", lead.Product)
	leadCtx.Set("amount", lead.Amount)
	leadCtx.Set("stage", lead.Stage)
	leadCtx.Set("assigned_to", lead.AssignedTo)
	return leadCtx
}

// loadLeads resolves the recipe's data_input to a source adapter.
func (r *Runner) loadLeads(ctx context.Context) ([]model.Lead, error) {
	in := r.rec.DataInput
	switch in.Type {
	case "csv":
		return source.ReadLeadsCSV(resolvePath(r.rec.Dir, in.Path))
	case "xlsx":
		return source.ReadLeadsXLSX(resolvePath(r.rec.Dir, in.Path))
	case "query":
		src, closeFn, err := source.NewQuerySource(ctx, r.cfg.Warehouse.DatabaseURL, in.Query)
		if err != nil {
			return nil, err
		}
		defer closeFn()
		return src.Leads(ctx)
	case "ftp":
		return source.FetchLeadsFTP(ctx, source.FTPConfig{
			Addr:     r.cfg.FTP.Addr,
			User:     r.cfg.FTP.User,
			Password: r.cfg.FTP.Password,
			Timeout:  time.Duration(r.cfg.FTP.TimeoutSecs) * time.Second,
		}, in.Path)
	default:
		return nil, eris.Errorf("runner: unknown data_input.type %q", in.Type)
	}
}

// buildExtractor constructs the extraction step, or nil when the recipe
// declares no expected keys.
func (r *Runner) buildExtractor() (*extract.Extractor, error) {
	if len(r.rec.LLM.ExpectedLLMKeys) == 0 {
		return nil, nil
	}
	if r.client == nil {
		return nil, eris.New("runner: recipe declares llm keys but no model client is configured")
	}

	template, err := r.rec.PromptTemplate()
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if rps := r.cfg.Anthropic.RequestsPerSec; rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	return extract.New(r.client, limiter, extract.Config{
		Model:     r.cfg.Anthropic.Model,
		MaxTokens: int64(r.cfg.Anthropic.MaxTokens),
		Timeout:   time.Duration(r.cfg.Anthropic.TimeoutSecs) * time.Second,
	}, r.rec.LLM, template)
}

func (r *Runner) beginRun(ctx context.Context) string {
	if r.store == nil {
		return ""
	}
	run, err := r.store.CreateRun(ctx, r.rec.RecipeName)
	if err != nil {
		zap.L().Warn("run history unavailable", zap.Error(err))
		return ""
	}
	if err := r.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		zap.L().Warn("run history update failed", zap.Error(err))
	}
	return run.ID
}

// finishRun persists the final run record. History failures are logged,
// never fatal; the artifacts on disk are the source of truth.
func (r *Runner) finishRun(runID string, status model.RunStatus, report *Report, runErr error) {
	if r.store == nil || runID == "" {
		return
	}

	responses := make(map[string]int, len(report.Summary.ResponseCounts))
	for bucket, n := range report.Summary.ResponseCounts {
		responses[string(bucket)] = n
	}

	result := &model.RunResult{
		TotalLeads:     report.Summary.TotalLeads,
		ProcessedLeads: report.Summary.ProcessedLeads,
		SkippedLeads:   report.Summary.SkippedLeads,
		ResponseCounts: responses,
		CSVPath:        report.CSVPath,
		SummaryPath:    report.SummaryPath,
		Summary:        report.Summary.Render(),
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}

	// The run context may already be canceled; history writes get their
	// own short deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.CompleteRun(ctx, runID, status, result); err != nil {
		zap.L().Warn("run history write failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
