package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lendsight/engage-cli/internal/classifier"
	"github.com/lendsight/engage-cli/internal/model"
)

// Summary accumulates run-level counters while leads are processed and
// renders the plain-text report written next to the CSV.
type Summary struct {
	RecipeName string
	StartedAt  time.Time
	FinishedAt time.Time

	TotalLeads     int
	ProcessedLeads int
	SkippedLeads   int

	ResponseCounts   map[classifier.Response]int
	ValidationErrors map[string]int
	ProcessorErrors  int

	InputTokens  int64
	OutputTokens int64
}

// NewSummary starts a summary for one run.
func NewSummary(recipeName string, totalLeads int) *Summary {
	return &Summary{
		RecipeName:       recipeName,
		StartedAt:        time.Now().UTC(),
		TotalLeads:       totalLeads,
		ResponseCounts:   make(map[classifier.Response]int),
		ValidationErrors: make(map[string]int),
	}
}

// Observe folds one finished lead context into the counters. Not safe
// for concurrent use; the runner serializes calls.
func (s *Summary) Observe(leadCtx *model.Context, validationErrs []string) {
	s.ProcessedLeads++

	if v := leadCtx.GetString("user_response"); v != "" {
		s.ResponseCounts[classifier.Response(v)]++
	}
	for _, msg := range validationErrs {
		field, _, found := strings.Cut(msg, ":")
		if !found {
			field = msg
		}
		s.ValidationErrors[strings.TrimSpace(field)]++
	}
	for _, key := range leadCtx.Keys() {
		if strings.HasSuffix(key, "_error") {
			s.ProcessorErrors++
		}
	}
}

// AddUsage accumulates model token spend.
func (s *Summary) AddUsage(input, output int64) {
	s.InputTokens += input
	s.OutputTokens += output
}

// Render produces the human-readable report.
func (s *Summary) Render() string {
	finished := s.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run summary: %s\n", s.RecipeName)
	fmt.Fprintf(&b, "Started:  %s\n", s.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Finished: %s\n", finished.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration: %s\n\n", finished.Sub(s.StartedAt).Round(time.Second))

	fmt.Fprintf(&b, "Leads: %d total, %d processed, %d skipped\n\n", s.TotalLeads, s.ProcessedLeads, s.SkippedLeads)

	b.WriteString("Responses:\n")
	for _, bucket := range classifier.Buckets() {
		fmt.Fprintf(&b, "  %-22s %d\n", string(bucket), s.ResponseCounts[bucket])
	}

	if len(s.ValidationErrors) > 0 {
		b.WriteString("\nValidation errors by field:\n")
		fields := make([]string, 0, len(s.ValidationErrors))
		for f := range s.ValidationErrors {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(&b, "  %-22s %d\n", f, s.ValidationErrors[f])
		}
	}

	if s.ProcessorErrors > 0 {
		fmt.Fprintf(&b, "\nProcessor failures: %d\n", s.ProcessorErrors)
	}

	if s.InputTokens > 0 || s.OutputTokens > 0 {
		fmt.Fprintf(&b, "\nTokens: %d in, %d out\n", s.InputTokens, s.OutputTokens)
	}

	return b.String()
}

// Write renders the summary to path.
func (s *Summary) Write(path string) error {
	if err := os.WriteFile(path, []byte(s.Render()), 0o644); err != nil {
		return eris.Wrap(err, "output: write summary")
	}
	return nil
}
