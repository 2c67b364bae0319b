package model

import "time"

// RunStatus tracks a batch run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunResult is the persisted outcome of a finished run.
type RunResult struct {
	TotalLeads     int            `json:"total_leads"`
	ProcessedLeads int            `json:"processed_leads"`
	SkippedLeads   int            `json:"skipped_leads"`
	ResponseCounts map[string]int `json:"response_counts,omitempty"`
	CSVPath        string         `json:"csv_path,omitempty"`
	SummaryPath    string         `json:"summary_path,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Run is one batch execution of a recipe.
type Run struct {
	ID        string     `json:"id"`
	Recipe    string     `json:"recipe"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
