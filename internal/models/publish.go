package models

import "time"

// PublishResult is the outcome of one publishing attempt on one platform or channel
type PublishResult struct {
	Success  bool   `json:"success"`
	Platform string `json:"platform"`
	PostID   string `json:"post_id,omitempty"`
	PostURL  string `json:"post_url,omitempty"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

// RunStatus is the terminal state of a briefing run
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
	RunStatusSkipped RunStatus = "skipped"
)

// ChannelSummary counts per-recipient outcomes for a fan-out channel
type ChannelSummary struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Batches int `json:"batches"`
}

// PublishingRunResult aggregates one full briefing cycle
type PublishingRunResult struct {
	RunID       string          `json:"run_id" gorm:"primaryKey"`
	Trigger     string          `json:"trigger"` // "cron", "manual", "api", "mcp"
	Status      RunStatus       `json:"status"`
	Success     bool            `json:"success"`
	StartedAt   time.Time       `json:"started_at" badgerhold:"index"`
	FinishedAt  time.Time       `json:"finished_at"`
	NewsCount   int             `json:"news_count"`
	Results     []PublishResult `json:"results" gorm:"serializer:json"`
	Errors      []string        `json:"errors" gorm:"serializer:json"`
	Emails      ChannelSummary  `json:"emails" gorm:"serializer:json"`
	AlertsSent  int             `json:"alerts_sent"`
	LedgerWrite int             `json:"ledger_writes"`
}

// Duration returns the run's wall time
func (r PublishingRunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PlatformStats counts outcomes for one platform across runs
type PlatformStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RunStats summarises the in-memory run history
type RunStats struct {
	TotalRuns      int                      `json:"total_runs"`
	SuccessfulRuns int                      `json:"successful_runs"`
	FailedRuns     int                      `json:"failed_runs"`
	SkippedRuns    int                      `json:"skipped_runs"`
	SuccessRate    float64                  `json:"success_rate"`
	Platforms      map[string]PlatformStats `json:"platforms"`
	LastRunAt      *time.Time               `json:"last_run_at,omitempty"`
	LastError      string                   `json:"last_error,omitempty"`
}
