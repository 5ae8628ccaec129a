package domain

import "time"

// Stage names a pipeline stage for failure reporting.
type Stage string

const (
	StageCollection    Stage = "collection"
	StageExtraction    Stage = "extraction"
	StageSummarization Stage = "summarization"
	StagePublication   Stage = "publication"
)

// FailureRecord is a flat, stage-tagged failure log entry.
type FailureRecord struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Stage Stage  `json:"stage"`
	Error string `json:"error"`
}

// StageCounts aggregates per-stage outcomes.
type StageCounts struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped,omitempty"`
	Duplicate int `json:"duplicate,omitempty"`
}

// CollectionCounts adds the collector-level drop accounting.
type CollectionCounts struct {
	Collected     int `json:"collected"`
	Blocked       int `json:"blocked"`
	Stale         int `json:"stale"`
	Duplicates    int `json:"duplicates"`
	SourcesFailed int `json:"sources_failed"`
	FilteredOut   int `json:"filtered_out"`
	Forwarded     int `json:"forwarded"`
}

// WorkflowResult is built once at the end of a run.
type WorkflowResult struct {
	RunID          string                    `json:"run_id"`
	DryRun         bool                      `json:"dry_run"`
	StartedAt      time.Time                 `json:"started_at"`
	FinishedAt     time.Time                 `json:"finished_at"`
	ElapsedSeconds float64                   `json:"elapsed_seconds"`
	Collection     CollectionCounts          `json:"collection"`
	Extraction     StageCounts               `json:"extraction"`
	Summarization  StageCounts               `json:"summarization"`
	Publication    StageCounts               `json:"publication"`
	Failures       map[Stage][]FailureRecord `json:"failures"`
	Published      []PublishedArticle        `json:"published"`
	Warnings       []string                  `json:"warnings,omitempty"`
}

// Elapsed returns the run duration.
func (r WorkflowResult) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailureCount totals failure records across stages.
func (r WorkflowResult) FailureCount() int {
	total := 0
	for _, list := range r.Failures {
		total += len(list)
	}
	return total
}
