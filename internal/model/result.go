package model

import "time"

// RejectStage names the pipeline stage where an early rejection occurred.
type RejectStage string

const (
	StageClassification RejectStage = "classification"
	StageExtraction     RejectStage = "extraction"
)

// ResultStatus distinguishes a run that reached judgment from one that was
// rejected before judgment could run.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultRejected  ResultStatus = "rejected"
)

// ProcessingResult is the coordinator's output for one document.
//
// A completed result may still carry a reject judgment: the pipeline ran to
// the end but the document was judged unsafe. A rejected result means the
// pipeline never reached judgment (classification or extraction failed).
type ProcessingResult struct {
	RunID  string       `json:"run_id"`
	Status ResultStatus `json:"status"`

	Classification Classification    `json:"classification"`
	Record         *ExtractionRecord `json:"record,omitempty"`
	Conflicts      *ConflictReport   `json:"conflicts,omitempty"`
	Audit          *AuditReport      `json:"audit,omitempty"`
	Retry          *RetryOutcome     `json:"retry,omitempty"`
	Judgment       *JudgmentDecision `json:"judgment,omitempty"`

	// Early-rejection fields, set only when Status is rejected.
	RejectStage  RejectStage    `json:"reject_stage,omitempty"`
	RejectReason string         `json:"reject_reason,omitempty"`
	Details      map[string]any `json:"details,omitempty"`

	// Notes records non-fatal degradations (single-source fallback,
	// skipped self-correction, unavailable registry).
	Notes []string `json:"notes,omitempty"`

	Profile    string    `json:"profile,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Outcome returns the effective verdict for stats purposes: the judgment
// outcome for completed runs, reject for early-rejected runs.
func (r *ProcessingResult) Outcome() Outcome {
	if r.Status == ResultRejected || r.Judgment == nil {
		return OutcomeReject
	}
	return r.Judgment.Outcome
}

// EarlyRejected reports whether the pipeline stopped before judgment.
func (r *ProcessingResult) EarlyRejected() bool {
	return r.Status == ResultRejected
}

// ProcessingStats aggregates a batch of results. Always computed on demand
// from the result list; never persisted by the pipeline itself.
type ProcessingStats struct {
	TotalProcessed int `json:"total_processed"`
	AutoApproved   int `json:"auto_approved"`
	NeedsReview    int `json:"needs_review"`
	Rejected       int `json:"rejected"`
	EarlyRejected  int `json:"early_rejected"`

	AutoApproveRate float64 `json:"auto_approve_rate"`
	AvgConfidence   float64 `json:"avg_confidence"`

	// MeetsSilenceGoal is true when at least 95% of documents were
	// auto-approved without human attention.
	MeetsSilenceGoal bool `json:"meets_silence_goal"`
}
