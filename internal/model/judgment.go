package model

// Outcome is the terminal verdict for a processed document.
type Outcome string

const (
	OutcomeAutoApprove Outcome = "auto_approve"
	OutcomeNeedsReview Outcome = "needs_review"
	OutcomeReject      Outcome = "reject"
)

// JudgmentDecision is the judgment engine's verdict. Created once, never
// mutated. Issues carries the human-readable problem list shown to a
// reviewer; it is empty for auto-approvals, which are silent by design.
type JudgmentDecision struct {
	Outcome                 Outcome  `json:"outcome"`
	Confidence              float64  `json:"confidence"`
	Reasoning               string   `json:"reasoning"`
	Issues                  []string `json:"issues,omitempty"`
	AllCriticalChecksPassed bool     `json:"all_critical_checks_passed"`
	HasModelConsensus       bool     `json:"has_model_consensus"`
	RetryAttempts           int      `json:"retry_attempts"`
	CorrectedFields         []string `json:"corrected_fields,omitempty"`
}
