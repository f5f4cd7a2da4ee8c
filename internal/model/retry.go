package model

// RetryStatus tags which variant of the correction-loop outcome holds.
type RetryStatus string

const (
	// RetryNotNeeded means the first audit passed and no retry was attempted.
	RetryNotNeeded RetryStatus = "not_needed"
	// RetryCorrected means a retry produced a record whose audit has no
	// remaining critical failures.
	RetryCorrected RetryStatus = "corrected"
	// RetryExhausted means the retry budget ran out with failures remaining.
	RetryExhausted RetryStatus = "still_failing"
)

// RetryOutcome is the correction loop's result. Exactly one status holds per
// processing run; Attempts never exceeds the configured retry limit.
type RetryOutcome struct {
	Status            RetryStatus  `json:"status"`
	Attempts          int          `json:"attempts"`
	CorrectedFields   []string     `json:"corrected_fields,omitempty"`
	OriginalFailures  []AuditCheck `json:"original_failures,omitempty"`
	RemainingFailures []AuditCheck `json:"remaining_failures,omitempty"`
}
