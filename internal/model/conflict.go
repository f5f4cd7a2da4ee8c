package model

// Severity grades a finding from the resolver or the auditor.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// FieldConflict records a disagreement between the two extraction sources
// on a single field, after normalization. ChosenValue is empty when the
// field's policy forced it to null (REQUIRE_MATCH).
type FieldConflict struct {
	Field        string   `json:"field"`
	SourceAValue string   `json:"source_a_value"`
	SourceBValue string   `json:"source_b_value"`
	ChosenValue  string   `json:"chosen_value,omitempty"`
	ChosenSource Source   `json:"chosen_source,omitempty"`
	Severity     Severity `json:"severity"`
}

// ConflictReport is the ordered set of conflicts from one resolution round.
// An empty report means full agreement. Reports are replaced, never mutated.
type ConflictReport struct {
	Conflicts []FieldConflict `json:"conflicts,omitempty"`

	// FallbackNote is set when one source produced no record and the
	// resolver degraded to single-source mode.
	FallbackNote string `json:"fallback_note,omitempty"`
}

// HadConflicts reports whether any field disagreed.
func (r *ConflictReport) HadConflicts() bool {
	return r != nil && len(r.Conflicts) > 0
}

// CriticalConflicts returns the conflicts graded critical.
func (r *ConflictReport) CriticalConflicts() []FieldConflict {
	if r == nil {
		return nil
	}
	var out []FieldConflict
	for _, c := range r.Conflicts {
		if c.Severity == SeverityCritical {
			out = append(out, c)
		}
	}
	return out
}
