// Package judgment turns the pipeline's evidence — confidence, conflicts,
// audit findings, retry outcome — into one of three verdicts through a fixed
// deterministic rule order, with an optional autonomy-gated probabilistic
// judge for ambiguous cases.
package judgment

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/fiscora/docaudit/internal/model"
)

// Thresholds are the confidence cut-offs for one named judgment profile.
type Thresholds struct {
	Approve float64
	Review  float64
}

// Profile returns the thresholds for a named profile: default (0.80/0.50),
// strict (0.90/0.60), lenient (0.70/0.40).
func Profile(name string) (Thresholds, error) {
	switch name {
	case "default", "":
		return Thresholds{Approve: 0.80, Review: 0.50}, nil
	case "strict":
		return Thresholds{Approve: 0.90, Review: 0.60}, nil
	case "lenient":
		return Thresholds{Approve: 0.70, Review: 0.40}, nil
	default:
		return Thresholds{}, eris.Errorf("judgment: unknown profile %q", name)
	}
}

// Input is the evidence the engine decides on. All fields are read-only.
type Input struct {
	DocType    model.DocumentType
	Record     *model.ExtractionRecord
	Conflicts  *model.ConflictReport
	Audit      *model.AuditReport
	Retry      *model.RetryOutcome
	Confidence float64
}

// Engine applies the deterministic decision order.
type Engine struct {
	thresholds Thresholds
	warningCap int
}

// NewEngine creates an engine with the given thresholds and warning cap.
func NewEngine(thresholds Thresholds, warningCap int) *Engine {
	return &Engine{thresholds: thresholds, warningCap: warningCap}
}

// Decide applies the rule order; the first matching rule wins. Pure function
// of the input, no side effects.
func (e *Engine) Decide(in Input) *model.JudgmentDecision {
	decision := &model.JudgmentDecision{
		Confidence:              in.Confidence,
		AllCriticalChecksPassed: in.Audit.Passed(),
		HasModelConsensus:       hasConsensus(in.Conflicts),
	}
	if in.Retry != nil {
		decision.RetryAttempts = in.Retry.Attempts
		decision.CorrectedFields = in.Retry.CorrectedFields
	}

	// Rule 1: essential fields missing for the document type.
	if missing := missingEssentials(in.DocType, in.Record); len(missing) > 0 {
		decision.Outcome = model.OutcomeReject
		decision.Reasoning = fmt.Sprintf("essential fields missing for %s: %s", in.DocType, strings.Join(missing, ", "))
		for _, f := range missing {
			decision.Issues = append(decision.Issues, fmt.Sprintf("Required field %s could not be extracted", f))
		}
		return decision
	}

	// Rule 2: unclassifiable document.
	if in.DocType == model.DocTypeUnknown || in.DocType == "" {
		decision.Outcome = model.OutcomeReject
		decision.Reasoning = "document type could not be determined"
		decision.Issues = append(decision.Issues, "Document type is unknown; manual classification required")
		return decision
	}

	// Rule 3: critical audit failures survived the correction loop.
	if critical := in.Audit.CriticalFailures(); len(critical) > 0 {
		decision.Outcome = model.OutcomeReject
		decision.Reasoning = fmt.Sprintf("%d critical compliance failure(s) remain after correction", len(critical))
		for _, c := range critical {
			decision.Issues = append(decision.Issues, fmt.Sprintf("%s: %s", c.Type, c.Message))
		}
		return decision
	}

	// Rule 4: confidence below the review floor.
	if in.Confidence < e.thresholds.Review {
		decision.Outcome = model.OutcomeReject
		decision.Reasoning = fmt.Sprintf("extraction confidence %.2f below reject threshold %.2f", in.Confidence, e.thresholds.Review)
		decision.Issues = append(decision.Issues, "Extraction confidence too low to trust any value")
		return decision
	}

	// Rule 5: unresolved critical conflicts between the sources.
	if critical := in.Conflicts.CriticalConflicts(); len(critical) > 0 {
		decision.Outcome = model.OutcomeNeedsReview
		decision.Reasoning = fmt.Sprintf("%d critical field disagreement(s) between extraction sources", len(critical))
		for _, c := range critical {
			decision.Issues = append(decision.Issues, fmt.Sprintf("Sources disagree on %s: %q vs %q", c.Field, c.SourceAValue, c.SourceBValue))
		}
		return decision
	}

	// Rule 6: confidence below the approve floor.
	if in.Confidence < e.thresholds.Approve {
		decision.Outcome = model.OutcomeNeedsReview
		decision.Reasoning = fmt.Sprintf("extraction confidence %.2f below approve threshold %.2f", in.Confidence, e.thresholds.Approve)
		decision.Issues = append(decision.Issues, "Confidence too low for automatic approval")
		return decision
	}

	// Rule 7: too many warnings to stay silent.
	if warnings := in.Audit.WarningCount(); warnings > e.warningCap {
		decision.Outcome = model.OutcomeNeedsReview
		decision.Reasoning = fmt.Sprintf("%d warning(s) exceed the cap of %d", warnings, e.warningCap)
		for _, c := range in.Audit.Failures() {
			if c.Severity == model.SeverityWarning {
				decision.Issues = append(decision.Issues, fmt.Sprintf("%s: %s", c.Type, c.Message))
			}
		}
		return decision
	}

	// Rule 8: nothing objectionable.
	decision.Outcome = model.OutcomeAutoApprove
	decision.Reasoning = "all checks passed with sufficient confidence"
	return decision
}

func hasConsensus(report *model.ConflictReport) bool {
	return report != nil && !report.HadConflicts() && report.FallbackNote == ""
}

func missingEssentials(docType model.DocumentType, record *model.ExtractionRecord) []string {
	var missing []string
	for _, field := range model.EssentialFields(docType) {
		if !record.HasField(field) {
			missing = append(missing, field)
		}
	}
	return missing
}
