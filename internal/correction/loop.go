package correction

import (
	"context"

	"go.uber.org/zap"

	"github.com/fiscora/docaudit/internal/model"
)

// AttemptFunc performs one corrective re-extraction round: extract with the
// feedback instruction, re-resolve if in ensemble mode, and re-audit. The
// coordinator supplies it so the loop stays free of provider and resolver
// wiring.
type AttemptFunc func(ctx context.Context, feedback string) (*model.ExtractionRecord, *model.AuditReport, error)

// Loop is the bounded self-correction state machine.
type Loop struct {
	maxRetries int
}

// NewLoop creates a loop with the given retry budget. A budget of zero
// disables self-correction entirely.
func NewLoop(maxRetries int) *Loop {
	return &Loop{maxRetries: maxRetries}
}

// Result is the loop's output: the best record and report seen, plus the
// outcome variant. Note is set when the loop degraded (provider unavailable).
type Result struct {
	Record  *model.ExtractionRecord
	Report  *model.AuditReport
	Outcome model.RetryOutcome
	Note    string
}

// Run drives the correction loop. Retries are strictly sequential: each
// attempt's feedback depends on the previous attempt's audit outcome. The
// loop never calls attempt more than maxRetries times.
func (l *Loop) Run(ctx context.Context, record *model.ExtractionRecord, report *model.AuditReport, attempt AttemptFunc) Result {
	if report.Passed() {
		return Result{
			Record:  record,
			Report:  report,
			Outcome: model.RetryOutcome{Status: model.RetryNotNeeded},
		}
	}

	originalFailures := report.ActionableFailures()
	current := record
	currentReport := report

	for attemptNo := 0; attemptNo < l.maxRetries; attemptNo++ {
		final := attemptNo == l.maxRetries-1
		feedback := BuildFeedback(currentReport.ActionableFailures(), final)

		zap.L().Info("correction attempt",
			zap.Int("attempt", attemptNo+1),
			zap.Int("max_retries", l.maxRetries),
			zap.Int("open_failures", len(currentReport.ActionableFailures())),
		)

		newRecord, newReport, err := attempt(ctx, feedback)
		if err != nil {
			// Provider unavailable: stop correcting, keep the best state.
			zap.L().Warn("correction attempt failed, stopping loop", zap.Error(err))
			return Result{
				Record: current,
				Report: currentReport,
				Outcome: model.RetryOutcome{
					Status:            model.RetryExhausted,
					Attempts:          attemptNo,
					OriginalFailures:  originalFailures,
					RemainingFailures: currentReport.Failures(),
				},
				Note: "self-correction stopped early: extraction provider unavailable",
			}
		}

		current = newRecord
		currentReport = newReport

		if newReport.Passed() {
			return Result{
				Record: current,
				Report: currentReport,
				Outcome: model.RetryOutcome{
					Status:           model.RetryCorrected,
					Attempts:         attemptNo + 1,
					CorrectedFields:  correctedFields(originalFailures, newReport),
					OriginalFailures: originalFailures,
				},
			}
		}
	}

	return Result{
		Record: current,
		Report: currentReport,
		Outcome: model.RetryOutcome{
			Status:            model.RetryExhausted,
			Attempts:          l.maxRetries,
			CorrectedFields:   correctedFields(originalFailures, currentReport),
			OriginalFailures:  originalFailures,
			RemainingFailures: currentReport.Failures(),
		},
	}
}

// correctedFields lists fields whose originally failing check now passes.
func correctedFields(original []model.AuditCheck, latest *model.AuditReport) []string {
	stillFailing := make(map[string]bool)
	for _, c := range latest.Failures() {
		stillFailing[string(c.Type)+"/"+c.Field] = true
	}

	var fields []string
	seen := make(map[string]bool)
	for _, c := range original {
		key := string(c.Type) + "/" + c.Field
		if !stillFailing[key] && !seen[c.Field] {
			seen[c.Field] = true
			fields = append(fields, c.Field)
		}
	}
	return fields
}
