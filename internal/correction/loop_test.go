package correction

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscora/docaudit/internal/model"
)

func failingReport(checks ...model.AuditCheck) *model.AuditReport {
	return &model.AuditReport{Checks: checks}
}

func criticalMathFailure() model.AuditCheck {
	return model.AuditCheck{
		Type:     model.CheckMath,
		Field:    model.FieldTotal,
		Passed:   false,
		Severity: model.SeverityCritical,
		Message:  "subtotal 100 + VAT 21 = 121, document states total 120",
		Hint:     "Re-read the TOTALS section. Expected total 121 but found 120.",
		Expected: "121",
		Actual:   "120",
	}
}

func passingReport() *model.AuditReport {
	return &model.AuditReport{Checks: []model.AuditCheck{
		{Type: model.CheckMath, Field: model.FieldTotal, Passed: true, Severity: model.SeverityInfo},
	}}
}

func TestLoopNotNeededWhenFirstAuditPasses(t *testing.T) {
	loop := NewLoop(2)
	called := 0

	result := loop.Run(context.Background(), &model.ExtractionRecord{}, passingReport(),
		func(ctx context.Context, feedback string) (*model.ExtractionRecord, *model.AuditReport, error) {
			called++
			return nil, nil, nil
		})

	assert.Equal(t, model.RetryNotNeeded, result.Outcome.Status)
	assert.Zero(t, result.Outcome.Attempts)
	assert.Zero(t, called)
}

func TestLoopCorrectsOnRetry(t *testing.T) {
	loop := NewLoop(2)
	var feedbacks []string

	result := loop.Run(context.Background(), &model.ExtractionRecord{}, failingReport(criticalMathFailure()),
		func(ctx context.Context, feedback string) (*model.ExtractionRecord, *model.AuditReport, error) {
			feedbacks = append(feedbacks, feedback)
			return &model.ExtractionRecord{}, passingReport(), nil
		})

	assert.Equal(t, model.RetryCorrected, result.Outcome.Status)
	assert.Equal(t, 1, result.Outcome.Attempts)
	assert.Equal(t, []string{model.FieldTotal}, result.Outcome.CorrectedFields)
	require.Len(t, result.Outcome.OriginalFailures, 1)

	require.Len(t, feedbacks, 1)
	assert.Contains(t, feedbacks[0], "Issue 1 (MATH)")
	assert.Contains(t, feedbacks[0], "Re-read the TOTALS section")
	assert.NotContains(t, feedbacks[0], "FINAL attempt")
}

func TestLoopNeverExceedsBudget(t *testing.T) {
	loop := NewLoop(2)
	calls := 0

	result := loop.Run(context.Background(), &model.ExtractionRecord{}, failingReport(criticalMathFailure()),
		func(ctx context.Context, feedback string) (*model.ExtractionRecord, *model.AuditReport, error) {
			calls++
			return &model.ExtractionRecord{}, failingReport(criticalMathFailure()), nil
		})

	assert.Equal(t, 2, calls)
	assert.Equal(t, model.RetryExhausted, result.Outcome.Status)
	assert.Equal(t, 2, result.Outcome.Attempts)
	require.Len(t, result.Outcome.RemainingFailures, 1)
	assert.Empty(t, result.Outcome.CorrectedFields)
}

func TestLoopFinalAttemptMarker(t *testing.T) {
	loop := NewLoop(2)
	var feedbacks []string

	loop.Run(context.Background(), &model.ExtractionRecord{}, failingReport(criticalMathFailure()),
		func(ctx context.Context, feedback string) (*model.ExtractionRecord, *model.AuditReport, error) {
			feedbacks = append(feedbacks, feedback)
			return &model.ExtractionRecord{}, failingReport(criticalMathFailure()), nil
		})

	require.Len(t, feedbacks, 2)
	assert.NotContains(t, feedbacks[0], "FINAL attempt")
	assert.Contains(t, feedbacks[1], "FINAL attempt")
}

func TestLoopZeroBudgetSkipsCorrection(t *testing.T) {
	loop := NewLoop(0)
	called := 0

	result := loop.Run(context.Background(), &model.ExtractionRecord{}, failingReport(criticalMathFailure()),
		func(ctx context.Context, feedback string) (*model.ExtractionRecord, *model.AuditReport, error) {
			called++
			return nil, nil, nil
		})

	assert.Zero(t, called)
	assert.Equal(t, model.RetryExhausted, result.Outcome.Status)
	assert.Zero(t, result.Outcome.Attempts)
}

func TestLoopProviderFailureStopsEarly(t *testing.T) {
	loop := NewLoop(3)
	calls := 0

	result := loop.Run(context.Background(), &model.ExtractionRecord{}, failingReport(criticalMathFailure()),
		func(ctx context.Context, feedback string) (*model.ExtractionRecord, *model.AuditReport, error) {
			calls++
			return nil, nil, eris.New("provider down")
		})

	assert.Equal(t, 1, calls)
	assert.Equal(t, model.RetryExhausted, result.Outcome.Status)
	assert.Zero(t, result.Outcome.Attempts)
	assert.Contains(t, result.Note, "provider unavailable")
	require.NotNil(t, result.Report)
}

func TestLoopPartialCorrectionTracksFields(t *testing.T) {
	ibanFailure := model.AuditCheck{
		Type: model.CheckChecksumIBAN, Field: model.FieldIBAN,
		Passed: false, Severity: model.SeverityCritical,
		Hint: "Re-read the BANK DETAILS section.",
	}

	loop := NewLoop(1)
	result := loop.Run(context.Background(), &model.ExtractionRecord{},
		failingReport(criticalMathFailure(), ibanFailure),
		func(ctx context.Context, feedback string) (*model.ExtractionRecord, *model.AuditReport, error) {
			// Math fixed, IBAN still broken.
			return &model.ExtractionRecord{}, failingReport(ibanFailure), nil
		})

	assert.Equal(t, model.RetryExhausted, result.Outcome.Status)
	assert.Equal(t, []string{model.FieldTotal}, result.Outcome.CorrectedFields)
	require.Len(t, result.Outcome.RemainingFailures, 1)
	assert.Equal(t, model.CheckChecksumIBAN, result.Outcome.RemainingFailures[0].Type)
}

func TestBuildFeedbackEmptyForNoFailures(t *testing.T) {
	assert.Empty(t, BuildFeedback(nil, false))
}

func TestBuildFeedbackOGMTemplate(t *testing.T) {
	failure := model.AuditCheck{
		Type: model.CheckChecksumOGM, Field: model.FieldPaymentReference,
		Passed: false, Severity: model.SeverityCritical,
		Message: "check digit mismatch",
		Hint:    "Check digits should be 39 but the document reads 99. Watch for OCR character substitutions: 0↔O, 1↔I, 8↔B, 5↔S, 6↔G.",
	}

	feedback := BuildFeedback([]model.AuditCheck{failure}, false)
	assert.Contains(t, feedback, "Issue 1 (CHECKSUM_OGM)")
	assert.Contains(t, feedback, "0↔O, 1↔I, 8↔B, 5↔S, 6↔G")
	assert.Contains(t, feedback, "PAYMENT section")
}
