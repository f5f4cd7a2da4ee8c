package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscora/docaudit/internal/audit"
	"github.com/fiscora/docaudit/internal/config"
	"github.com/fiscora/docaudit/internal/consensus"
	"github.com/fiscora/docaudit/internal/extract"
	"github.com/fiscora/docaudit/internal/model"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// invoiceText carries enough keywords to classify as an invoice without a
// model call.
const invoiceText = "FACTUUR 2026-001\nvervaldatum: 2026-02-14\nbetalingsreferentie: +++012/3456/78939+++"

const expenseText = "ONKOSTENNOTA\ndeclaratie januari\nterugbetaling gevraagd"

// fakeProvider returns a sequence of canned records or errors, one per call.
type fakeProvider struct {
	source  model.Source
	records []*model.ExtractionRecord
	errs    []error
	calls   int

	feedbacks []string
}

func (f *fakeProvider) Extract(_ context.Context, _ string, _ model.DocumentType, feedback string) (*model.ExtractionRecord, error) {
	idx := f.calls
	f.calls++
	f.feedbacks = append(f.feedbacks, feedback)

	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	recIdx := idx
	if recIdx >= len(f.records) {
		recIdx = len(f.records) - 1
	}
	record := *f.records[recIdx]
	record.Source = f.source
	return &record, nil
}

func (f *fakeProvider) Source() model.Source { return f.source }

func cleanRecord(confidence float64) *model.ExtractionRecord {
	issue := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	return &model.ExtractionRecord{
		DocumentNumber: "INV-001",
		IssueDate:      &issue,
		Subtotal:       dec("100.00"),
		VATAmount:      dec("21.00"),
		Total:          dec("121.00"),
		VATRate:        dec("21"),
		SupplierName:   "Acme BVBA",
		IBAN:           "BE68539007547034",
		Confidence:     confidence,
	}
}

func newCoordinator(t *testing.T, cfg config.ProcessingConfig, primary, secondary *fakeProvider) *Coordinator {
	t.Helper()
	auditor, err := audit.NewAuditor()
	require.NoError(t, err)

	var sec extract.Provider
	if secondary != nil {
		sec = secondary
	}

	c, err := NewCoordinator(cfg, NewClassifier(), primary, sec, consensus.NewResolver(), auditor, nil)
	require.NoError(t, err)
	return c
}

func defaultConfig(t *testing.T) config.ProcessingConfig {
	t.Helper()
	cfg, err := config.Profile(config.ProfileDefault)
	require.NoError(t, err)
	return cfg
}

func TestProcessCleanInvoiceAutoApproves(t *testing.T) {
	primary := &fakeProvider{source: model.SourcePrimary, records: []*model.ExtractionRecord{cleanRecord(0.92)}}
	secondary := &fakeProvider{source: model.SourceSecondary, records: []*model.ExtractionRecord{cleanRecord(0.88)}}
	c := newCoordinator(t, defaultConfig(t), primary, secondary)

	result := c.Process(context.Background(), invoiceText)

	assert.Equal(t, model.ResultCompleted, result.Status)
	assert.Equal(t, model.DocTypeInvoice, result.Classification.Type)
	require.NotNil(t, result.Judgment)
	assert.Equal(t, model.OutcomeAutoApprove, result.Judgment.Outcome)
	assert.Equal(t, model.RetryNotNeeded, result.Retry.Status)
	assert.False(t, result.Conflicts.HadConflicts())
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestProcessEarlyRejectionOnUnclassifiableText(t *testing.T) {
	primary := &fakeProvider{source: model.SourcePrimary, records: []*model.ExtractionRecord{cleanRecord(0.9)}}
	c := newCoordinator(t, defaultConfig(t), primary, nil)

	result := c.Process(context.Background(), "completely unrelated text about gardening")

	assert.Equal(t, model.ResultRejected, result.Status)
	assert.Equal(t, model.StageClassification, result.RejectStage)
	assert.True(t, result.EarlyRejected())
	assert.Equal(t, model.OutcomeReject, result.Outcome())
	assert.Zero(t, primary.calls, "extraction must not run after early rejection")
}

func TestProcessSingleSourceFallbackNote(t *testing.T) {
	primary := &fakeProvider{source: model.SourcePrimary, records: []*model.ExtractionRecord{cleanRecord(0.92)}}
	secondary := &fakeProvider{source: model.SourceSecondary, errs: []error{eris.New("model overloaded")}, records: []*model.ExtractionRecord{cleanRecord(0.9)}}
	c := newCoordinator(t, defaultConfig(t), primary, secondary)

	result := c.Process(context.Background(), invoiceText)

	assert.Equal(t, model.ResultCompleted, result.Status)
	require.NotEmpty(t, result.Notes)
	assert.Contains(t, result.Notes[0], "secondary source produced no record")
}

func TestProcessBothSourcesFailingRejectsAtExtraction(t *testing.T) {
	boom := eris.New("provider down")
	primary := &fakeProvider{source: model.SourcePrimary, errs: []error{boom}, records: []*model.ExtractionRecord{cleanRecord(0.9)}}
	secondary := &fakeProvider{source: model.SourceSecondary, errs: []error{boom}, records: []*model.ExtractionRecord{cleanRecord(0.9)}}
	c := newCoordinator(t, defaultConfig(t), primary, secondary)

	result := c.Process(context.Background(), invoiceText)

	assert.Equal(t, model.ResultRejected, result.Status)
	assert.Equal(t, model.StageExtraction, result.RejectStage)
}

func TestProcessCorrectionLoopFixesMathFailure(t *testing.T) {
	broken := cleanRecord(0.9)
	broken.Total = dec("120.00") // fails the math check

	primary := &fakeProvider{source: model.SourcePrimary, records: []*model.ExtractionRecord{broken, cleanRecord(0.9)}}
	secondary := &fakeProvider{source: model.SourceSecondary, records: []*model.ExtractionRecord{broken, cleanRecord(0.88)}}
	c := newCoordinator(t, defaultConfig(t), primary, secondary)

	result := c.Process(context.Background(), invoiceText)

	require.Equal(t, model.ResultCompleted, result.Status)
	assert.Equal(t, model.RetryCorrected, result.Retry.Status)
	assert.Equal(t, 1, result.Retry.Attempts)
	assert.Contains(t, result.Retry.CorrectedFields, model.FieldTotal)
	assert.Equal(t, model.OutcomeAutoApprove, result.Judgment.Outcome)

	// The retry call must carry the feedback instruction.
	require.Len(t, primary.feedbacks, 2)
	assert.Empty(t, primary.feedbacks[0])
	assert.Contains(t, primary.feedbacks[1], "TOTALS")
}

func TestProcessRetryBudgetRespected(t *testing.T) {
	broken := cleanRecord(0.9)
	broken.Total = dec("120.00")

	primary := &fakeProvider{source: model.SourcePrimary, records: []*model.ExtractionRecord{broken}}
	secondary := &fakeProvider{source: model.SourceSecondary, records: []*model.ExtractionRecord{broken}}

	cfg := defaultConfig(t)
	cfg.MaxRetries = 2
	c := newCoordinator(t, cfg, primary, secondary)

	result := c.Process(context.Background(), invoiceText)

	require.Equal(t, model.ResultCompleted, result.Status)
	assert.Equal(t, model.RetryExhausted, result.Retry.Status)
	assert.Equal(t, 2, result.Retry.Attempts)
	// Initial call + two retries, never more.
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, model.OutcomeReject, result.Judgment.Outcome)
}

func TestProcessExpenseDerivesSubtotal(t *testing.T) {
	record := cleanRecord(0.9)
	record.Subtotal = nil
	record.PaymentReference = ""
	record.IBAN = ""

	primary := &fakeProvider{source: model.SourcePrimary, records: []*model.ExtractionRecord{record}}

	cfg := defaultConfig(t)
	cfg.EnsembleMode = false
	c := newCoordinator(t, cfg, primary, nil)

	result := c.Process(context.Background(), expenseText)

	require.Equal(t, model.ResultCompleted, result.Status)
	assert.Equal(t, model.DocTypeExpense, result.Classification.Type)
	require.NotNil(t, result.Record.Subtotal)
	assert.True(t, result.Record.Subtotal.Equal(decimal.RequireFromString("100.00")))
}

func TestNewCoordinatorRejectsInvalidConfig(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.MaxRetries = 99

	auditor, err := audit.NewAuditor()
	require.NoError(t, err)
	primary := &fakeProvider{source: model.SourcePrimary, records: []*model.ExtractionRecord{cleanRecord(0.9)}}

	_, err = NewCoordinator(cfg, NewClassifier(), primary, nil, consensus.NewResolver(), auditor, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retries")
}

func completedResult(outcome model.Outcome, confidence float64) *model.ProcessingResult {
	return &model.ProcessingResult{
		Status:   model.ResultCompleted,
		Record:   &model.ExtractionRecord{Confidence: confidence},
		Judgment: &model.JudgmentDecision{Outcome: outcome, Confidence: confidence},
	}
}

func TestComputeStats(t *testing.T) {
	results := []*model.ProcessingResult{
		completedResult(model.OutcomeAutoApprove, 0.9),
		completedResult(model.OutcomeAutoApprove, 0.9),
		completedResult(model.OutcomeAutoApprove, 0.9),
		completedResult(model.OutcomeNeedsReview, 0.7),
		completedResult(model.OutcomeReject, 0.3),
	}

	stats := ComputeStats(results)
	assert.Equal(t, 5, stats.TotalProcessed)
	assert.Equal(t, 3, stats.AutoApproved)
	assert.Equal(t, 1, stats.NeedsReview)
	assert.Equal(t, 1, stats.Rejected)
	assert.InDelta(t, 0.6, stats.AutoApproveRate, 1e-9)
	assert.False(t, stats.MeetsSilenceGoal)
}

func TestComputeStatsSilenceGoal(t *testing.T) {
	var results []*model.ProcessingResult
	for i := 0; i < 95; i++ {
		results = append(results, completedResult(model.OutcomeAutoApprove, 0.9))
	}
	for i := 0; i < 5; i++ {
		results = append(results, completedResult(model.OutcomeNeedsReview, 0.7))
	}
	stats := ComputeStats(results)
	assert.InDelta(t, 0.95, stats.AutoApproveRate, 1e-9)
	assert.True(t, stats.MeetsSilenceGoal)

	results = append(results[:94], completedResult(model.OutcomeNeedsReview, 0.7),
		completedResult(model.OutcomeNeedsReview, 0.7),
		completedResult(model.OutcomeNeedsReview, 0.7),
		completedResult(model.OutcomeNeedsReview, 0.7),
		completedResult(model.OutcomeNeedsReview, 0.7),
		completedResult(model.OutcomeNeedsReview, 0.7))
	stats = ComputeStats(results)
	assert.Equal(t, 100, stats.TotalProcessed)
	assert.Equal(t, 94, stats.AutoApproved)
	assert.False(t, stats.MeetsSilenceGoal)
}

func TestComputeStatsCountsEarlyRejections(t *testing.T) {
	results := []*model.ProcessingResult{
		{Status: model.ResultRejected, RejectStage: model.StageClassification},
		completedResult(model.OutcomeAutoApprove, 0.9),
	}
	stats := ComputeStats(results)
	assert.Equal(t, 1, stats.EarlyRejected)
	assert.Equal(t, 1, stats.Rejected)
}

func TestClassifyByKeywords(t *testing.T) {
	cases := []struct {
		text string
		want model.DocumentType
	}{
		{invoiceText, model.DocTypeInvoice},
		{expenseText, model.DocTypeExpense},
		{"kasticket kassabon contant betaald", model.DocTypeReceipt},
		{"weather report for tomorrow", model.DocTypeUnknown},
	}
	for _, tc := range cases {
		got := classifyByKeywords(tc.text)
		assert.Equal(t, tc.want, got.Type, "text %q", tc.text)
	}
}
