package judgment

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscora/docaudit/internal/config"
	"github.com/fiscora/docaudit/internal/model"
)

func mustProfile(t *testing.T, name string) Thresholds {
	t.Helper()
	p, err := Profile(name)
	require.NoError(t, err)
	return p
}

func cleanInput(confidence float64) Input {
	total := decimal.RequireFromString("121.00")
	issue := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	return Input{
		DocType: model.DocTypeInvoice,
		Record: &model.ExtractionRecord{
			Total:        &total,
			SupplierName: "Acme BVBA",
			IssueDate:    &issue,
			Confidence:   confidence,
		},
		Conflicts:  &model.ConflictReport{},
		Audit:      &model.AuditReport{},
		Retry:      &model.RetryOutcome{Status: model.RetryNotNeeded},
		Confidence: confidence,
	}
}

func TestCleanInvoiceAutoApproves(t *testing.T) {
	engine := NewEngine(mustProfile(t, "default"), 3)
	decision := engine.Decide(cleanInput(0.92))

	assert.Equal(t, model.OutcomeAutoApprove, decision.Outcome)
	assert.True(t, decision.AllCriticalChecksPassed)
	assert.True(t, decision.HasModelConsensus)
	assert.Empty(t, decision.Issues, "auto-approvals are silent")
}

func TestStrictProfileThresholds(t *testing.T) {
	engine := NewEngine(mustProfile(t, "strict"), 3)

	// 0.92 clears the strict 0.90 approve floor.
	assert.Equal(t, model.OutcomeAutoApprove, engine.Decide(cleanInput(0.92)).Outcome)

	// 0.85 does not.
	decision := engine.Decide(cleanInput(0.85))
	assert.Equal(t, model.OutcomeNeedsReview, decision.Outcome)
	assert.NotEmpty(t, decision.Issues)
}

func TestUnknownTypeAlwaysRejects(t *testing.T) {
	engine := NewEngine(mustProfile(t, "lenient"), 10)
	in := cleanInput(0.99)
	in.DocType = model.DocTypeUnknown

	decision := engine.Decide(in)
	assert.Equal(t, model.OutcomeReject, decision.Outcome)
}

func TestMissingEssentialFieldsReject(t *testing.T) {
	engine := NewEngine(mustProfile(t, "default"), 3)
	in := cleanInput(0.95)
	in.Record.Total = nil

	decision := engine.Decide(in)
	assert.Equal(t, model.OutcomeReject, decision.Outcome)
	assert.Contains(t, decision.Reasoning, model.FieldTotal)
}

func TestCriticalAuditFailureRejects(t *testing.T) {
	engine := NewEngine(mustProfile(t, "default"), 3)
	in := cleanInput(0.95)
	in.Audit = &model.AuditReport{Checks: []model.AuditCheck{{
		Type: model.CheckMath, Field: model.FieldTotal,
		Passed: false, Severity: model.SeverityCritical,
		Message: "totals do not add up",
	}}}

	decision := engine.Decide(in)
	assert.Equal(t, model.OutcomeReject, decision.Outcome)
	assert.False(t, decision.AllCriticalChecksPassed)
	require.Len(t, decision.Issues, 1)
}

func TestLowConfidenceRejects(t *testing.T) {
	engine := NewEngine(mustProfile(t, "default"), 3)
	decision := engine.Decide(cleanInput(0.4))
	assert.Equal(t, model.OutcomeReject, decision.Outcome)
}

func TestCriticalConflictNeedsReview(t *testing.T) {
	engine := NewEngine(mustProfile(t, "default"), 3)
	in := cleanInput(0.95)
	in.Conflicts = &model.ConflictReport{Conflicts: []model.FieldConflict{{
		Field: model.FieldTotal, SourceAValue: "121", SourceBValue: "120",
		Severity: model.SeverityCritical,
	}}}

	decision := engine.Decide(in)
	assert.Equal(t, model.OutcomeNeedsReview, decision.Outcome)
	assert.False(t, decision.HasModelConsensus)
	assert.Contains(t, decision.Issues[0], "disagree")
}

func TestWarningCapNeedsReview(t *testing.T) {
	engine := NewEngine(mustProfile(t, "default"), 1)
	in := cleanInput(0.95)
	warn := model.AuditCheck{
		Type: model.CheckVATRate, Field: model.FieldVATRate,
		Passed: false, Severity: model.SeverityWarning, Message: "odd rate",
	}
	in.Audit = &model.AuditReport{Checks: []model.AuditCheck{warn, warn}}

	decision := engine.Decide(in)
	assert.Equal(t, model.OutcomeNeedsReview, decision.Outcome)
	assert.Contains(t, decision.Reasoning, "warning")
}

func TestRetryMetadataCarriedThrough(t *testing.T) {
	engine := NewEngine(mustProfile(t, "default"), 3)
	in := cleanInput(0.9)
	in.Retry = &model.RetryOutcome{
		Status:          model.RetryCorrected,
		Attempts:        1,
		CorrectedFields: []string{model.FieldTotal},
	}

	decision := engine.Decide(in)
	assert.Equal(t, 1, decision.RetryAttempts)
	assert.Equal(t, []string{model.FieldTotal}, decision.CorrectedFields)
}

func TestUnknownProfileErrors(t *testing.T) {
	_, err := Profile("paranoid")
	require.Error(t, err)
}

// fakeJudge returns a fixed verdict.
type fakeJudge struct {
	outcome model.Outcome
	err     error
	called  int
}

func (f *fakeJudge) Review(_ context.Context, _ Input, deterministic *model.JudgmentDecision) (*model.JudgmentDecision, error) {
	f.called++
	if f.err != nil {
		return nil, f.err
	}
	reviewed := *deterministic
	reviewed.Outcome = f.outcome
	return &reviewed, nil
}

func TestJudgeGatedByAutonomy(t *testing.T) {
	engine := NewEngine(mustProfile(t, "default"), 3)
	needsReview := engine.Decide(cleanInput(0.7))
	require.Equal(t, model.OutcomeNeedsReview, needsReview.Outcome)

	judge := &fakeJudge{outcome: model.OutcomeAutoApprove}

	// Assisted mode never consults the judge.
	decision := ApplyJudge(context.Background(), judge, config.AutonomyAssisted, cleanInput(0.7), needsReview)
	assert.Equal(t, model.OutcomeNeedsReview, decision.Outcome)
	assert.Zero(t, judge.called)

	// Supervised mode may.
	decision = ApplyJudge(context.Background(), judge, config.AutonomySupervised, cleanInput(0.7), needsReview)
	assert.Equal(t, model.OutcomeAutoApprove, decision.Outcome)
	assert.Equal(t, 1, judge.called)
}

func TestJudgeCannotTouchRejects(t *testing.T) {
	engine := NewEngine(mustProfile(t, "default"), 3)
	reject := engine.Decide(cleanInput(0.3))
	require.Equal(t, model.OutcomeReject, reject.Outcome)

	judge := &fakeJudge{outcome: model.OutcomeAutoApprove}
	decision := ApplyJudge(context.Background(), judge, config.AutonomyAutonomous, cleanInput(0.3), reject)
	assert.Equal(t, model.OutcomeReject, decision.Outcome)
	assert.Zero(t, judge.called)
}

func TestJudgeFailureKeepsDeterministicVerdict(t *testing.T) {
	engine := NewEngine(mustProfile(t, "default"), 3)
	needsReview := engine.Decide(cleanInput(0.7))

	judge := &fakeJudge{err: eris.New("model unavailable")}
	decision := ApplyJudge(context.Background(), judge, config.AutonomySupervised, cleanInput(0.7), needsReview)
	assert.Equal(t, model.OutcomeNeedsReview, decision.Outcome)
}
