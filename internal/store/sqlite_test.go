package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscora/docaudit/internal/model"
)

func sampleResult(runID string, outcome model.Outcome) *model.ProcessingResult {
	return &model.ProcessingResult{
		RunID:  runID,
		Status: model.ResultCompleted,
		Classification: model.Classification{
			Type:       model.DocTypeInvoice,
			Confidence: 0.9,
		},
		Record: &model.ExtractionRecord{
			Source:     model.SourceConsensus,
			Confidence: 0.88,
		},
		Judgment: &model.JudgmentDecision{
			Outcome:   outcome,
			Reasoning: "clean document",
		},
		Profile:    "default",
		StartedAt:  time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		DurationMS: 1200,
	}
}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved := sampleResult("run-1", model.OutcomeAutoApprove)
	require.NoError(t, s.SaveResult(ctx, saved))

	got, err := s.GetResult(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, model.ResultCompleted, got.Status)
	assert.Equal(t, model.DocTypeInvoice, got.Classification.Type)
	require.NotNil(t, got.Judgment)
	assert.Equal(t, model.OutcomeAutoApprove, got.Judgment.Outcome)
	assert.Equal(t, "default", got.Profile)
}

func TestSQLiteGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetResult(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := sampleResult("run-1", model.OutcomeNeedsReview)
	require.NoError(t, s.SaveResult(ctx, first))

	second := sampleResult("run-1", model.OutcomeAutoApprove)
	require.NoError(t, s.SaveResult(ctx, second))

	got, err := s.GetResult(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAutoApprove, got.Judgment.Outcome)

	all, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteListRecentOrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, runID := range []string{"run-a", "run-b", "run-c"} {
		r := sampleResult(runID, model.OutcomeAutoApprove)
		r.StartedAt = r.StartedAt.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.SaveResult(ctx, r))
	}

	recent, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "run-c", recent[0].RunID)
	assert.Equal(t, "run-b", recent[1].RunID)
}

func TestSQLiteSaveEarlyRejection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := &model.ProcessingResult{
		RunID:  "run-early",
		Status: model.ResultRejected,
		Classification: model.Classification{
			Type:       model.DocTypeUnknown,
			Confidence: 0.1,
		},
		RejectStage:  model.StageClassification,
		RejectReason: "document type could not be determined",
		StartedAt:    time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveResult(ctx, r))

	got, err := s.GetResult(ctx, "run-early")
	require.NoError(t, err)
	assert.True(t, got.EarlyRejected())
	assert.Equal(t, model.StageClassification, got.RejectStage)
	assert.Nil(t, got.Record)
}
