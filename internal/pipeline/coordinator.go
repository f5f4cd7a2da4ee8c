package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fiscora/docaudit/internal/audit"
	"github.com/fiscora/docaudit/internal/config"
	"github.com/fiscora/docaudit/internal/consensus"
	"github.com/fiscora/docaudit/internal/correction"
	"github.com/fiscora/docaudit/internal/extract"
	"github.com/fiscora/docaudit/internal/judgment"
	"github.com/fiscora/docaudit/internal/model"
)

// Coordinator wires the five pipeline stages together. It is the only
// component aware of document-type routing and configuration; each stage
// stays a pure function of its inputs.
type Coordinator struct {
	cfg        config.ProcessingConfig
	classifier *Classifier
	primary    extract.Provider
	secondary  extract.Provider
	resolver   *consensus.Resolver
	auditor    *audit.Auditor
	engine     *judgment.Engine
	judge      judgment.Judge
}

// NewCoordinator validates the configuration and assembles the pipeline.
// The secondary provider and judge may be nil (single-source mode,
// deterministic-only judgment).
func NewCoordinator(
	cfg config.ProcessingConfig,
	classifier *Classifier,
	primary extract.Provider,
	secondary extract.Provider,
	resolver *consensus.Resolver,
	auditor *audit.Auditor,
	judge judgment.Judge,
) (*Coordinator, error) {
	if issues := cfg.Validate(); len(issues) > 0 {
		return nil, eris.Errorf("pipeline: invalid configuration: %s", strings.Join(issues, "; "))
	}
	if primary == nil {
		return nil, eris.New("pipeline: primary extraction provider is required")
	}

	thresholds, err := judgment.Profile(cfg.JudgmentProfile)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		cfg:        cfg,
		classifier: classifier,
		primary:    primary,
		secondary:  secondary,
		resolver:   resolver,
		auditor:    auditor,
		engine:     judgment.NewEngine(thresholds, cfg.WarningCap),
		judge:      judge,
	}, nil
}

// Process runs one document through the full pipeline.
func (c *Coordinator) Process(ctx context.Context, docText string) *model.ProcessingResult {
	result := &model.ProcessingResult{
		RunID:     uuid.NewString(),
		Profile:   c.cfg.Profile,
		StartedAt: time.Now(),
	}
	defer func() {
		result.DurationMS = time.Since(result.StartedAt).Milliseconds()
	}()

	// Stage 0: classification with an early-rejection gate.
	classification := c.classifier.Classify(ctx, docText)
	result.Classification = classification

	if classification.Type == model.DocTypeUnknown || classification.Confidence < c.cfg.MinClassificationConfidence {
		result.Status = model.ResultRejected
		result.RejectStage = model.StageClassification
		result.RejectReason = "document type unknown or classification confidence too low"
		result.Details = map[string]any{
			"type":           string(classification.Type),
			"confidence":     classification.Confidence,
			"min_confidence": c.cfg.MinClassificationConfidence,
		}
		zap.L().Info("early rejection at classification",
			zap.String("run_id", result.RunID),
			zap.Float64("confidence", classification.Confidence),
		)
		return result
	}

	// Stage 1: extraction (concurrent ensemble) and consensus.
	canonical, conflicts, err := c.extractAndResolve(ctx, docText, classification.Type, "")
	if err != nil {
		result.Status = model.ResultRejected
		result.RejectStage = model.StageExtraction
		result.RejectReason = "no extraction source produced a record"
		result.Details = map[string]any{"error": err.Error()}
		zap.L().Warn("early rejection at extraction", zap.String("run_id", result.RunID), zap.Error(err))
		return result
	}
	if conflicts.FallbackNote != "" {
		result.Notes = append(result.Notes, conflicts.FallbackNote)
	}

	// Stage 2: compliance audit.
	report := c.auditor.Run(ctx, canonical, classification.Type)

	// Stage 3: bounded self-correction.
	loop := correction.NewLoop(c.cfg.MaxRetries)
	loopResult := loop.Run(ctx, canonical, report, func(ctx context.Context, feedback string) (*model.ExtractionRecord, *model.AuditReport, error) {
		record, retryConflicts, err := c.extractAndResolve(ctx, docText, classification.Type, feedback)
		if err != nil {
			return nil, nil, err
		}
		// Later rounds replace the conflict report along with the record.
		conflicts = retryConflicts
		return record, c.auditor.Run(ctx, record, classification.Type), nil
	})
	canonical = loopResult.Record
	report = loopResult.Report
	if loopResult.Note != "" {
		result.Notes = append(result.Notes, loopResult.Note)
	}

	// Stage 4: judgment, with the autonomy-gated probabilistic fallback.
	in := judgment.Input{
		DocType:    classification.Type,
		Record:     canonical,
		Conflicts:  conflicts,
		Audit:      report,
		Retry:      &loopResult.Outcome,
		Confidence: canonical.Confidence,
	}
	decision := c.engine.Decide(in)
	decision = judgment.ApplyJudge(ctx, c.judge, c.cfg.AutonomyLevel, in, decision)

	result.Status = model.ResultCompleted
	result.Record = canonical
	result.Conflicts = conflicts
	result.Audit = report
	result.Retry = &loopResult.Outcome
	result.Judgment = decision

	zap.L().Info("document processed",
		zap.String("run_id", result.RunID),
		zap.String("type", string(classification.Type)),
		zap.String("outcome", string(decision.Outcome)),
		zap.Float64("confidence", canonical.Confidence),
		zap.Int("retry_attempts", loopResult.Outcome.Attempts),
	)

	return result
}

// extractAndResolve runs the enabled extraction sources and resolves them
// into a canonical record. In ensemble mode the two calls run concurrently;
// one source failing degrades to single-source mode instead of failing.
func (c *Coordinator) extractAndResolve(ctx context.Context, docText string, docType model.DocumentType, feedback string) (*model.ExtractionRecord, *model.ConflictReport, error) {
	// Single-source mode: no consensus stage, empty conflict report.
	if !c.cfg.EnsembleMode || c.secondary == nil {
		record, err := c.primary.Extract(ctx, docText, docType, feedback)
		if err != nil {
			return nil, nil, eris.Wrap(err, "pipeline: extraction")
		}
		canonical := *record
		deriveFields(&canonical, docType)
		return &canonical, &model.ConflictReport{}, nil
	}

	var primaryRecord, secondaryRecord *model.ExtractionRecord
	{
		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			record, err := c.primary.Extract(gCtx, docText, docType, feedback)
			if err != nil {
				zap.L().Warn("primary extraction failed", zap.Error(err))
				return nil // Degrade, don't cancel the sibling.
			}
			primaryRecord = record
			return nil
		})
		g.Go(func() error {
			record, err := c.secondary.Extract(gCtx, docText, docType, feedback)
			if err != nil {
				zap.L().Warn("secondary extraction failed", zap.Error(err))
				return nil
			}
			secondaryRecord = record
			return nil
		})
		_ = g.Wait()
	}

	canonical, conflicts, err := c.resolver.Resolve(primaryRecord, secondaryRecord)
	if err != nil {
		return nil, nil, err
	}

	deriveFields(canonical, docType)
	return canonical, conflicts, nil
}

// deriveFields fills in type-specific derivable fields: expenses usually
// state only total and VAT, so the subtotal is total − VAT.
func deriveFields(record *model.ExtractionRecord, docType model.DocumentType) {
	if docType != model.DocTypeExpense {
		return
	}
	if record.Subtotal == nil && record.Total != nil && record.VATAmount != nil {
		derived := record.Total.Sub(*record.VATAmount)
		record.Subtotal = &derived
	}
}
