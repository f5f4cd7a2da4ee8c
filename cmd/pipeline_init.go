package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fiscora/docaudit/internal/audit"
	"github.com/fiscora/docaudit/internal/config"
	"github.com/fiscora/docaudit/internal/consensus"
	"github.com/fiscora/docaudit/internal/extract"
	"github.com/fiscora/docaudit/internal/judgment"
	"github.com/fiscora/docaudit/internal/model"
	"github.com/fiscora/docaudit/internal/pipeline"
	"github.com/fiscora/docaudit/internal/registry"
	"github.com/fiscora/docaudit/internal/store"
	anthropicpkg "github.com/fiscora/docaudit/pkg/anthropic"
)

// profileFlag overrides the processing profile from config when set.
var profileFlag string

// pipelineEnv holds the initialized store and coordinator needed by the
// process/batch/serve commands.
type pipelineEnv struct {
	Store       store.Store
	Coordinator *pipeline.Coordinator
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// processingConfig resolves the effective processing configuration: the
// --profile flag wins over the config file.
func processingConfig() (config.ProcessingConfig, error) {
	if profileFlag != "" {
		return config.Profile(profileFlag)
	}
	return cfg.Processing, nil
}

// initPipeline sets up the store, the Anthropic clients, and the coordinator.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	pc, err := processingConfig()
	if err != nil {
		return nil, err
	}

	if cfg.Anthropic.Key == "" {
		return nil, eris.New("DOCAUDIT_ANTHROPIC_KEY is required")
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key)

	// One limiter shared by both extraction sources so ensemble mode does
	// not double the request rate.
	limiter := rate.NewLimiter(rate.Limit(cfg.Anthropic.RequestsPerSec), 1)

	primary := extract.NewAnthropicProvider(client, cfg.Anthropic.PrimaryModel, model.SourcePrimary, limiter,
		extract.WithProvenance(pc.Provenance))

	var secondary extract.Provider
	if pc.EnsembleMode {
		secondary = extract.NewAnthropicProvider(client, cfg.Anthropic.SecondaryModel, model.SourceSecondary, limiter,
			extract.WithProvenance(pc.Provenance))
	}

	auditOpts := []audit.Option{audit.WithRequireBreakdown(pc.RequireBreakdown)}
	if pc.ExternalChecks {
		auditOpts = append(auditOpts, audit.WithRegistry(registry.NewHTTPClient(cfg.Registry)))
	}
	auditor, err := audit.NewAuditor(auditOpts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var judge judgment.Judge
	if judgment.AllowJudge(pc.AutonomyLevel) {
		judge = judgment.NewAnthropicJudge(client, cfg.Anthropic.JudgeModel)
	}

	coordinator, err := pipeline.NewCoordinator(
		pc,
		pipeline.NewLLMClassifier(client, cfg.Anthropic.SecondaryModel),
		primary,
		secondary,
		consensus.NewResolver(),
		auditor,
		judge,
	)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	zap.L().Info("pipeline initialized",
		zap.String("profile", pc.Profile),
		zap.Bool("ensemble", pc.EnsembleMode),
		zap.Bool("external_checks", pc.ExternalChecks),
		zap.String("autonomy", pc.AutonomyLevel),
	)

	return &pipelineEnv{Store: st, Coordinator: coordinator}, nil
}
