package config

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Named processing profiles.
const (
	ProfileDefault     = "default"
	ProfileFast        = "fast"
	ProfileThorough    = "thorough"
	ProfileOffline     = "offline"
	ProfileDevelopment = "development"
)

// Autonomy levels gating the probabilistic judge. Assisted never consults
// the judge, regardless of other settings.
const (
	AutonomyAssisted   = "assisted"
	AutonomySupervised = "supervised"
	AutonomyAutonomous = "autonomous"
)

// Judgment threshold profile names (thresholds live in internal/judgment).
const (
	JudgmentDefault = "default"
	JudgmentStrict  = "strict"
	JudgmentLenient = "lenient"
)

// ProcessingConfig controls one pipeline run. Construct via Profile and
// validate before use; the coordinator refuses an invalid configuration.
type ProcessingConfig struct {
	Profile string `yaml:"profile" mapstructure:"profile"`

	// EnsembleMode runs two extraction sources concurrently and resolves
	// disagreements; off means single-source extraction.
	EnsembleMode bool `yaml:"ensemble_mode" mapstructure:"ensemble_mode"`

	// MaxRetries bounds the correction loop. Zero disables self-correction.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	JudgmentProfile string `yaml:"judgment_profile" mapstructure:"judgment_profile"`
	AutonomyLevel   string `yaml:"autonomy_level" mapstructure:"autonomy_level"`

	// ExternalChecks enables the company-registry checks.
	ExternalChecks bool `yaml:"external_checks" mapstructure:"external_checks"`

	// RequireBreakdown makes a missing VAT breakdown a warning finding.
	RequireBreakdown bool `yaml:"require_breakdown" mapstructure:"require_breakdown"`

	// Provenance enables per-field source span capture.
	Provenance bool `yaml:"provenance" mapstructure:"provenance"`

	// MinClassificationConfidence rejects a document early when the
	// classifier is less certain than this.
	MinClassificationConfidence float64 `yaml:"min_classification_confidence" mapstructure:"min_classification_confidence"`

	// WarningCap is the number of warning findings above which judgment
	// demotes an otherwise-approvable document to review.
	WarningCap int `yaml:"warning_cap" mapstructure:"warning_cap"`
}

// Profile returns the preset configuration for a named profile.
func Profile(name string) (ProcessingConfig, error) {
	base := ProcessingConfig{
		Profile:                     ProfileDefault,
		EnsembleMode:                true,
		MaxRetries:                  2,
		JudgmentProfile:             JudgmentDefault,
		AutonomyLevel:               AutonomySupervised,
		ExternalChecks:              true,
		RequireBreakdown:            false,
		MinClassificationConfidence: 0.6,
		WarningCap:                  3,
	}

	switch name {
	case ProfileDefault, "":
		return base, nil
	case ProfileFast:
		base.Profile = ProfileFast
		base.EnsembleMode = false
		base.MaxRetries = 0
		base.JudgmentProfile = JudgmentLenient
		return base, nil
	case ProfileThorough:
		base.Profile = ProfileThorough
		base.MaxRetries = 3
		base.JudgmentProfile = JudgmentStrict
		base.RequireBreakdown = true
		base.AutonomyLevel = AutonomyAutonomous
		return base, nil
	case ProfileOffline:
		base.Profile = ProfileOffline
		base.ExternalChecks = false
		base.AutonomyLevel = AutonomyAssisted
		return base, nil
	case ProfileDevelopment:
		base.Profile = ProfileDevelopment
		base.EnsembleMode = false
		base.Provenance = true
		base.AutonomyLevel = AutonomyAssisted
		return base, nil
	default:
		return ProcessingConfig{}, eris.Errorf("config: unknown processing profile %q", name)
	}
}

// Validate returns the list of configuration problems, empty when the
// configuration is usable.
func (c ProcessingConfig) Validate() []string {
	var issues []string

	if c.MaxRetries < 0 {
		issues = append(issues, fmt.Sprintf("max_retries must be >= 0, got %d", c.MaxRetries))
	}
	if c.MaxRetries > 5 {
		issues = append(issues, fmt.Sprintf("max_retries must be <= 5, got %d", c.MaxRetries))
	}
	if c.MinClassificationConfidence < 0 || c.MinClassificationConfidence > 1 {
		issues = append(issues, fmt.Sprintf("min_classification_confidence must be in [0,1], got %g", c.MinClassificationConfidence))
	}
	if c.WarningCap < 0 {
		issues = append(issues, fmt.Sprintf("warning_cap must be >= 0, got %d", c.WarningCap))
	}
	switch c.JudgmentProfile {
	case JudgmentDefault, JudgmentStrict, JudgmentLenient:
	default:
		issues = append(issues, fmt.Sprintf("unknown judgment_profile %q", c.JudgmentProfile))
	}
	switch c.AutonomyLevel {
	case AutonomyAssisted, AutonomySupervised, AutonomyAutonomous:
	default:
		issues = append(issues, fmt.Sprintf("unknown autonomy_level %q", c.AutonomyLevel))
	}

	return issues
}
