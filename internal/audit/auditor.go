// Package audit runs the deterministic compliance checks against a canonical
// extraction record: arithmetic consistency, Belgian payment-reference and
// IBAN checksums, VAT rate validity, VAT breakdown consistency, and advisory
// company-registry checks.
package audit

import (
	"context"
	_ "embed"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fiscora/docaudit/internal/model"
	"github.com/fiscora/docaudit/internal/registry"
)

// tolerance is the absolute amount tolerance for arithmetic checks, in the
// document currency's minor-unit equivalent.
var tolerance = decimal.RequireFromString("0.02")

//go:embed checks.yaml
var checksYAML []byte

// typeProfile is the per-document-type check configuration loaded from
// checks.yaml.
type typeProfile struct {
	Checks       []model.CheckType `yaml:"checks"`
	CompanyField string            `yaml:"company_field"`
}

func loadTypeProfiles() (map[model.DocumentType]typeProfile, error) {
	var raw map[model.DocumentType]typeProfile
	if err := yaml.Unmarshal(checksYAML, &raw); err != nil {
		return nil, eris.Wrap(err, "audit: parse checks.yaml")
	}
	for docType, profile := range raw {
		if len(profile.Checks) == 0 {
			return nil, eris.Errorf("audit: empty check set for document type %q", docType)
		}
	}
	return raw, nil
}

// Auditor runs the enabled checks for a document type.
type Auditor struct {
	profiles         map[model.DocumentType]typeProfile
	registry         registry.Client
	externalChecks   bool
	requireBreakdown bool
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithRegistry enables the company checks against the given register client.
func WithRegistry(client registry.Client) Option {
	return func(a *Auditor) {
		a.registry = client
		a.externalChecks = true
	}
}

// WithRequireBreakdown makes a missing VAT breakdown a warning finding.
func WithRequireBreakdown(on bool) Option {
	return func(a *Auditor) { a.requireBreakdown = on }
}

// NewAuditor creates an auditor with the embedded per-type check profiles.
// Company checks run only when a registry client is provided.
func NewAuditor(opts ...Option) (*Auditor, error) {
	profiles, err := loadTypeProfiles()
	if err != nil {
		return nil, err
	}
	a := &Auditor{profiles: profiles}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run executes the checks enabled for the document type and aggregates them
// into an AuditReport. A nil record yields the empty, passing report.
func (a *Auditor) Run(ctx context.Context, record *model.ExtractionRecord, docType model.DocumentType) *model.AuditReport {
	report := &model.AuditReport{}
	if record == nil {
		return report
	}

	profile, ok := a.profiles[docType]
	if !ok {
		profile = a.profiles[model.DocTypeInvoice]
	}

	for _, checkType := range profile.Checks {
		switch checkType {
		case model.CheckMath:
			report.Checks = append(report.Checks, checkMath(record))
		case model.CheckChecksumOGM:
			report.Checks = append(report.Checks, checkOGM(record))
		case model.CheckChecksumIBAN:
			report.Checks = append(report.Checks, checkIBAN(record))
		case model.CheckVATRate:
			report.Checks = append(report.Checks, checkVATRate(record))
		case model.CheckVATBreakdown:
			report.Checks = append(report.Checks, checkVATBreakdown(record, a.requireBreakdown)...)
		case model.CheckCompanyExists, model.CheckCompanyName:
			// Both company checks run from one lookup; skip the duplicate.
			if checkType == model.CheckCompanyName {
				continue
			}
			if a.externalChecks && a.registry != nil {
				report.Checks = append(report.Checks, a.checkCompany(ctx, record, profile.CompanyField)...)
			}
		}
	}

	if !report.Passed() {
		zap.L().Info("audit failed",
			zap.String("document_type", string(docType)),
			zap.Int("critical_failures", len(report.CriticalFailures())),
			zap.Int("warnings", report.WarningCount()),
		)
	}

	return report
}

// pass builds a passing check.
func pass(checkType model.CheckType, field, message string) model.AuditCheck {
	return model.AuditCheck{
		Type:     checkType,
		Field:    field,
		Passed:   true,
		Severity: model.SeverityInfo,
		Message:  message,
	}
}

// skip marks a check that could not run for lack of input. Not a failure.
func skip(checkType model.CheckType, field string) model.AuditCheck {
	return model.AuditCheck{
		Type:     checkType,
		Field:    field,
		Passed:   true,
		Severity: model.SeverityInfo,
		Message:  "incomplete: required fields missing, check skipped",
	}
}
