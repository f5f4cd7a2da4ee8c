// Package consensus merges the two ensemble extraction records into one
// canonical record plus a conflict report. The resolver is a pure function
// of its inputs; it never calls out.
package consensus

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fiscora/docaudit/internal/model"
)

// Policy decides which source wins when the two records disagree on a field.
type Policy string

const (
	// PreferPrimary takes the primary source's value on disagreement.
	PreferPrimary Policy = "prefer_primary"
	// PreferSecondary takes the secondary source's value on disagreement.
	PreferSecondary Policy = "prefer_secondary"
	// RequireMatch nulls the field on disagreement and grades the conflict
	// critical regardless of the field's normal severity.
	RequireMatch Policy = "require_match"
)

// criticalFields disagree at CRITICAL severity; everything else is WARNING.
var criticalFields = map[string]bool{
	model.FieldTotal:            true,
	model.FieldSubtotal:         true,
	model.FieldVATAmount:        true,
	model.FieldIBAN:             true,
	model.FieldPaymentReference: true,
	model.FieldSupplierVAT:      true,
	model.FieldCustomerVAT:      true,
}

// Resolver merges extraction records field by field.
type Resolver struct {
	policies      map[string]Policy
	defaultPolicy Policy
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFieldPolicy overrides the policy for one canonical field name.
func WithFieldPolicy(field string, policy Policy) Option {
	return func(r *Resolver) { r.policies[field] = policy }
}

// WithDefaultPolicy sets the policy used for fields without an override.
func WithDefaultPolicy(policy Policy) Option {
	return func(r *Resolver) { r.defaultPolicy = policy }
}

// NewResolver creates a resolver. Without options every field prefers the
// primary source on disagreement.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		policies:      make(map[string]Policy),
		defaultPolicy: PreferPrimary,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve merges the primary and secondary records. Either record may be nil:
// the resolver falls back to the surviving source with a note instead of
// failing the stage. Both nil is an error.
func (r *Resolver) Resolve(primary, secondary *model.ExtractionRecord) (*model.ExtractionRecord, *model.ConflictReport, error) {
	switch {
	case primary == nil && secondary == nil:
		return nil, nil, eris.New("consensus: no extraction records to resolve")
	case secondary == nil:
		return r.fallback(primary, "secondary source produced no record; using primary only")
	case primary == nil:
		return r.fallback(secondary, "primary source produced no record; using secondary only")
	}

	canonical := *primary
	canonical.Source = model.SourceConsensus
	canonical.Confidence = (primary.Confidence + secondary.Confidence) / 2

	report := &model.ConflictReport{}

	for _, def := range fieldDefs {
		inA := def.present(primary)
		inB := def.present(secondary)

		switch {
		case !inA && !inB:
			continue
		case inA && !inB:
			def.copyInto(&canonical, primary)
		case !inA && inB:
			def.copyInto(&canonical, secondary)
		case def.equal(primary, secondary):
			// Agreement: keep the primary's representation.
			def.copyInto(&canonical, primary)
		default:
			conflict := r.resolveDisagreement(def, primary, secondary, &canonical)
			report.Conflicts = append(report.Conflicts, conflict)
		}
	}

	if report.HadConflicts() {
		zap.L().Debug("consensus resolved with conflicts",
			zap.Int("conflicts", len(report.Conflicts)),
			zap.Int("critical", len(report.CriticalConflicts())),
		)
	}

	return &canonical, report, nil
}

func (r *Resolver) fallback(record *model.ExtractionRecord, note string) (*model.ExtractionRecord, *model.ConflictReport, error) {
	canonical := *record
	canonical.Source = model.SourceConsensus
	zap.L().Warn("consensus falling back to single source", zap.String("note", note))
	return &canonical, &model.ConflictReport{FallbackNote: note}, nil
}

func (r *Resolver) resolveDisagreement(def fieldDef, primary, secondary, canonical *model.ExtractionRecord) model.FieldConflict {
	severity := model.SeverityWarning
	if criticalFields[def.name] {
		severity = model.SeverityCritical
	}

	conflict := model.FieldConflict{
		Field:        def.name,
		SourceAValue: def.display(primary),
		SourceBValue: def.display(secondary),
		Severity:     severity,
	}

	policy, ok := r.policies[def.name]
	if !ok {
		policy = r.defaultPolicy
	}

	switch policy {
	case PreferSecondary:
		def.copyInto(canonical, secondary)
		conflict.ChosenValue = def.display(secondary)
		conflict.ChosenSource = model.SourceSecondary
	case RequireMatch:
		// Disagreement under require-match forces the field to null and the
		// conflict to critical, overriding the severity table.
		def.clear(canonical)
		conflict.Severity = model.SeverityCritical
	default: // PreferPrimary
		def.copyInto(canonical, primary)
		conflict.ChosenValue = def.display(primary)
		conflict.ChosenSource = model.SourcePrimary
	}

	return conflict
}

// normIdent normalizes identifier-like values: strip all whitespace and
// separators, uppercase. "BE68 5390 0754 7034" equals "be68539007547034".
func normIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\t', '.', '-', '/':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// normText normalizes free-text values: collapse whitespace, fold case.
func normText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
