package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fiscora/docaudit/internal/model"
	"github.com/fiscora/docaudit/internal/registry"
)

// checkCompany runs the advisory register checks for the counterparty VAT
// number named by the document-type profile. The register is advisory: an
// unreachable register degrades to an informational note, never a failure.
func (a *Auditor) checkCompany(ctx context.Context, record *model.ExtractionRecord, companyField string) []model.AuditCheck {
	vat, name := companyValues(record, companyField)
	if vat == "" {
		return []model.AuditCheck{skip(model.CheckCompanyExists, companyField)}
	}

	company, err := a.registry.Lookup(ctx, vat)
	switch {
	case err == nil:
	case eris.Is(err, registry.ErrNotFound):
		return []model.AuditCheck{{
			Type:     model.CheckCompanyExists,
			Field:    companyField,
			Passed:   false,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("VAT number %s not found in the CBE register", vat),
			Hint:     "Re-read the VAT number. Belgian VAT numbers are BE followed by 10 digits; watch for OCR digit substitutions.",
			Actual:   vat,
		}}
	default:
		zap.L().Warn("company check degraded: register unavailable", zap.Error(err))
		return []model.AuditCheck{{
			Type:     model.CheckCompanyExists,
			Field:    companyField,
			Passed:   true,
			Severity: model.SeverityInfo,
			Message:  "register unavailable; company check skipped",
		}}
	}

	checks := []model.AuditCheck{
		pass(model.CheckCompanyExists, companyField, fmt.Sprintf("registered enterprise: %s", company.Name)),
	}

	if name != "" && !namesMatch(name, company.Name) {
		checks = append(checks, model.AuditCheck{
			Type:     model.CheckCompanyName,
			Field:    companyNameField(companyField),
			Passed:   false,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("extracted name %q differs from registered name %q", name, company.Name),
			Hint:     fmt.Sprintf("Re-read the company name. The register lists this enterprise as %q.", company.Name),
			Expected: company.Name,
			Actual:   name,
		})
	} else if name != "" {
		checks = append(checks, pass(model.CheckCompanyName, companyNameField(companyField), "name matches register"))
	}

	return checks
}

func companyValues(record *model.ExtractionRecord, companyField string) (vat, name string) {
	switch companyField {
	case model.FieldCustomerVAT:
		return record.CustomerVAT, record.CustomerName
	default:
		return record.SupplierVAT, record.SupplierName
	}
}

func companyNameField(companyField string) string {
	if companyField == model.FieldCustomerVAT {
		return model.FieldCustomerName
	}
	return model.FieldSupplierName
}

// namesMatch compares company names loosely: case-folded, punctuation
// stripped, and common legal-form suffixes ignored.
func namesMatch(a, b string) bool {
	return normalizeCompanyName(a) == normalizeCompanyName(b)
}

var legalForms = map[string]bool{
	"bv": true, "bvba": true, "nv": true, "sa": true, "srl": true,
	"sprl": true, "cv": true, "vzw": true, "asbl": true, "comm.v": true,
}

func normalizeCompanyName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '\'', '"', '(', ')':
			return -1
		}
		return r
	}, strings.ToLower(name))

	var kept []string
	for _, word := range strings.Fields(cleaned) {
		if legalForms[word] {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}
