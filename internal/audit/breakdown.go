package audit

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fiscora/docaudit/internal/model"
)

var hundred = decimal.NewFromInt(100)

// checkVATBreakdown verifies each breakdown line's base × rate ≈ amount and
// that the lines sum to the document subtotal and VAT amount.
func checkVATBreakdown(record *model.ExtractionRecord, required bool) []model.AuditCheck {
	if len(record.VATBreakdown) == 0 {
		if !required {
			return []model.AuditCheck{skip(model.CheckVATBreakdown, model.FieldVATBreakdown)}
		}
		return []model.AuditCheck{{
			Type:     model.CheckVATBreakdown,
			Field:    model.FieldVATBreakdown,
			Passed:   false,
			Severity: model.SeverityWarning,
			Message:  "VAT breakdown required but absent",
			Hint:     "Re-read the VAT section and extract the per-rate breakdown table (base, rate, amount per line).",
		}}
	}

	var checks []model.AuditCheck
	sumBase := decimal.Zero
	sumAmount := decimal.Zero

	for i, line := range record.VATBreakdown {
		sumBase = sumBase.Add(line.Base)
		sumAmount = sumAmount.Add(line.Amount)

		expected := line.Base.Mul(line.Rate).Div(hundred)
		if expected.Sub(line.Amount).Abs().GreaterThan(tolerance) {
			checks = append(checks, model.AuditCheck{
				Type:     model.CheckVATBreakdown,
				Field:    model.FieldVATBreakdown,
				Passed:   false,
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("breakdown line %d: %s at %s%% should be %s, document states %s", i+1, line.Base, line.Rate, expected, line.Amount),
				Hint:     fmt.Sprintf("Re-read VAT breakdown line %d. Expected amount %s for base %s at %s%%; found %s.", i+1, expected, line.Base, line.Rate, line.Amount),
				Expected: expected.String(),
				Actual:   line.Amount.String(),
			})
		}
	}

	if record.Subtotal != nil && sumBase.Sub(*record.Subtotal).Abs().GreaterThan(tolerance) {
		checks = append(checks, model.AuditCheck{
			Type:     model.CheckVATBreakdown,
			Field:    model.FieldVATBreakdown,
			Passed:   false,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("breakdown bases sum to %s, subtotal is %s", sumBase, record.Subtotal),
			Hint:     fmt.Sprintf("Re-read the VAT breakdown. Line bases should sum to the subtotal %s; they sum to %s.", record.Subtotal, sumBase),
			Expected: record.Subtotal.String(),
			Actual:   sumBase.String(),
		})
	}

	if record.VATAmount != nil && sumAmount.Sub(*record.VATAmount).Abs().GreaterThan(tolerance) {
		checks = append(checks, model.AuditCheck{
			Type:     model.CheckVATBreakdown,
			Field:    model.FieldVATBreakdown,
			Passed:   false,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("breakdown amounts sum to %s, VAT amount is %s", sumAmount, record.VATAmount),
			Hint:     fmt.Sprintf("Re-read the VAT breakdown. Line amounts should sum to the VAT total %s; they sum to %s.", record.VATAmount, sumAmount),
			Expected: record.VATAmount.String(),
			Actual:   sumAmount.String(),
		})
	}

	if len(checks) == 0 {
		checks = append(checks, pass(model.CheckVATBreakdown, model.FieldVATBreakdown, "VAT breakdown consistent"))
	}
	return checks
}
