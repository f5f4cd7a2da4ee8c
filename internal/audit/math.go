package audit

import (
	"fmt"

	"github.com/fiscora/docaudit/internal/model"
)

// checkMath verifies subtotal + vat_amount == total within tolerance.
func checkMath(record *model.ExtractionRecord) model.AuditCheck {
	if record.Subtotal == nil || record.VATAmount == nil || record.Total == nil {
		return skip(model.CheckMath, model.FieldTotal)
	}

	expected := record.Subtotal.Add(*record.VATAmount)
	diff := expected.Sub(*record.Total).Abs()
	if diff.LessThanOrEqual(tolerance) {
		return pass(model.CheckMath, model.FieldTotal, "subtotal + VAT matches total")
	}

	return model.AuditCheck{
		Type:     model.CheckMath,
		Field:    model.FieldTotal,
		Passed:   false,
		Severity: model.SeverityCritical,
		Message:  fmt.Sprintf("subtotal %s + VAT %s = %s, document states total %s", record.Subtotal, record.VATAmount, expected, record.Total),
		Hint: fmt.Sprintf("Re-read the TOTALS section. Expected total %s but found %s. "+
			"Watch for OCR digit substitutions such as 1↔7 and 0↔6.", expected, record.Total),
		Expected: expected.String(),
		Actual:   record.Total.String(),
	}
}
