package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fiscora/docaudit/internal/model"
)

// horecaTwelveFrom is the date the 12% Horeca-sector rate becomes valid.
var horecaTwelveFrom = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

var (
	rateZero      = decimal.Zero
	rateSix       = decimal.NewFromInt(6)
	rateTwelve    = decimal.NewFromInt(12)
	rateTwentyOne = decimal.NewFromInt(21)
)

// checkVATRate verifies the stated rate is a valid Belgian VAT rate on the
// document's date. 12% is only valid from 2026-03-01; a missing issue date
// gives the document the benefit of the doubt.
func checkVATRate(record *model.ExtractionRecord) model.AuditCheck {
	if record.VATRate == nil {
		return skip(model.CheckVATRate, model.FieldVATRate)
	}
	rate := *record.VATRate

	valid := []decimal.Decimal{rateZero, rateSix, rateTwentyOne}
	if record.IssueDate == nil || !record.IssueDate.Before(horecaTwelveFrom) {
		valid = append(valid, rateTwelve)
	}

	for _, v := range valid {
		if rate.Equal(v) {
			return pass(model.CheckVATRate, model.FieldVATRate, "VAT rate valid")
		}
	}

	return model.AuditCheck{
		Type:     model.CheckVATRate,
		Field:    model.FieldVATRate,
		Passed:   false,
		Severity: model.SeverityWarning,
		Message:  fmt.Sprintf("VAT rate %s%% is not a valid Belgian rate for this document date", rate),
		Hint: fmt.Sprintf("Re-read the VAT section. Valid rates for this document are %s%%; found %s%%.",
			formatRates(valid), rate),
		Expected: formatRates(valid),
		Actual:   rate.String(),
	}
}

func formatRates(rates []decimal.Decimal) string {
	parts := make([]string, len(rates))
	for i, r := range rates {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}
