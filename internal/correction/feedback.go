// Package correction implements the bounded self-correction loop: audit
// failures become targeted re-extraction feedback, one sequential retry at a
// time, up to the configured budget.
package correction

import (
	"fmt"
	"strings"

	"github.com/fiscora/docaudit/internal/model"
)

// BuildFeedback renders the actionable audit failures into a re-extraction
// instruction: one numbered block per failure, templated per check type,
// with a FINAL-attempt marker on the last allowed retry.
func BuildFeedback(failures []model.AuditCheck, finalAttempt bool) string {
	if len(failures) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("The previous extraction failed validation. Correct the following issues:\n")

	for i, failure := range failures {
		fmt.Fprintf(&b, "\nIssue %d (%s): %s\n", i+1, failure.Type, failure.Message)
		b.WriteString(instructionFor(failure))
		b.WriteString("\n")
	}

	if finalAttempt {
		b.WriteString("\nThis is the FINAL attempt. Extract with maximum care; there will be no further retries.\n")
	}

	return b.String()
}

// instructionFor picks the per-check-type template. The audit hint already
// carries the specifics (expected vs found values); the template adds the
// re-reading strategy.
func instructionFor(failure model.AuditCheck) string {
	switch failure.Type {
	case model.CheckMath:
		return failure.Hint + "\nRe-read the TOTALS section digit by digit and re-extract subtotal, VAT amount, and total."
	case model.CheckChecksumOGM:
		return failure.Hint + "\nRe-read the PAYMENT section. The structured communication is 12 digits in the form +++XXX/XXXX/XXXXX+++."
	case model.CheckChecksumIBAN:
		return failure.Hint + "\nRe-read the BANK DETAILS section. Belgian IBANs are exactly 16 characters starting with BE."
	case model.CheckVATRate:
		return failure.Hint + "\nRe-read the VAT line; only the listed rates are valid."
	case model.CheckVATBreakdown:
		return failure.Hint
	case model.CheckCompanyExists, model.CheckCompanyName:
		return failure.Hint + "\nRe-read the VAT number carefully; the format is BE followed by 10 digits."
	default:
		return failure.Hint
	}
}
