package audit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fiscora/docaudit/internal/model"
)

// ocrConfusables maps characters the OCR layer commonly swaps. The table is
// symmetric: each letter maps to its digit and vice versa.
var ocrConfusables = map[byte]byte{
	'O': '0', '0': 'O',
	'I': '1', '1': 'I',
	'B': '8', '8': 'B',
	'S': '5', '5': 'S',
	'G': '6', '6': 'G',
}

const ocrPairsList = "0↔O, 1↔I, 8↔B, 5↔S, 6↔G"

// checkOGM validates the Belgian structured payment communication: a
// 10-digit base and 2-digit check where base mod 97 equals the check, with
// remainder 0 mapping to 97. Before failing, single-character OCR
// substitutions from the confusable table are tried.
func checkOGM(record *model.ExtractionRecord) model.AuditCheck {
	candidate := normalizeOGM(record.PaymentReference)
	if candidate == "" {
		return skip(model.CheckChecksumOGM, model.FieldPaymentReference)
	}

	if !ogmShaped(candidate) {
		// Free-form communications are legitimate; nothing to validate.
		return pass(model.CheckChecksumOGM, model.FieldPaymentReference,
			"payment reference is not a structured communication")
	}

	if ogmValid(candidate) {
		return pass(model.CheckChecksumOGM, model.FieldPaymentReference, "structured communication checksum valid")
	}

	// Single-character OCR substitution search, deterministic left to right.
	for i := 0; i < len(candidate); i++ {
		sub, ok := ocrConfusables[candidate[i]]
		if !ok {
			continue
		}
		variant := candidate[:i] + string(sub) + candidate[i+1:]
		if ogmValid(variant) {
			return model.AuditCheck{
				Type:     model.CheckChecksumOGM,
				Field:    model.FieldPaymentReference,
				Passed:   true,
				Severity: model.SeverityInfo,
				Message: fmt.Sprintf("checksum valid after OCR correction %q → %q at position %d",
					string(candidate[i]), string(sub), i+1),
			}
		}
	}

	expected, found := ogmDigits(candidate)
	return model.AuditCheck{
		Type:     model.CheckChecksumOGM,
		Field:    model.FieldPaymentReference,
		Passed:   false,
		Severity: model.SeverityCritical,
		Message:  fmt.Sprintf("structured communication check digit mismatch: expected %s, found %s", expected, found),
		Hint: fmt.Sprintf("Re-read the PAYMENT section. Check digits should be %s but the document reads %s. "+
			"Watch for OCR character substitutions: %s.", expected, found, ocrPairsList),
		Expected: expected,
		Actual:   found,
	}
}

// normalizeOGM strips the +++ / *** wrappers, separators, and whitespace.
func normalizeOGM(ref string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(ref)) {
		switch r {
		case '+', '*', '/', ' ', '-', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ogmShaped reports whether the candidate looks like a structured
// communication: 12 characters, all digits or OCR-confusable letters.
func ogmShaped(candidate string) bool {
	if len(candidate) != 12 {
		return false
	}
	for i := 0; i < len(candidate); i++ {
		c := candidate[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if _, ok := ocrConfusables[c]; ok {
			continue
		}
		return false
	}
	return true
}

// ogmValid reports whether a 12-character all-digit candidate satisfies the
// mod-97 rule. Candidates still containing letters never validate.
func ogmValid(candidate string) bool {
	base, err := strconv.ParseUint(candidate[:10], 10, 64)
	if err != nil {
		return false
	}
	check, err := strconv.ParseUint(candidate[10:], 10, 64)
	if err != nil {
		return false
	}
	want := base % 97
	if want == 0 {
		want = 97
	}
	return want == check
}

// ogmDigits returns the expected and found check digits for reporting. When
// the base itself is unparseable the expected value is "??".
func ogmDigits(candidate string) (expected, found string) {
	found = candidate[10:]
	base, err := strconv.ParseUint(candidate[:10], 10, 64)
	if err != nil {
		return "??", found
	}
	want := base % 97
	if want == 0 {
		want = 97
	}
	return fmt.Sprintf("%02d", want), found
}
