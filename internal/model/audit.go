package model

// CheckType is the closed set of compliance checks the auditor can run.
type CheckType string

const (
	CheckMath          CheckType = "MATH"
	CheckChecksumOGM   CheckType = "CHECKSUM_OGM"
	CheckChecksumIBAN  CheckType = "CHECKSUM_IBAN"
	CheckVATRate       CheckType = "VAT_RATE"
	CheckVATBreakdown  CheckType = "VAT_BREAKDOWN"
	CheckCompanyExists CheckType = "COMPANY_EXISTS"
	CheckCompanyName   CheckType = "COMPANY_NAME"
)

// AllCheckTypes returns every check type in audit execution order.
func AllCheckTypes() []CheckType {
	return []CheckType{
		CheckMath,
		CheckChecksumOGM,
		CheckChecksumIBAN,
		CheckVATRate,
		CheckVATBreakdown,
		CheckCompanyExists,
		CheckCompanyName,
	}
}

// AuditCheck is one finding from the compliance auditor. Hint is always
// populated on failure and is written for machine re-consumption by the
// correction loop's feedback builder.
type AuditCheck struct {
	Type     CheckType `json:"type"`
	Field    string    `json:"field"`
	Passed   bool      `json:"passed"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Hint     string    `json:"hint,omitempty"`
	Expected string    `json:"expected,omitempty"`
	Actual   string    `json:"actual,omitempty"`
}

// AuditReport aggregates the checks run against one canonical record.
// The empty report always passes.
type AuditReport struct {
	Checks []AuditCheck `json:"checks,omitempty"`
}

// Passed reports overall audit status: pass iff no critical failures.
func (r *AuditReport) Passed() bool {
	return r == nil || len(r.CriticalFailures()) == 0
}

// Failures returns every failed check regardless of severity.
func (r *AuditReport) Failures() []AuditCheck {
	if r == nil {
		return nil
	}
	var out []AuditCheck
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// CriticalFailures returns failed checks graded critical.
func (r *AuditReport) CriticalFailures() []AuditCheck {
	if r == nil {
		return nil
	}
	var out []AuditCheck
	for _, c := range r.Checks {
		if !c.Passed && c.Severity == SeverityCritical {
			out = append(out, c)
		}
	}
	return out
}

// ActionableFailures returns failed checks worth feeding back to the
// extraction provider: critical and warning, not informational.
func (r *AuditReport) ActionableFailures() []AuditCheck {
	if r == nil {
		return nil
	}
	var out []AuditCheck
	for _, c := range r.Checks {
		if !c.Passed && c.Severity != SeverityInfo {
			out = append(out, c)
		}
	}
	return out
}

// WarningCount counts failed warning-grade checks.
func (r *AuditReport) WarningCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, c := range r.Checks {
		if !c.Passed && c.Severity == SeverityWarning {
			n++
		}
	}
	return n
}
