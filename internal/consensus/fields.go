package consensus

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fiscora/docaudit/internal/model"
)

// fieldDef gives the resolver typed access to one canonical field without
// reflection. The table below covers every comparable field of the record;
// line items ride along with the chosen record and are not compared.
type fieldDef struct {
	name     string
	present  func(r *model.ExtractionRecord) bool
	equal    func(a, b *model.ExtractionRecord) bool
	display  func(r *model.ExtractionRecord) string
	copyInto func(dst, src *model.ExtractionRecord)
	clear    func(r *model.ExtractionRecord)
}

func stringField(name string, get func(r *model.ExtractionRecord) *string, norm func(string) string) fieldDef {
	return fieldDef{
		name:    name,
		present: func(r *model.ExtractionRecord) bool { return *get(r) != "" },
		equal: func(a, b *model.ExtractionRecord) bool {
			return norm(*get(a)) == norm(*get(b))
		},
		display:  func(r *model.ExtractionRecord) string { return *get(r) },
		copyInto: func(dst, src *model.ExtractionRecord) { *get(dst) = *get(src) },
		clear:    func(r *model.ExtractionRecord) { *get(r) = "" },
	}
}

func decimalField(name string, get func(r *model.ExtractionRecord) **decimal.Decimal) fieldDef {
	return fieldDef{
		name:    name,
		present: func(r *model.ExtractionRecord) bool { return *get(r) != nil },
		equal: func(a, b *model.ExtractionRecord) bool {
			return (*get(a)).Equal(**get(b))
		},
		display: func(r *model.ExtractionRecord) string {
			if v := *get(r); v != nil {
				return v.String()
			}
			return ""
		},
		copyInto: func(dst, src *model.ExtractionRecord) { *get(dst) = *get(src) },
		clear:    func(r *model.ExtractionRecord) { *get(r) = nil },
	}
}

func dateField(name string, get func(r *model.ExtractionRecord) **time.Time) fieldDef {
	return fieldDef{
		name:    name,
		present: func(r *model.ExtractionRecord) bool { return *get(r) != nil },
		equal: func(a, b *model.ExtractionRecord) bool {
			ya, ma, da := (*get(a)).Date()
			yb, mb, db := (*get(b)).Date()
			return ya == yb && ma == mb && da == db
		},
		display: func(r *model.ExtractionRecord) string {
			if v := *get(r); v != nil {
				return v.Format("2006-01-02")
			}
			return ""
		},
		copyInto: func(dst, src *model.ExtractionRecord) { *get(dst) = *get(src) },
		clear:    func(r *model.ExtractionRecord) { *get(r) = nil },
	}
}

// breakdownField compares VAT breakdowns entry-wise.
func breakdownField() fieldDef {
	return fieldDef{
		name:    model.FieldVATBreakdown,
		present: func(r *model.ExtractionRecord) bool { return len(r.VATBreakdown) > 0 },
		equal: func(a, b *model.ExtractionRecord) bool {
			if len(a.VATBreakdown) != len(b.VATBreakdown) {
				return false
			}
			for i := range a.VATBreakdown {
				la, lb := a.VATBreakdown[i], b.VATBreakdown[i]
				if !la.Base.Equal(lb.Base) || !la.Rate.Equal(lb.Rate) || !la.Amount.Equal(lb.Amount) {
					return false
				}
			}
			return true
		},
		display: func(r *model.ExtractionRecord) string {
			out := ""
			for i, l := range r.VATBreakdown {
				if i > 0 {
					out += "; "
				}
				out += l.Base.String() + "@" + l.Rate.String() + "%=" + l.Amount.String()
			}
			return out
		},
		copyInto: func(dst, src *model.ExtractionRecord) { dst.VATBreakdown = src.VATBreakdown },
		clear:    func(r *model.ExtractionRecord) { r.VATBreakdown = nil },
	}
}

// fieldDefs is the comparison order; it also fixes the order of conflicts in
// the report.
var fieldDefs = []fieldDef{
	stringField(model.FieldDocumentNumber, func(r *model.ExtractionRecord) *string { return &r.DocumentNumber }, normIdent),
	dateField(model.FieldIssueDate, func(r *model.ExtractionRecord) **time.Time { return &r.IssueDate }),
	dateField(model.FieldDueDate, func(r *model.ExtractionRecord) **time.Time { return &r.DueDate }),
	stringField(model.FieldCurrency, func(r *model.ExtractionRecord) *string { return &r.Currency }, normIdent),
	decimalField(model.FieldSubtotal, func(r *model.ExtractionRecord) **decimal.Decimal { return &r.Subtotal }),
	decimalField(model.FieldVATAmount, func(r *model.ExtractionRecord) **decimal.Decimal { return &r.VATAmount }),
	decimalField(model.FieldTotal, func(r *model.ExtractionRecord) **decimal.Decimal { return &r.Total }),
	decimalField(model.FieldVATRate, func(r *model.ExtractionRecord) **decimal.Decimal { return &r.VATRate }),
	stringField(model.FieldSupplierName, func(r *model.ExtractionRecord) *string { return &r.SupplierName }, normText),
	stringField(model.FieldSupplierVAT, func(r *model.ExtractionRecord) *string { return &r.SupplierVAT }, normIdent),
	stringField(model.FieldCustomerName, func(r *model.ExtractionRecord) *string { return &r.CustomerName }, normText),
	stringField(model.FieldCustomerVAT, func(r *model.ExtractionRecord) *string { return &r.CustomerVAT }, normIdent),
	stringField(model.FieldIBAN, func(r *model.ExtractionRecord) *string { return &r.IBAN }, normIdent),
	stringField(model.FieldPaymentReference, func(r *model.ExtractionRecord) *string { return &r.PaymentReference }, normIdent),
	breakdownField(),
}
