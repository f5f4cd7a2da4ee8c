package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType identifies the kind of financial document being processed.
type DocumentType string

const (
	DocTypeInvoice DocumentType = "invoice"
	DocTypeBill    DocumentType = "bill"
	DocTypeReceipt DocumentType = "receipt"
	DocTypeExpense DocumentType = "expense"
	DocTypeUnknown DocumentType = "unknown"
)

// AllDocumentTypes returns every known document type except unknown.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{DocTypeInvoice, DocTypeBill, DocTypeReceipt, DocTypeExpense}
}

// Classification is the document-type verdict produced before extraction.
type Classification struct {
	Type       DocumentType `json:"type"`
	Confidence float64      `json:"confidence"`
}

// Source identifies which extraction source produced a record.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceConsensus Source = "consensus"
)

// FieldSpan locates a field value in the source document text. Populated
// only when provenance capture is enabled.
type FieldSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// VATLine is one entry of a VAT breakdown: base amount taxed at a rate.
type VATLine struct {
	Base   decimal.Decimal `json:"base"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// LineItem is a single billed line on the document.
type LineItem struct {
	Description string           `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
}

// ExtractionRecord is one extraction attempt's view of a document. All
// financial fields are optional; amounts carry exact decimal values so that
// "100.00" and "100" compare equal. Records are immutable once produced.
type ExtractionRecord struct {
	DocumentNumber   string           `json:"document_number,omitempty"`
	IssueDate        *time.Time       `json:"issue_date,omitempty"`
	DueDate          *time.Time       `json:"due_date,omitempty"`
	Currency         string           `json:"currency,omitempty"`
	Subtotal         *decimal.Decimal `json:"subtotal,omitempty"`
	VATAmount        *decimal.Decimal `json:"vat_amount,omitempty"`
	Total            *decimal.Decimal `json:"total,omitempty"`
	VATRate          *decimal.Decimal `json:"vat_rate,omitempty"`
	SupplierName     string           `json:"supplier_name,omitempty"`
	SupplierVAT      string           `json:"supplier_vat,omitempty"`
	CustomerName     string           `json:"customer_name,omitempty"`
	CustomerVAT      string           `json:"customer_vat,omitempty"`
	IBAN             string           `json:"iban,omitempty"`
	PaymentReference string           `json:"payment_reference,omitempty"`
	VATBreakdown     []VATLine        `json:"vat_breakdown,omitempty"`
	LineItems        []LineItem       `json:"line_items,omitempty"`

	Confidence float64              `json:"confidence"`
	Source     Source               `json:"source"`
	Spans      map[string]FieldSpan `json:"spans,omitempty"`
}

// Canonical field names used across conflict and audit reporting.
const (
	FieldDocumentNumber   = "document_number"
	FieldIssueDate        = "issue_date"
	FieldDueDate          = "due_date"
	FieldCurrency         = "currency"
	FieldSubtotal         = "subtotal"
	FieldVATAmount        = "vat_amount"
	FieldTotal            = "total_amount"
	FieldVATRate          = "vat_rate"
	FieldSupplierName     = "supplier_name"
	FieldSupplierVAT      = "supplier_vat"
	FieldCustomerName     = "customer_name"
	FieldCustomerVAT      = "customer_vat"
	FieldIBAN             = "iban"
	FieldPaymentReference = "payment_reference"
	FieldVATBreakdown     = "vat_breakdown"
)

// EssentialFields returns the fields a document of the given type must carry
// for judgment to consider auto-approval at all.
func EssentialFields(dt DocumentType) []string {
	switch dt {
	case DocTypeInvoice:
		return []string{FieldTotal, FieldSupplierName, FieldIssueDate}
	case DocTypeBill:
		return []string{FieldTotal, FieldSupplierName, FieldIssueDate}
	case DocTypeReceipt:
		return []string{FieldTotal, FieldSupplierName}
	case DocTypeExpense:
		return []string{FieldTotal}
	default:
		return nil
	}
}

// HasField reports whether the named canonical field carries a value.
func (r *ExtractionRecord) HasField(field string) bool {
	if r == nil {
		return false
	}
	switch field {
	case FieldDocumentNumber:
		return r.DocumentNumber != ""
	case FieldIssueDate:
		return r.IssueDate != nil
	case FieldDueDate:
		return r.DueDate != nil
	case FieldCurrency:
		return r.Currency != ""
	case FieldSubtotal:
		return r.Subtotal != nil
	case FieldVATAmount:
		return r.VATAmount != nil
	case FieldTotal:
		return r.Total != nil
	case FieldVATRate:
		return r.VATRate != nil
	case FieldSupplierName:
		return r.SupplierName != ""
	case FieldSupplierVAT:
		return r.SupplierVAT != ""
	case FieldCustomerName:
		return r.CustomerName != ""
	case FieldCustomerVAT:
		return r.CustomerVAT != ""
	case FieldIBAN:
		return r.IBAN != ""
	case FieldPaymentReference:
		return r.PaymentReference != ""
	case FieldVATBreakdown:
		return len(r.VATBreakdown) > 0
	default:
		return false
	}
}
