package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/fiscora/docaudit/internal/model"
)

// wireRecord is the JSON shape the extraction prompt asks for. Amounts arrive
// as strings or numbers depending on model mood, so every numeric field goes
// through json.Number-tolerant decoding.
type wireRecord struct {
	DocumentNumber   *string              `json:"document_number"`
	IssueDate        *string              `json:"issue_date"`
	DueDate          *string              `json:"due_date"`
	Currency         *string              `json:"currency"`
	Subtotal         *json.RawMessage     `json:"subtotal"`
	VATAmount        *json.RawMessage     `json:"vat_amount"`
	Total            *json.RawMessage     `json:"total"`
	VATRate          *json.RawMessage     `json:"vat_rate"`
	SupplierName     *string              `json:"supplier_name"`
	SupplierVAT      *string              `json:"supplier_vat"`
	CustomerName     *string              `json:"customer_name"`
	CustomerVAT      *string              `json:"customer_vat"`
	IBAN             *string              `json:"iban"`
	PaymentReference *string              `json:"payment_reference"`
	VATBreakdown     []wireVATLine        `json:"vat_breakdown"`
	LineItems        []wireLineItem       `json:"line_items"`
	Confidence       float64              `json:"confidence"`
	Spans            map[string]wireSpan  `json:"spans"`
}

type wireVATLine struct {
	Base   json.RawMessage `json:"base"`
	Rate   json.RawMessage `json:"rate"`
	Amount json.RawMessage `json:"amount"`
}

type wireLineItem struct {
	Description string           `json:"description"`
	Quantity    *json.RawMessage `json:"quantity"`
	UnitPrice   *json.RawMessage `json:"unit_price"`
	Amount      *json.RawMessage `json:"amount"`
}

type wireSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// parseRecord parses the model's JSON response into an ExtractionRecord.
func parseRecord(text string, source model.Source) (*model.ExtractionRecord, error) {
	cleaned := cleanJSON(text)

	var wire wireRecord
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, eris.Wrap(err, "parse record: unmarshal")
	}

	record := &model.ExtractionRecord{
		DocumentNumber:   strOrEmpty(wire.DocumentNumber),
		Currency:         strOrEmpty(wire.Currency),
		SupplierName:     strOrEmpty(wire.SupplierName),
		SupplierVAT:      strOrEmpty(wire.SupplierVAT),
		CustomerName:     strOrEmpty(wire.CustomerName),
		CustomerVAT:      strOrEmpty(wire.CustomerVAT),
		IBAN:             strOrEmpty(wire.IBAN),
		PaymentReference: strOrEmpty(wire.PaymentReference),
		Confidence:       clampUnit(wire.Confidence),
		Source:           source,
	}

	var err error
	if record.IssueDate, err = parseDate(wire.IssueDate); err != nil {
		return nil, eris.Wrap(err, "parse record: issue_date")
	}
	if record.DueDate, err = parseDate(wire.DueDate); err != nil {
		return nil, eris.Wrap(err, "parse record: due_date")
	}

	record.Subtotal = parseAmount(wire.Subtotal)
	record.VATAmount = parseAmount(wire.VATAmount)
	record.Total = parseAmount(wire.Total)
	record.VATRate = parseAmount(wire.VATRate)

	for _, line := range wire.VATBreakdown {
		base := parseAmount(&line.Base)
		rate := parseAmount(&line.Rate)
		amount := parseAmount(&line.Amount)
		if base == nil || rate == nil || amount == nil {
			continue
		}
		record.VATBreakdown = append(record.VATBreakdown, model.VATLine{
			Base:   *base,
			Rate:   *rate,
			Amount: *amount,
		})
	}

	for _, item := range wire.LineItems {
		record.LineItems = append(record.LineItems, model.LineItem{
			Description: item.Description,
			Quantity:    parseAmount(item.Quantity),
			UnitPrice:   parseAmount(item.UnitPrice),
			Amount:      parseAmount(item.Amount),
		})
	}

	if len(wire.Spans) > 0 {
		record.Spans = make(map[string]model.FieldSpan, len(wire.Spans))
		for field, span := range wire.Spans {
			record.Spans[field] = model.FieldSpan{Start: span.Start, End: span.End}
		}
	}

	return record, nil
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// parseAmount tolerates both `"123.45"` and `123.45` wire forms. Unparseable
// values become nil rather than failing the whole record.
func parseAmount(raw *json.RawMessage) *decimal.Decimal {
	if raw == nil || len(*raw) == 0 {
		return nil
	}
	s := strings.TrimSpace(string(*raw))
	if s == "null" || s == `""` || s == "" {
		return nil
	}
	s = strings.Trim(s, `"`)
	// Tolerate European decimal comma and stray currency symbols.
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9') && r != '.' && r != '-'
	})
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(*s))
	if err != nil {
		// Models occasionally emit full timestamps; accept and truncate.
		t, err = time.Parse(time.RFC3339, strings.TrimSpace(*s))
		if err != nil {
			return nil, eris.Errorf("unrecognized date %q", *s)
		}
	}
	t = t.UTC().Truncate(24 * time.Hour)
	return &t, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
