// Package extract turns raw document text into structured extraction records
// using Anthropic models. Two providers over different models form the
// ensemble; the consensus resolver reconciles their records.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fiscora/docaudit/internal/model"
	"github.com/fiscora/docaudit/internal/resilience"
	"github.com/fiscora/docaudit/pkg/anthropic"
)

// Provider produces one extraction record from document text. The feedback
// argument carries correction guidance from a previous audit; it is empty on
// the first attempt.
type Provider interface {
	Extract(ctx context.Context, docText string, docType model.DocumentType, feedback string) (*model.ExtractionRecord, error)
	Source() model.Source
}

const extractSystemText = `You are a financial document data extractor for Belgian accounting documents.
Extract the requested fields from the document text exactly as they appear, normalizing only formats (dates to YYYY-MM-DD, amounts to plain decimal numbers without thousand separators).
Use null for any field not present in the document. Never guess or fabricate values.
Return only a valid JSON object matching the schema.`

const extractPromptTemplate = `Document type: %s

Extract the following fields from the document below. Return a valid JSON object:
{
  "document_number": <string or null>,
  "issue_date": <"YYYY-MM-DD" or null>,
  "due_date": <"YYYY-MM-DD" or null>,
  "currency": <ISO 4217 code or null>,
  "subtotal": <decimal string or null>,
  "vat_amount": <decimal string or null>,
  "total": <decimal string or null>,
  "vat_rate": <decimal string or null>,
  "supplier_name": <string or null>,
  "supplier_vat": <string or null>,
  "customer_name": <string or null>,
  "customer_vat": <string or null>,
  "iban": <string or null>,
  "payment_reference": <string or null>,
  "vat_breakdown": [{"base": <decimal string>, "rate": <decimal string>, "amount": <decimal string>}] or null,
  "line_items": [{"description": <string>, "quantity": <decimal string or null>, "unit_price": <decimal string or null>, "amount": <decimal string or null>}] or null,
  "confidence": <0.0-1.0>
}
%s
Document text:
%s`

// provenanceInstruction is appended when span capture is on.
const provenanceInstruction = `
Also include a "spans" object mapping each extracted field name to {"start": <offset>, "end": <offset>} character offsets into the document text.
`

// AnthropicProvider extracts records by calling one Anthropic model.
type AnthropicProvider struct {
	client     anthropic.Client
	model      string
	source     model.Source
	limiter    *rate.Limiter
	retryCfg   resilience.RetryConfig
	provenance bool
	maxTokens  int64
}

// ProviderOption configures an AnthropicProvider.
type ProviderOption func(*AnthropicProvider)

// WithProvenance enables per-field source span capture.
func WithProvenance(on bool) ProviderOption {
	return func(p *AnthropicProvider) { p.provenance = on }
}

// WithRetryConfig overrides the default retry configuration.
func WithRetryConfig(cfg resilience.RetryConfig) ProviderOption {
	return func(p *AnthropicProvider) { p.retryCfg = cfg }
}

// NewAnthropicProvider creates a provider over the given model. The limiter
// is shared between providers so the ensemble stays under the account rate.
func NewAnthropicProvider(client anthropic.Client, modelID string, source model.Source, limiter *rate.Limiter, opts ...ProviderOption) *AnthropicProvider {
	p := &AnthropicProvider{
		client:    client,
		model:     modelID,
		source:    source,
		limiter:   limiter,
		retryCfg:  resilience.DefaultRetryConfig(),
		maxTokens: 2048,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.retryCfg.OnRetry = resilience.RetryLogger("anthropic", "extract")
	return p
}

// Source returns which ensemble slot this provider fills.
func (p *AnthropicProvider) Source() model.Source {
	return p.source
}

// Extract runs one extraction attempt. Rate limiting and transient-error
// retries happen here; the caller sees only the final outcome.
func (p *AnthropicProvider) Extract(ctx context.Context, docText string, docType model.DocumentType, feedback string) (*model.ExtractionRecord, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "extract: rate limiter")
		}
	}

	prompt := p.buildPrompt(docText, docType, feedback)
	start := time.Now()

	resp, err := resilience.DoVal(ctx, p.retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     p.model,
			MaxTokens: p.maxTokens,
			System:    []anthropic.SystemBlock{{Text: extractSystemText}},
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s model call", p.source)
	}

	resp.Usage.LogCost(p.model, "extract")

	record, err := parseRecord(resp.Text(), p.source)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s parse response", p.source)
	}
	if !p.provenance {
		record.Spans = nil
	}

	zap.L().Debug("extraction attempt complete",
		zap.String("source", string(p.source)),
		zap.String("model", p.model),
		zap.Float64("confidence", record.Confidence),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return record, nil
}

func (p *AnthropicProvider) buildPrompt(docText string, docType model.DocumentType, feedback string) string {
	extra := ""
	if p.provenance {
		extra = provenanceInstruction
	}
	prompt := fmt.Sprintf(extractPromptTemplate, docType, extra, docText)
	if feedback != "" {
		prompt += "\n\n" + feedback
	}
	return prompt
}
