// Package pipeline contains the coordinator that drives a document through
// classification, ensemble extraction, consensus, audit, self-correction,
// and judgment, plus batch statistics.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fiscora/docaudit/internal/model"
	"github.com/fiscora/docaudit/pkg/anthropic"
)

// typeKeywords score document text toward a type. Dutch, French, and English
// forms, lowercased; matching is substring-based on the folded text.
var typeKeywords = map[model.DocumentType][]string{
	model.DocTypeInvoice: {
		"factuur", "invoice", "facture", "verkoopfactuur",
		"betalingsreferentie", "vervaldatum", "due date",
	},
	model.DocTypeBill: {
		"aankoopfactuur", "leveranciersfactuur", "purchase invoice",
		"te betalen aan", "payable to", "supplier invoice",
	},
	model.DocTypeReceipt: {
		"kasticket", "receipt", "ticket", "kassabon", "reçu",
		"btw incl", "incl. btw", "contant", "cash", "terminal",
	},
	model.DocTypeExpense: {
		"onkostennota", "expense report", "note de frais",
		"declaratie", "terugbetaling", "reimbursement",
	},
}

const classifySystemText = `You classify Belgian financial documents. Answer with one of: invoice, bill, receipt, expense, unknown.
An invoice is issued to a customer; a bill is received from a supplier; a receipt records a completed point-of-sale payment; an expense is an employee reimbursement claim.
Return only a valid JSON object.`

const classifyPromptTemplate = `Classify this document. Return {"type": "invoice" | "bill" | "receipt" | "expense" | "unknown", "confidence": <0.0-1.0>}

Document text:
%s`

// Classifier determines the document type, cheap heuristics first with an
// optional model fallback for ambiguous texts.
type Classifier struct {
	client anthropic.Client
	model  string

	// llmThreshold is the heuristic confidence below which the model
	// fallback is consulted (when a client is configured).
	llmThreshold float64
}

// NewClassifier creates a heuristic-only classifier.
func NewClassifier() *Classifier {
	return &Classifier{llmThreshold: 0.6}
}

// NewLLMClassifier creates a classifier that falls back to the model when
// the heuristics are unsure.
func NewLLMClassifier(client anthropic.Client, modelID string) *Classifier {
	return &Classifier{client: client, model: modelID, llmThreshold: 0.6}
}

// Classify determines the document type.
func (c *Classifier) Classify(ctx context.Context, docText string) model.Classification {
	heuristic := classifyByKeywords(docText)
	if heuristic.Confidence >= c.llmThreshold || c.client == nil {
		return heuristic
	}

	llm, err := c.classifyLLM(ctx, docText)
	if err != nil {
		zap.L().Warn("llm classification failed, keeping heuristic result", zap.Error(err))
		return heuristic
	}

	zap.L().Debug("llm classification used",
		zap.String("heuristic", string(heuristic.Type)),
		zap.String("llm", string(llm.Type)),
	)
	return llm
}

// classifyByKeywords scores each type by keyword hits. Confidence is the
// winning type's share of all hits, damped for low totals.
func classifyByKeywords(docText string) model.Classification {
	folded := strings.ToLower(docText)

	scores := make(map[model.DocumentType]int)
	total := 0
	for docType, keywords := range typeKeywords {
		for _, kw := range keywords {
			n := strings.Count(folded, kw)
			scores[docType] += n
			total += n
		}
	}

	if total == 0 {
		return model.Classification{Type: model.DocTypeUnknown, Confidence: 0}
	}

	best := model.DocTypeUnknown
	bestScore := 0
	for _, docType := range model.AllDocumentTypes() {
		if scores[docType] > bestScore {
			best = docType
			bestScore = scores[docType]
		}
	}

	confidence := float64(bestScore) / float64(total)
	// A single hit is weak evidence no matter how unanimous.
	if total < 3 {
		confidence *= 0.7
	}

	return model.Classification{Type: best, Confidence: confidence}
}

func (c *Classifier) classifyLLM(ctx context.Context, docText string) (model.Classification, error) {
	if len(docText) > 4000 {
		docText = docText[:4000]
	}

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 128,
		System:    []anthropic.SystemBlock{{Text: classifySystemText}},
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(classifyPromptTemplate, docText)},
		},
	})
	if err != nil {
		return model.Classification{}, eris.Wrap(err, "classify: model call")
	}

	var verdict struct {
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &verdict); err != nil {
		return model.Classification{}, eris.Wrap(err, "classify: parse verdict")
	}

	docType := model.DocumentType(verdict.Type)
	switch docType {
	case model.DocTypeInvoice, model.DocTypeBill, model.DocTypeReceipt, model.DocTypeExpense:
	default:
		docType = model.DocTypeUnknown
	}

	return model.Classification{Type: docType, Confidence: verdict.Confidence}, nil
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

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

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
