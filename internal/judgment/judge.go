package judgment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fiscora/docaudit/internal/config"
	"github.com/fiscora/docaudit/internal/model"
	"github.com/fiscora/docaudit/pkg/anthropic"
)

// Judge is the optional probabilistic second opinion for ambiguous cases.
type Judge interface {
	Review(ctx context.Context, in Input, deterministic *model.JudgmentDecision) (*model.JudgmentDecision, error)
}

// AllowJudge is the autonomy-gate predicate: the probabilistic judge may
// only run outside assisted mode.
func AllowJudge(autonomyLevel string) bool {
	return autonomyLevel != config.AutonomyAssisted && autonomyLevel != ""
}

// ApplyJudge consults the judge when the gate allows it. Only deterministic
// NEEDS_REVIEW cases are eligible, and the judge can never upgrade a
// deterministic REJECT. Judge failures keep the deterministic verdict.
func ApplyJudge(ctx context.Context, judge Judge, autonomyLevel string, in Input, deterministic *model.JudgmentDecision) *model.JudgmentDecision {
	if judge == nil || !AllowJudge(autonomyLevel) {
		return deterministic
	}
	if deterministic.Outcome != model.OutcomeNeedsReview {
		return deterministic
	}

	reviewed, err := judge.Review(ctx, in, deterministic)
	if err != nil {
		zap.L().Warn("probabilistic judge failed, keeping deterministic verdict", zap.Error(err))
		return deterministic
	}
	return reviewed
}

const judgeSystemText = `You are a financial compliance reviewer deciding whether an extracted document needs human review.
The deterministic rules flagged this document for review. Decide whether the flagged issues are substantive enough to hold it, or benign enough to approve.
You may answer auto_approve, needs_review, or reject. Return only a valid JSON object.`

const judgePromptTemplate = `Document type: %s
Extraction confidence: %.2f

Deterministic verdict: needs_review
Reason: %s
Issues:
%s

Extracted record:
%s

Return a JSON object: {"outcome": "auto_approve" | "needs_review" | "reject", "reasoning": "<one or two sentences>"}`

// AnthropicJudge implements Judge over one Anthropic model.
type AnthropicJudge struct {
	client anthropic.Client
	model  string
}

// NewAnthropicJudge creates a probabilistic judge.
func NewAnthropicJudge(client anthropic.Client, modelID string) *AnthropicJudge {
	return &AnthropicJudge{client: client, model: modelID}
}

// Review asks the model for a second opinion on a needs-review case.
func (j *AnthropicJudge) Review(ctx context.Context, in Input, deterministic *model.JudgmentDecision) (*model.JudgmentDecision, error) {
	recordJSON, err := json.MarshalIndent(in.Record, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "judge: marshal record")
	}

	issues := "- none listed"
	if len(deterministic.Issues) > 0 {
		issues = "- " + strings.Join(deterministic.Issues, "\n- ")
	}

	prompt := fmt.Sprintf(judgePromptTemplate,
		in.DocType, in.Confidence, deterministic.Reasoning, issues, recordJSON)

	resp, err := j.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     j.model,
		MaxTokens: 512,
		System:    []anthropic.SystemBlock{{Text: judgeSystemText}},
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "judge: create message")
	}
	resp.Usage.LogCost(j.model, "judge")

	var verdict struct {
		Outcome   string `json:"outcome"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &verdict); err != nil {
		return nil, eris.Wrap(err, "judge: parse verdict")
	}

	outcome := model.Outcome(verdict.Outcome)
	switch outcome {
	case model.OutcomeAutoApprove, model.OutcomeNeedsReview, model.OutcomeReject:
	default:
		return nil, eris.Errorf("judge: unrecognized outcome %q", verdict.Outcome)
	}

	reviewed := *deterministic
	reviewed.Outcome = outcome
	reviewed.Reasoning = fmt.Sprintf("%s (probabilistic review: %s)", deterministic.Reasoning, verdict.Reasoning)
	if outcome == model.OutcomeAutoApprove {
		reviewed.Issues = nil
	}

	zap.L().Info("probabilistic judge verdict",
		zap.String("deterministic", string(deterministic.Outcome)),
		zap.String("reviewed", string(outcome)),
	)

	return &reviewed, nil
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
