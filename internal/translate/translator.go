// Package translate converts a trial's technical text into plain language
// using Claude, with a deterministic local fallback when the model call
// fails or returns an invalid response.
package translate

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clinimatch/clinimatch/internal/model"
	"github.com/clinimatch/clinimatch/pkg/anthropic"
)

// Request carries one trial's technical text to the translator.
type Request struct {
	Title        string
	Criteria     string
	Description  string
	Compensation string
}

// Translator produces a plain-language translation for one trial.
type Translator interface {
	Translate(ctx context.Context, req Request) (*model.TrialTranslation, error)
}

// Options tunes the Claude-backed translator.
type Options struct {
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

type claudeTranslator struct {
	client anthropic.Client
	opts   Options
}

// New creates a Claude-backed Translator.
func New(client anthropic.Client, opts Options) Translator {
	if opts.Model == "" {
		opts.Model = "claude-haiku-4-5-20251001"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &claudeTranslator{client: client, opts: opts}
}

const systemPrompt = `You are a medical translator helping patients understand clinical trials. Your goal is to make complex medical information accessible to people without medical training. Use conversational, friendly language, avoid medical abbreviations and technical terms, and be encouraging but honest about requirements. If you're unsure about something, say so rather than guessing. Respond only with valid JSON, no additional text.`

// translationResponse is the strict schema the model must return. A response
// missing any of the four required fields is rejected.
type translationResponse struct {
	SimplifiedDescription   *string `json:"simplifiedDescription"`
	EligibilitySimplified   *string `json:"eligibilitySimplified"`
	TimeCommitment          *string `json:"timeCommitment"`
	KeyBenefits             *string `json:"keyBenefits"`
	CompensationExplanation *string `json:"compensationExplanation"`
}

func (c *claudeTranslator) Translate(ctx context.Context, req Request) (*model.TrialTranslation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	temp := 0.3
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		System:      systemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(req)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "translate: model call")
	}

	text := extractText(resp)
	if text == "" {
		return nil, eris.New("translate: empty model response")
	}

	var parsed translationResponse
	if err := json.Unmarshal([]byte(cleanJSON(text)), &parsed); err != nil {
		zap.L().Debug("translate: unparseable model response", zap.Error(err))
		return nil, eris.Wrap(err, "translate: parse response")
	}

	if err := parsed.validate(); err != nil {
		return nil, err
	}

	resp.Usage.LogCost(resp.Model, "translate")

	tr := &model.TrialTranslation{
		SimplifiedDescription: *parsed.SimplifiedDescription,
		EligibilitySimplified: *parsed.EligibilitySimplified,
		TimeCommitment:        *parsed.TimeCommitment,
		KeyBenefits:           *parsed.KeyBenefits,
	}
	if parsed.CompensationExplanation != nil {
		tr.CompensationExplanation = *parsed.CompensationExplanation
	}
	return tr, nil
}

func (r *translationResponse) validate() error {
	required := map[string]*string{
		"simplifiedDescription": r.SimplifiedDescription,
		"eligibilitySimplified": r.EligibilitySimplified,
		"timeCommitment":        r.TimeCommitment,
		"keyBenefits":           r.KeyBenefits,
	}
	for field, val := range required {
		if val == nil || strings.TrimSpace(*val) == "" {
			return eris.Errorf("translate: response missing required field %s", field)
		}
	}
	return nil
}

func buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Please translate the following clinical trial information into plain, conversational English:\n\n")
	sb.WriteString("Title: " + req.Title + "\n")
	sb.WriteString("Eligibility Criteria: " + req.Criteria + "\n")
	sb.WriteString("Study Description: " + req.Description + "\n")
	if req.Compensation != "" {
		sb.WriteString("Compensation: " + req.Compensation + "\n")
	}
	sb.WriteString(`
Provide your response as a JSON object with exactly these fields:
- "simplifiedDescription": A 2-3 sentence explanation in plain English that a high school graduate could understand
- "eligibilitySimplified": Key requirements without medical jargon, focusing on the most important criteria
- "timeCommitment": Expected time investment for participants (visits, duration, etc.)
- "keyBenefits": What participants might gain from the study (compensation, free treatment, etc.)
- "compensationExplanation": If compensation is mentioned, explain it clearly (or null if not applicable)
`)
	return sb.String()
}

// extractText concatenates all text content blocks.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "" || b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
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
