package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/sashabaranov/go-openai"

	"github.com/feedscope/feedscope/pkg/domain"
)

// system prompt for feedback classification. The schema in the prompt is the
// wire contract; ParseVerdict tolerates deviations from it.
const classifySystemPrompt = `You are a product feedback analyst. Classify the feedback item you are given.

Respond with a single JSON object, no prose, no markdown:
{
  "sentiment_score": <number from -1.0 (very negative) to 1.0 (very positive)>,
  "sentiment_label": "positive" | "negative" | "neutral",
  "category": "bug" | "feature_request" | "ux_issue" | "performance" | "documentation" | "pricing" | "praise" | "other",
  "priority": "critical" | "high" | "medium" | "low"
}

Guidelines:
- "critical" is reserved for data loss, security problems and total breakage.
- Praise with a feature wish inside is a feature_request, not praise.
- When the category is unclear, use "other"; when the urgency is unclear, use "medium".`

// Classify sends one feedback item to the model and returns a normalized
// verdict. Classification never fails the caller: transport errors, empty
// responses and unparseable output all degrade to the default verdict, which
// is a valid terminal answer. Problems are logged, not returned.
func (c *Client) Classify(ctx context.Context, title, content string) domain.Verdict {
	if err := c.wait(ctx); err != nil {
		lgr.Printf("[WARN] classify rate limit wait aborted: %v", err)
		return domain.DefaultVerdict()
	}

	reqCtx := ctx
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: float32(c.config.Temperature),
		MaxTokens:   c.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: classifyPrompt(title, content)},
		},
	}

	if c.config.UseJSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(reqCtx, req)
	if err != nil {
		lgr.Printf("[WARN] classification request failed, using default verdict: %v", err)
		return domain.DefaultVerdict()
	}
	if len(resp.Choices) == 0 {
		lgr.Printf("[WARN] classification returned no choices, using default verdict")
		return domain.DefaultVerdict()
	}

	verdict, err := ParseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		lgr.Printf("[WARN] can't parse classification response, using default verdict: %v", err)
		return verdict
	}

	lgr.Printf("[DEBUG] classified feedback in %v: %s/%s/%s score=%.2f",
		time.Since(start), verdict.SentimentLabel, verdict.Category, verdict.Priority, verdict.SentimentScore)
	return verdict
}

func classifyPrompt(title, content string) string {
	if title == "" {
		return fmt.Sprintf("Feedback:\n%s", content)
	}
	return fmt.Sprintf("Title: %s\n\nFeedback:\n%s", title, content)
}
