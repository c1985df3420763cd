package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/sashabaranov/go-openai"
)

// FallbackSummary is returned when the generative summary fails. The caller
// still gets locally computed counts, so a degraded summary is usable.
const FallbackSummary = "Unable to generate summary."

const summarizeSystemPrompt = `You are a product feedback analyst writing an executive summary.

Given a list of recent feedback items, respond with a single JSON object:
{
  "summary": "<2-3 sentence overview of the overall feedback picture>",
  "themes": ["<theme 1>", "<theme 2>", "<theme 3>"]
}

Keep themes short (2-4 words each). Mention concrete problems over vague moods.`

// Summarize produces a free-text rollup and top themes for a set of feedback
// lines. Best effort: any failure yields the fixed fallback text and nil
// themes, never an error.
func (c *Client) Summarize(ctx context.Context, items []string) (summary string, themes []string) {
	if len(items) == 0 {
		return FallbackSummary, nil
	}

	if err := c.wait(ctx); err != nil {
		lgr.Printf("[WARN] summary rate limit wait aborted: %v", err)
		return FallbackSummary, nil
	}

	reqCtx := ctx
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
	}

	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: float32(c.config.Temperature),
		MaxTokens:   c.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarizeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	}
	if c.config.UseJSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(reqCtx, req)
	if err != nil {
		lgr.Printf("[WARN] summary request failed: %v", err)
		return FallbackSummary, nil
	}
	if len(resp.Choices) == 0 {
		lgr.Printf("[WARN] summary returned no choices")
		return FallbackSummary, nil
	}

	var parsed struct {
		Summary string   `json:"summary"`
		Themes  []string `json:"themes"`
	}
	jsonStr := extractJSON(resp.Choices[0].Message.Content)
	if jsonStr == "" {
		lgr.Printf("[WARN] no json object in summary response")
		return FallbackSummary, nil
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		lgr.Printf("[WARN] can't parse summary response: %v", err)
		return FallbackSummary, nil
	}
	if parsed.Summary == "" {
		return FallbackSummary, parsed.Themes
	}
	return parsed.Summary, parsed.Themes
}
