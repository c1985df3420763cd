package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/feedscope/feedscope/pkg/config"
)

// Client talks to an OpenAI-compatible endpoint for classification,
// embeddings and summary generation. All calls share one rate limiter so
// concurrent pipeline workers can't stampede the provider.
type Client struct {
	client  *openai.Client
	config  config.LLMConfig
	limiter *rate.Limiter
}

// NewClient creates a model client from config
func NewClient(cfg config.LLMConfig) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// wait blocks until the rate limiter admits one more model call
func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}
