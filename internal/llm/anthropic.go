package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements TextGenerator using the official Anthropic SDK's
// Messages API. Anthropic has no embeddings endpoint, so this client only
// serves the completion boundary.
type AnthropicClient struct {
	client         *anthropic.Client
	circuitBreaker *CircuitBreaker
	model          anthropic.Model
	maxTokens      int64
}

// AnthropicConfig holds Anthropic client configuration.
type AnthropicConfig struct {
	// APIKey authenticates against the API. Falls back to ANTHROPIC_API_KEY
	// when empty (SDK default behavior).
	APIKey string

	// Model is the model name (default: claude-3-5-sonnet-20241022).
	Model string

	// MaxTokens caps response length (default: 4096).
	MaxTokens int64
}

// NewAnthropicClient creates an Anthropic completion client.
func NewAnthropicClient(config AnthropicConfig) *AnthropicClient {
	var opts []option.RequestOption
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}

	model := anthropic.Model(config.Model)
	if config.Model == "" {
		model = anthropic.ModelClaude3_5Sonnet20241022
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicClient{
		client:         &client,
		circuitBreaker: NewCircuitBreaker(),
		model:          model,
		maxTokens:      maxTokens,
	}
}

// Complete sends the prompt as a single user message and returns the
// concatenated text blocks of the response.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic completion: %w", err)
		}

		var sb strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		return sb.String(), nil
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return string(c.model)
}

var _ TextGenerator = (*AnthropicClient)(nil)
