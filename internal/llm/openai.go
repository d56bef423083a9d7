package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements TextGenerator using the official OpenAI SDK's
// Chat Completions API.
type OpenAIClient struct {
	client         *openai.Client
	circuitBreaker *CircuitBreaker
	model          string
}

// OpenAIConfig holds OpenAI client configuration.
type OpenAIConfig struct {
	// APIKey authenticates against the API. Falls back to OPENAI_API_KEY
	// when empty (SDK default behavior).
	APIKey string

	// Model is the chat model name (default: gpt-4o-mini).
	Model string

	// BaseURL overrides the API endpoint (for proxies / compatible servers).
	BaseURL string
}

// NewOpenAIClient creates an OpenAI completion client.
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	var opts []option.RequestOption
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Model == "" {
		config.Model = openai.ChatModelGPT4oMini
	}

	client := openai.NewClient(opts...)

	return &OpenAIClient{
		client:         &client,
		circuitBreaker: NewCircuitBreaker(),
		model:          config.Model,
	}
}

// Complete sends the prompt as a single user message and returns the first
// choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: c.model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("openai completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("openai returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// GetModel returns the configured model name.
func (c *OpenAIClient) GetModel() string {
	return c.model
}

var _ TextGenerator = (*OpenAIClient)(nil)

// OpenAIEmbeddingClient implements EmbeddingGenerator using the OpenAI
// Embeddings API.
type OpenAIEmbeddingClient struct {
	client         *openai.Client
	circuitBreaker *CircuitBreaker
	model          string
	dimensions     int
}

// OpenAIEmbeddingConfig holds OpenAI embedding client configuration.
type OpenAIEmbeddingConfig struct {
	APIKey  string
	BaseURL string

	// Model is the embedding model name (default: text-embedding-3-small).
	Model string

	// Dimensions optionally requests reduced-dimension embeddings, which
	// text-embedding-3 models support. Zero keeps the model default.
	Dimensions int
}

// NewOpenAIEmbeddingClient creates an OpenAI embedding client.
func NewOpenAIEmbeddingClient(config OpenAIEmbeddingConfig) *OpenAIEmbeddingClient {
	var opts []option.RequestOption
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Model == "" {
		config.Model = string(openai.EmbeddingModelTextEmbedding3Small)
	}

	client := openai.NewClient(opts...)

	return &OpenAIEmbeddingClient{
		client:         &client,
		circuitBreaker: NewCircuitBreaker(),
		model:          config.Model,
		dimensions:     config.Dimensions,
	}
}

// Embed returns the embedding vector for text.
func (c *OpenAIEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		params := openai.EmbeddingNewParams{
			Model: c.model,
			Input: openai.EmbeddingNewParamsInputUnion{
				OfString: openai.String(text),
			},
		}
		if c.dimensions > 0 {
			params.Dimensions = openai.Int(int64(c.dimensions))
		}

		resp, err := c.client.Embeddings.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("openai embedding: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("openai returned no embedding data")
		}

		vec := make([]float32, len(resp.Data[0].Embedding))
		for i, v := range resp.Data[0].Embedding {
			vec[i] = float32(v)
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]float32), nil
}

// GetModel returns the configured model name.
func (c *OpenAIEmbeddingClient) GetModel() string {
	return c.model
}

var _ EmbeddingGenerator = (*OpenAIEmbeddingClient)(nil)
