// Package genai generates marketing copy for catalog listings using the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"os"

	"github.com/fusioncars/dealerbot/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// systemPrompt frames every description request.
const systemPrompt = "You are a copywriter for a premium used-car dealership. " +
	"Write a short, factual, enthusiastic listing description (3-4 sentences) for the car the user describes. " +
	"Do not invent features that are not mentioned."

// ChatCompleter is the minimal chat interface used by the client (for mocks).
type ChatCompleter interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  ChatCompleter
	model openai.ChatModel
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding the environment.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// NewClient initializes a GenAI client. The API key comes from options or,
// failing that, the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: &cli.Chat.Completions, model: openai.ChatModelGPT4oMini}, nil
}

// NewClientWithCompleter builds a client around an injected completer (for tests).
func NewClientWithCompleter(chat ChatCompleter) *Client {
	return &Client{chat: chat, model: openai.ChatModelGPT4oMini}
}

// DescribeCar generates a listing description for the given car.
func (c *Client) DescribeCar(ctx context.Context, car models.Car) (string, error) {
	userPrompt := fmt.Sprintf(
		"%d %s, %s, %d km driven, %s transmission, %s, %d previous owner(s), priced at ₹%d.",
		car.Year, car.Name, car.FuelType, car.KmsDriven, car.Transmission, car.Color, car.Owners, car.Price,
	)

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
