// Package claude provides a miniprompt.Backend for Anthropic's Claude models.
package claude

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miniprompt"
)

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature controls randomness in the output.
	Temperature float64

	// TopP controls diversity via nucleus sampling.
	TopP float64

	// MaxTokens limits the number of tokens to generate.
	MaxTokens int64
}

// Client is a client for the Claude API. It implements miniprompt.Backend.
type Client struct {
	// client is the underlying Claude client.
	client *anthropic.Client

	// defaultModel is the model to use for chat completions.
	// It can be overridden using WithModel option.
	defaultModel anthropic.Model

	// systemPrompt is prepended to every request when set.
	systemPrompt string

	// generation parameters
	params generationParameters
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model to use for chat completions.
// Default: anthropic.ModelClaude3_5SonnetLatest
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = anthropic.Model(modelName)
	}
}

// WithSystemPrompt sets the system prompt sent with every request.
func WithSystemPrompt(systemPrompt string) Option {
	return func(c *Client) {
		c.systemPrompt = systemPrompt
	}
}

// WithTemperature sets the temperature parameter for text generation.
// Range: 0.0 to 1.0
// Default: 0.7
func WithTemperature(temp float64) Option {
	return func(c *Client) {
		c.params.Temperature = temp
	}
}

// WithTopP sets the top_p parameter for text generation.
// Range: 0.0 to 1.0
// Default: 1.0
func WithTopP(topP float64) Option {
	return func(c *Client) {
		c.params.TopP = topP
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
// Default: 4096
func WithMaxTokens(maxTokens int64) Option {
	return func(c *Client) {
		c.params.MaxTokens = maxTokens
	}
}

// New creates a new client for the Claude API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	client := &Client{
		defaultModel: anthropic.ModelClaude3_5SonnetLatest,
		params: generationParameters{
			Temperature: 0.7,
			TopP:        1.0,
			MaxTokens:   4096,
		},
	}

	for _, option := range options {
		option(client)
	}

	newClient := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	client.client = &newClient

	return client, nil
}

// Generate sends the transcript and tool declarations to the Messages API and
// converts the result back. The client keeps no conversation state; the
// session resends the transcript each turn.
func (c *Client) Generate(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
	messages, err := convertMessages(transcript)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:       c.defaultModel,
		MaxTokens:   c.params.MaxTokens,
		Temperature: anthropic.Float(c.params.Temperature),
		TopP:        anthropic.Float(c.params.TopP),
		Messages:    messages,
	}
	if len(tools) > 0 {
		claudeTools := make([]anthropic.ToolUnionParam, len(tools))
		for i, tool := range tools {
			claudeTools[i] = convertTool(tool)
		}
		params.Tools = claudeTools
	}
	if c.systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.systemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create message")
	}

	return processResponse(resp), nil
}

// processResponse converts a Claude message to miniprompt.Response.
func processResponse(resp *anthropic.Message) *miniprompt.Response {
	response := &miniprompt.Response{}

	for _, content := range resp.Content {
		switch content.Type {
		case "text":
			response.Texts = append(response.Texts, content.Text)

		case "tool_use":
			response.ToolCalls = append(response.ToolCalls, miniprompt.ToolCall{
				ID:        content.ID,
				Name:      content.Name,
				Arguments: string(content.Input),
			})
		}
	}

	return response
}
