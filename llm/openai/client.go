// Package openai provides a miniprompt.Backend for the OpenAI chat
// completions API and for OpenAI-compatible endpoints such as OpenRouter.
package openai

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miniprompt"
	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is used when no model is given via WithModel.
	DefaultModel = "gpt-4o"
)

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature controls randomness in the output.
	Temperature float32

	// TopP controls diversity via nucleus sampling.
	TopP float32

	// MaxTokens limits the number of tokens to generate.
	MaxTokens int
}

// Client is a client for the OpenAI API. It implements miniprompt.Backend.
type Client struct {
	// client is the underlying OpenAI client.
	client *openai.Client

	// defaultModel is the model to use for chat completions.
	// It can be overridden using WithModel option.
	defaultModel string

	// baseURL is the custom base URL for the OpenAI API. If empty, the
	// default OpenAI endpoints are used.
	baseURL string

	// systemPrompt is prepended to every request when set.
	systemPrompt string

	// generation parameters
	params generationParameters
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model to use for chat completions.
// See default model in [DefaultModel].
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithBaseURL sets a custom API endpoint. Use this to talk to
// OpenAI-compatible providers, e.g. "https://openrouter.ai/api/v1".
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithSystemPrompt sets the system prompt sent with every request.
func WithSystemPrompt(systemPrompt string) Option {
	return func(c *Client) {
		c.systemPrompt = systemPrompt
	}
}

// WithTemperature sets the temperature parameter for text generation.
// Range: 0.0 to 2.0
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.params.Temperature = temp
	}
}

// WithTopP sets the top_p parameter for text generation.
// Range: 0.0 to 1.0
func WithTopP(topP float32) Option {
	return func(c *Client) {
		c.params.TopP = topP
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		c.params.MaxTokens = maxTokens
	}
}

// New creates a new client for the OpenAI API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	client := &Client{
		defaultModel: DefaultModel,
	}

	for _, option := range options {
		option(client)
	}

	config := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		config.BaseURL = client.baseURL
	}
	client.client = openai.NewClientWithConfig(config)

	return client, nil
}

// Generate sends the transcript and tool declarations to the chat completions
// API and converts the result back.
func (c *Client) Generate(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
	messages, err := convertMessages(transcript)
	if err != nil {
		return nil, err
	}
	if c.systemPrompt != "" {
		messages = append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.systemPrompt,
		}}, messages...)
	}

	req := openai.ChatCompletionRequest{
		Model:       c.defaultModel,
		Messages:    messages,
		Temperature: c.params.Temperature,
		TopP:        c.params.TopP,
		MaxTokens:   c.params.MaxTokens,
	}
	if len(tools) > 0 {
		openaiTools := make([]openai.Tool, len(tools))
		for i, tool := range tools {
			openaiTools[i] = convertTool(tool)
		}
		req.Tools = openaiTools
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat completion")
	}

	if len(resp.Choices) == 0 {
		return &miniprompt.Response{}, nil
	}

	return processMessage(resp.Choices[0].Message), nil
}

// processMessage converts an OpenAI assistant message to miniprompt.Response.
func processMessage(message openai.ChatCompletionMessage) *miniprompt.Response {
	response := &miniprompt.Response{}

	if message.Content != "" {
		response.Texts = append(response.Texts, message.Content)
	}

	for _, toolCall := range message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, miniprompt.ToolCall{
			ID:        toolCall.ID,
			Name:      toolCall.Function.Name,
			Arguments: toolCall.Function.Arguments,
		})
	}

	return response
}
