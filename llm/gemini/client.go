// Package gemini provides a miniprompt.Backend for Gemini models on
// Vertex AI.
package gemini

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/vertexai/genai"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miniprompt"
	"google.golang.org/api/option"
)

const (
	// DefaultModel is used when no model is given via WithModel.
	DefaultModel = "gemini-1.5-flash"
)

// Client is a client for the Gemini API. It implements miniprompt.Backend.
type Client struct {
	projectID string
	location  string

	// client is the underlying Gemini client.
	client *genai.Client

	// defaultModel is the model to use for chat completions.
	// It can be overridden using WithModel option.
	defaultModel string

	// gcpOptions are additional options for Google Cloud Platform.
	gcpOptions []option.ClientOption

	// systemPrompt is the system instruction to use for chat completions.
	systemPrompt string

	temperature *float32
	topP        *float32
	maxTokens   *int32
}

// Option is a configuration option for the Gemini client.
type Option func(*Client)

// WithModel sets the model to use for text generation.
// See default model in [DefaultModel].
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithGoogleCloudOptions sets additional Google Cloud options.
// These can include authentication credentials, endpoint overrides, etc.
func WithGoogleCloudOptions(opts ...option.ClientOption) Option {
	return func(c *Client) {
		c.gcpOptions = append(c.gcpOptions, opts...)
	}
}

// WithSystemPrompt sets the system instruction for chat completions.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

// WithTemperature sets the temperature parameter for text generation.
// Range: 0.0 to 2.0
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.temperature = &temp
	}
}

// WithTopP sets the top_p parameter for text generation.
// Range: 0.0 to 1.0
func WithTopP(topP float32) Option {
	return func(c *Client) {
		c.topP = &topP
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int32) Option {
	return func(c *Client) {
		c.maxTokens = &maxTokens
	}
}

// New creates a new client for the Gemini API.
// It requires a project ID and location, and can be configured with
// additional options.
func New(ctx context.Context, projectID, location string, options ...Option) (*Client, error) {
	if projectID == "" {
		return nil, goerr.New("projectID is required")
	}
	if location == "" {
		return nil, goerr.New("location is required")
	}

	client := &Client{
		projectID:    projectID,
		location:     location,
		defaultModel: DefaultModel,
	}

	for _, option := range options {
		option(client)
	}

	newClient, err := genai.NewClient(ctx, projectID, location, client.gcpOptions...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}
	client.client = newClient

	return client, nil
}

// Generate sends the transcript and tool declarations to the Gemini API and
// converts the result back. Gemini does not issue call IDs, so tool calls
// are identified by function name.
func (c *Client) Generate(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
	if len(transcript) == 0 {
		return nil, goerr.Wrap(miniprompt.ErrInvalidParameter, "transcript is empty")
	}

	model := c.client.GenerativeModel(c.defaultModel)
	if c.temperature != nil {
		model.SetTemperature(*c.temperature)
	}
	if c.topP != nil {
		model.SetTopP(*c.topP)
	}
	if c.maxTokens != nil {
		model.SetMaxOutputTokens(*c.maxTokens)
	}
	if c.systemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(c.systemPrompt)},
		}
	}

	if len(tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, len(tools))
		for i, tool := range tools {
			declarations[i] = convertTool(tool)
		}
		model.Tools = []*genai.Tool{
			{FunctionDeclarations: declarations},
		}
	}

	contents, err := convertMessages(transcript)
	if err != nil {
		return nil, err
	}

	// The chat session carries everything but the last message as history.
	// The last message is sent as the new turn.
	chat := model.StartChat()
	chat.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}

	return processResponse(resp)
}

// processResponse converts a Gemini response to miniprompt.Response.
func processResponse(resp *genai.GenerateContentResponse) (*miniprompt.Response, error) {
	response := &miniprompt.Response{}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				response.Texts = append(response.Texts, string(v))

			case genai.FunctionCall:
				args, err := json.Marshal(v.Args)
				if err != nil {
					return nil, goerr.Wrap(err, "failed to marshal function call arguments", goerr.V("name", v.Name))
				}
				response.ToolCalls = append(response.ToolCalls, miniprompt.ToolCall{
					ID:        v.Name,
					Name:      v.Name,
					Arguments: string(args),
				})
			}
		}
	}

	return response, nil
}
