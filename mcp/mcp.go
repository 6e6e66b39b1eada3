// Package mcp connects Model Context Protocol servers as tool providers.
// Tools exposed by an MCP server are converted to miniprompt.ToolEntry so
// they can be registered on a session like any hand-written tool.
package mcp

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miniprompt"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// clientName is advertised to MCP servers during initialization.
const clientName = "miniprompt"

// Client is a client for a single MCP server. It lazily connects and
// initializes on the first Tools call.
type Client struct {
	// For local MCP server
	path    string
	args    []string
	envVars []string

	// For remote MCP server
	baseURL string
	headers map[string]string

	// Common client
	client     *client.Client
	initResult *mcp.InitializeResult

	initMutex sync.Mutex
}

// StdioOption is the option for the MCP client for local MCP executable server via stdio.
type StdioOption func(*Client)

// WithEnvVars sets the environment variables for the MCP client. It appends the environment variables to the existing ones.
func WithEnvVars(envVars []string) StdioOption {
	return func(c *Client) {
		c.envVars = append(c.envVars, envVars...)
	}
}

// NewStdio creates a new MCP client for a local MCP executable server via stdio.
func NewStdio(path string, args []string, options ...StdioOption) *Client {
	c := &Client{
		path: path,
		args: args,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// SSEOption is the option for the MCP client for remote MCP server via HTTP SSE.
type SSEOption func(*Client)

// WithHeaders sets the headers for the MCP client. It replaces the existing headers setting.
func WithHeaders(headers map[string]string) SSEOption {
	return func(c *Client) {
		c.headers = headers
	}
}

// NewSSE creates a new MCP client for a remote MCP server via HTTP SSE.
func NewSSE(baseURL string, options ...SSEOption) *Client {
	c := &Client{
		baseURL: baseURL,
		headers: make(map[string]string),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) start(ctx context.Context) error {
	c.initMutex.Lock()
	defer c.initMutex.Unlock()

	if c.initResult != nil {
		return nil
	}

	var tp transport.Interface
	if c.path != "" {
		tp = transport.NewStdio(c.path, c.envVars, c.args...)
	}

	if c.baseURL != "" {
		sse, err := transport.NewSSE(c.baseURL, transport.WithHeaders(c.headers))
		if err != nil {
			return goerr.Wrap(err, "failed to create SSE transport")
		}
		tp = sse
	}

	if tp == nil {
		return goerr.New("no transport")
	}

	c.client = client.NewClient(tp)

	if err := c.client.Start(ctx); err != nil {
		return goerr.Wrap(err, "failed to start MCP client")
	}

	var initRequest mcp.InitializeRequest
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: "0.0.1",
	}

	resp, err := c.client.Initialize(ctx, initRequest)
	if err != nil {
		return goerr.Wrap(err, "failed to initialize MCP client")
	}
	c.initResult = resp

	logger := miniprompt.LoggerFromContext(ctx)
	logger.Debug("MCP client initialized", "server", c.initResult.ServerInfo.Name)

	return nil
}

// Tools lists the tools of the MCP server and wraps them as tool entries.
// Each handler forwards the call to the server and returns the textual
// result, or an error payload the model can read.
func (c *Client) Tools(ctx context.Context) ([]miniprompt.ToolEntry, error) {
	if err := c.start(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tools")
	}

	entries := make([]miniprompt.ToolEntry, 0, len(resp.Tools))
	for _, tool := range resp.Tools {
		entry, err := c.wrapTool(tool)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert MCP tool", goerr.V("tool_name", tool.Name))
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (c *Client) wrapTool(tool mcp.Tool) (miniprompt.ToolEntry, error) {
	parameters, err := inputSchemaToParameter(tool.InputSchema)
	if err != nil {
		return miniprompt.ToolEntry{}, err
	}

	spec := miniprompt.ToolSpec{
		Name:        tool.Name,
		Description: tool.Description,
		Parameters:  parameters,
		Required:    tool.InputSchema.Required,
	}

	handler := func(ctx context.Context, args string) string {
		result, err := c.callTool(ctx, tool.Name, args)
		if err != nil {
			return errorPayload(err)
		}
		return result
	}

	return miniprompt.ToolEntry{Spec: spec, Handler: handler}, nil
}

func (c *Client) callTool(ctx context.Context, name, args string) (string, error) {
	if args == "" {
		args = "{}"
	}
	var arguments map[string]any
	if err := json.Unmarshal([]byte(args), &arguments); err != nil {
		return "", goerr.Wrap(err, "failed to parse tool arguments", goerr.V("args", args))
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments
	resp, err := c.client.CallTool(ctx, req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to call tool")
	}

	return contentToText(resp.Content), nil
}

// Close shuts down the underlying MCP connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close MCP client")
	}
	return nil
}

// errorPayload renders an error as a JSON object the model can inspect.
func errorPayload(err error) string {
	raw, marshalErr := json.Marshal(map[string]any{
		"status":  "error",
		"message": err.Error(),
	})
	if marshalErr != nil {
		return `{"status":"error"}`
	}
	return string(raw)
}

// contentToText flattens MCP tool call contents to a single string. The
// first text content wins, multiple text contents are joined as a JSON
// array.
func contentToText(contents []mcp.Content) string {
	var texts []string
	for _, content := range contents {
		if txt, ok := content.(mcp.TextContent); ok {
			texts = append(texts, txt.Text)
		}
	}

	switch len(texts) {
	case 0:
		return ""
	case 1:
		return texts[0]
	default:
		raw, err := json.Marshal(texts)
		if err != nil {
			return texts[0]
		}
		return string(raw)
	}
}

func valueOrEmpty[T any](v any) T {
	var empty T
	if v == nil {
		return empty
	}
	if v, ok := v.(T); ok {
		return v
	}
	return empty
}

func toStringSlice(v any) []string {
	switch values := v.(type) {
	case []string:
		return values
	case []any:
		result := make([]string, 0, len(values))
		for _, value := range values {
			if s, ok := value.(string); ok {
				result = append(result, s)
			}
		}
		if len(result) == 0 {
			return nil
		}
		return result
	default:
		return nil
	}
}

func inputSchemaToParameter(inputSchema mcp.ToolInputSchema) (map[string]*miniprompt.Parameter, error) {
	parameters := map[string]*miniprompt.Parameter{}

	for name, property := range inputSchema.Properties {
		prop, ok := property.(map[string]any)
		if !ok {
			return nil, goerr.Wrap(miniprompt.ErrInvalidInputSchema, "invalid property", goerr.V("property", property))
		}

		parameter, err := propertyToParameter(prop)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert property", goerr.V("property_name", name))
		}
		parameters[name] = parameter
	}

	return parameters, nil
}

func propertyToParameter(prop map[string]any) (*miniprompt.Parameter, error) {
	var properties map[string]*miniprompt.Parameter
	var items *miniprompt.Parameter
	propType := valueOrEmpty[string](prop["type"])

	if propType == "object" {
		properties = map[string]*miniprompt.Parameter{}
		nestedProperty := valueOrEmpty[map[string]any](prop["properties"])

		for name, value := range nestedProperty {
			nested, ok := value.(map[string]any)
			if !ok {
				return nil, goerr.Wrap(miniprompt.ErrInvalidInputSchema, "invalid nested property", goerr.V("property_name", name))
			}
			objParam, err := propertyToParameter(nested)
			if err != nil {
				return nil, err
			}
			properties[name] = objParam
		}
	}

	if propType == "array" {
		itemSchema, ok := prop["items"].(map[string]any)
		if !ok {
			return nil, goerr.Wrap(miniprompt.ErrInvalidInputSchema, "array property has no items schema")
		}
		v, err := propertyToParameter(itemSchema)
		if err != nil {
			return nil, err
		}
		items = v
	}

	return &miniprompt.Parameter{
		Type:        miniprompt.ParameterType(propType),
		Title:       valueOrEmpty[string](prop["title"]),
		Description: valueOrEmpty[string](prop["description"]),
		Enum:        toStringSlice(prop["enum"]),
		Properties:  properties,
		Required:    toStringSlice(prop["required"]),
		Items:       items,
	}, nil
}
