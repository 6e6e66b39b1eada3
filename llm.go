package miniprompt

import "context"

// Backend is a client for one LLM service. It receives the whole transcript
// and the declared tools on every call and returns either generated text,
// one or more tool call requests, or both.
//
// Implementations do not keep conversation state; the session owns the
// transcript. See the llm sub packages for concrete providers.
type Backend interface {
	Generate(ctx context.Context, transcript []Message, tools []ToolSpec) (*Response, error)
}

// Response is a general response type for each Backend.
type Response struct {
	Texts     []string
	ToolCalls []ToolCall
}

// Text joins all generated text fragments into one string.
func (r *Response) Text() string {
	switch len(r.Texts) {
	case 0:
		return ""
	case 1:
		return r.Texts[0]
	}

	n := 0
	for _, t := range r.Texts {
		n += len(t) + 1
	}
	buf := make([]byte, 0, n)
	for i, t := range r.Texts {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, t...)
	}
	return string(buf)
}

// ToolHandler executes one tool call. It receives the raw argument payload the
// model supplied and returns the result as text. There is no error return:
// handlers report failure inside the returned text, conventionally as a JSON
// payload with a status field, and the model decides what to do with it.
type ToolHandler func(ctx context.Context, args string) string

// ToolEntry pairs a tool specification with its handler.
type ToolEntry struct {
	Spec    ToolSpec
	Handler ToolHandler
}
