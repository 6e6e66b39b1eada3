// Package miniprompt provides a small calling layer over LLM providers: a
// multi-turn tool-calling session on top of a provider-agnostic Backend, and
// utilities to pull structured data out of free-form model output (fenced
// code block extraction and lenient JSON decoding).
//
// A session drives one conversation. It owns the transcript, declares the
// registered tools to the backend on every call, runs the handlers the model
// requests, and loops until the model answers with plain text:
//
//	session, err := miniprompt.NewSession(backend, []miniprompt.ToolEntry{
//		{
//			Spec: miniprompt.ToolSpec{Name: "flubb", Description: "Performs the flubb action."},
//			Handler: func(ctx context.Context, args string) string {
//				return `{"status": "success"}`
//			},
//		},
//	})
//	if err != nil { ... }
//	answer, err := session.SimpleCall(ctx, "Go ahead and flubb for me")
package miniprompt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// DefaultLoopLimit is the default ceiling on model turns within one Call.
const DefaultLoopLimit = 12

// MsgCallback is called for every text fragment the model generates.
type MsgCallback func(ctx context.Context, msg string) error

// ToolCallback is called just before a tool handler runs.
type ToolCallback func(ctx context.Context, call ToolCall) error

func defaultMsgCallback(ctx context.Context, msg string) error     { return nil }
func defaultToolCallback(ctx context.Context, call ToolCall) error { return nil }

type registryEntry struct {
	spec    ToolSpec
	handler ToolHandler
	schema  *jsonschema.Schema // non-nil only with WithStrictArgs
}

// Session drives the request/response loop between a model backend and a set
// of local tool handlers until the model yields a plain text answer.
//
// A session is single-owner: it must not be used from multiple goroutines at
// once, and it must be discarded after Call returns ErrToolNotFound. Separate
// sessions are fully independent.
type Session struct {
	backend    Backend
	transcript []Message

	order   []string
	entries map[string]*registryEntry
	specs   []ToolSpec

	loopLimit    int
	strictArgs   bool
	msgCallback  MsgCallback
	toolCallback ToolCallback
	logger       *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLoopLimit sets the maximum number of model turns for one Call (asking
// the LLM and executing the requested tools is one turn). Default is
// DefaultLoopLimit.
func WithLoopLimit(loopLimit int) SessionOption {
	return func(s *Session) {
		s.loopLimit = loopLimit
	}
}

// WithStrictArgs validates tool call arguments against the tool's parameter
// schema before dispatch. Invalid payloads are not passed to the handler; the
// validation error is returned to the model as the tool result instead.
func WithStrictArgs() SessionOption {
	return func(s *Session) {
		s.strictArgs = true
	}
}

// WithMsgCallback sets a callback for generated text. If the callback returns
// an error, Call is aborted immediately.
func WithMsgCallback(callback MsgCallback) SessionOption {
	return func(s *Session) {
		s.msgCallback = callback
	}
}

// WithToolCallback sets a callback invoked just before each tool handler. If
// the callback returns an error, Call is aborted immediately.
func WithToolCallback(callback ToolCallback) SessionOption {
	return func(s *Session) {
		s.toolCallback = callback
	}
}

// WithLogger sets the logger for the session. Default is a discard logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a session with an empty transcript and the given tools.
// Tool order is preserved when declaring them to the backend. It fails with
// ErrToolNameConflict if two entries share a name.
func NewSession(backend Backend, tools []ToolEntry, options ...SessionOption) (*Session, error) {
	s := &Session{
		backend:      backend,
		entries:      map[string]*registryEntry{},
		loopLimit:    DefaultLoopLimit,
		msgCallback:  defaultMsgCallback,
		toolCallback: defaultToolCallback,
		logger:       slog.New(slog.DiscardHandler),
	}

	for _, opt := range options {
		opt(s)
	}

	for _, tool := range tools {
		if err := tool.Spec.Validate(); err != nil {
			return nil, err
		}
		if tool.Handler == nil {
			return nil, goerr.Wrap(ErrInvalidTool, "handler is required", goerr.V("tool_name", tool.Spec.Name))
		}
		if _, ok := s.entries[tool.Spec.Name]; ok {
			return nil, goerr.Wrap(ErrToolNameConflict, "duplicate tool name", goerr.V("tool_name", tool.Spec.Name))
		}

		entry := &registryEntry{spec: tool.Spec, handler: tool.Handler}
		if s.strictArgs {
			schema, err := compileArgsSchema(tool.Spec)
			if err != nil {
				return nil, err
			}
			entry.schema = schema
		}

		s.entries[tool.Spec.Name] = entry
		s.order = append(s.order, tool.Spec.Name)
		s.specs = append(s.specs, tool.Spec)
	}

	return s, nil
}

// Tools returns the registered tool specifications in registration order.
func (s *Session) Tools() []ToolSpec {
	return s.specs[:len(s.specs):len(s.specs)]
}

// Transcript returns a copy of the conversation so far. It is valid after a
// failed Call as well, so the caller can inspect where the conversation
// stopped.
func (s *Session) Transcript() []Message {
	transcript := make([]Message, len(s.transcript))
	copy(transcript, s.transcript)
	return transcript
}

// SimpleCall wraps Call with a single user message.
func (s *Session) SimpleCall(ctx context.Context, prompt string) (string, error) {
	return s.Call(ctx, UserMessage(prompt))
}

// Call appends the given messages to the transcript and drives the
// conversation until the model produces a final text answer with no tool
// calls. Tool handlers run synchronously, in the order the model requested
// them, and their results are appended to the transcript before the model is
// asked again.
func (s *Session) Call(ctx context.Context, msgs ...Message) (string, error) {
	callID := uuid.New().String()
	logger := s.logger.With("miniprompt.call_id", callID)
	ctx = ctxWithLogger(ctx, logger)
	logger.Info("start call", "messages", len(msgs), "tools", len(s.specs))

	s.transcript = append(s.transcript, msgs...)

	for turn := 0; turn < s.loopLimit; turn++ {
		if err := ctx.Err(); err != nil {
			return "", goerr.Wrap(err, "call cancelled")
		}

		logger.Debug("send request", "turn", turn, "transcript_len", len(s.transcript))
		resp, err := s.backend.Generate(ctx, s.transcript, s.specs)
		if err != nil {
			return "", goerr.Wrap(err, "failed to generate content", goerr.V("turn", turn))
		}
		logger.Debug("recv response", "texts", len(resp.Texts), "tool_calls", len(resp.ToolCalls))

		for _, text := range resp.Texts {
			if err := s.msgCallback(ctx, text); err != nil {
				return "", goerr.Wrap(err, "failed to call msgCallback")
			}
		}

		if len(resp.ToolCalls) == 0 {
			text := resp.Text()
			s.transcript = append(s.transcript, AssistantMessage(text))
			logger.Info("call finished", "turns", turn+1)
			return text, nil
		}

		s.transcript = append(s.transcript, Message{
			Role:      RoleAssistant,
			Content:   resp.Text(),
			ToolCalls: resp.ToolCalls,
		})

		results, err := s.dispatch(ctx, resp.ToolCalls)
		if err != nil {
			return "", err
		}
		s.transcript = append(s.transcript, ToolResultMessage(results...))
	}

	return "", goerr.Wrap(ErrLoopLimitExceeded, "call stopped", goerr.V("loop_limit", s.loopLimit))
}

// dispatch runs the requested tools one by one, keeping the request order.
// An unknown tool name aborts immediately; the remaining requests of the turn
// are not dispatched.
func (s *Session) dispatch(ctx context.Context, calls []ToolCall) ([]ToolResult, error) {
	logger := LoggerFromContext(ctx)

	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		entry, ok := s.entries[call.Name]
		if !ok {
			return nil, goerr.Wrap(ErrToolNotFound, "model requested unregistered tool", goerr.V("call", call))
		}

		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "call cancelled")
		}
		if err := s.toolCallback(ctx, call); err != nil {
			return nil, goerr.Wrap(err, "failed to call toolCallback")
		}

		if entry.schema != nil {
			if verr := validateArgs(entry.schema, call.Arguments); verr != nil {
				logger.Info("tool arguments rejected", "call", call, "error", verr)
				results = append(results, ToolResult{ID: call.ID, Content: errorResult(verr)})
				continue
			}
		}

		logger.Debug("run tool", "name", call.Name, "args", call.Arguments)
		out := entry.handler(ctx, call.Arguments)
		logger.Debug("tool result", "name", call.Name, "result", out)

		results = append(results, ToolResult{ID: call.ID, Content: out})
	}

	return results, nil
}

func compileArgsSchema(spec ToolSpec) (*jsonschema.Schema, error) {
	url := "miniprompt://tools/" + spec.Name + ".json"

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, spec.SchemaDoc()); err != nil {
		return nil, goerr.Wrap(err, "failed to add schema resource", goerr.V("tool_name", spec.Name))
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compile argument schema", goerr.V("tool_name", spec.Name))
	}
	return schema, nil
}

func validateArgs(schema *jsonschema.Schema, args string) error {
	if args == "" {
		args = "{}"
	}
	var instance any
	if err := json.Unmarshal([]byte(args), &instance); err != nil {
		return goerr.Wrap(err, "arguments are not valid JSON")
	}
	if err := schema.Validate(instance); err != nil {
		return goerr.Wrap(err, "arguments do not match the tool schema")
	}
	return nil
}

func errorResult(err error) string {
	payload, merr := json.Marshal(map[string]any{
		"status":  "error",
		"message": err.Error(),
	})
	if merr != nil {
		return `{"status": "error", "message": ` + strconv.Quote(fmt.Sprintf("%v", err)) + `}`
	}
	return string(payload)
}
