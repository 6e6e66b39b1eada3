package miniprompt_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/miniprompt"
)

// mockBackend is a mock implementation of miniprompt.Backend
type mockBackend struct {
	generateFunc func(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error)
	callCount    int
}

func (m *mockBackend) Generate(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
	m.callCount++
	return m.generateFunc(ctx, transcript, tools)
}

func flubbTool(called *int) miniprompt.ToolEntry {
	return miniprompt.ToolEntry{
		Spec: miniprompt.ToolSpec{
			Name:        "flubb",
			Description: "Performs the flubb action.",
		},
		Handler: func(ctx context.Context, args string) string {
			*called++
			return `{"status": "success", "message": "flubb completed successfully"}`
		},
	}
}

func TestNewSession(t *testing.T) {
	backend := &mockBackend{}

	tools := []miniprompt.ToolEntry{
		{
			Spec:    miniprompt.ToolSpec{Name: "alpha", Description: "first"},
			Handler: func(ctx context.Context, args string) string { return "ok" },
		},
		{
			Spec:    miniprompt.ToolSpec{Name: "beta", Description: "second"},
			Handler: func(ctx context.Context, args string) string { return "ok" },
		},
	}

	t.Run("unique names succeed", func(t *testing.T) {
		s := gt.R1(miniprompt.NewSession(backend, tools)).NoError(t)
		specs := s.Tools()
		gt.A(t, specs).Length(2)
		gt.Equal(t, specs[0].Name, "alpha")
		gt.Equal(t, specs[1].Name, "beta")
	})

	t.Run("duplicate name fails regardless of order", func(t *testing.T) {
		dup := miniprompt.ToolEntry{
			Spec:    miniprompt.ToolSpec{Name: "alpha", Description: "again"},
			Handler: func(ctx context.Context, args string) string { return "ok" },
		}

		_, err := miniprompt.NewSession(backend, append(tools[:2:2], dup))
		gt.Error(t, err)
		gt.True(t, errors.Is(err, miniprompt.ErrToolNameConflict))

		_, err = miniprompt.NewSession(backend, append([]miniprompt.ToolEntry{dup}, tools...))
		gt.Error(t, err)
		gt.True(t, errors.Is(err, miniprompt.ErrToolNameConflict))
	})

	t.Run("invalid spec fails", func(t *testing.T) {
		_, err := miniprompt.NewSession(backend, []miniprompt.ToolEntry{
			{
				Spec:    miniprompt.ToolSpec{Description: "no name"},
				Handler: func(ctx context.Context, args string) string { return "ok" },
			},
		})
		gt.Error(t, err)
		gt.True(t, errors.Is(err, miniprompt.ErrInvalidTool))
	})

	t.Run("missing handler fails", func(t *testing.T) {
		_, err := miniprompt.NewSession(backend, []miniprompt.ToolEntry{
			{Spec: miniprompt.ToolSpec{Name: "ghost"}},
		})
		gt.Error(t, err)
		gt.True(t, errors.Is(err, miniprompt.ErrInvalidTool))
	})
}

func TestCallFinalText(t *testing.T) {
	backend := &mockBackend{
		generateFunc: func(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
			return &miniprompt.Response{Texts: []string{"the answer is 4"}}, nil
		},
	}

	s := gt.R1(miniprompt.NewSession(backend, nil)).NoError(t)
	resp := gt.R1(s.SimpleCall(t.Context(), "whats 2+2")).NoError(t)

	gt.Equal(t, resp, "the answer is 4")
	gt.Equal(t, backend.callCount, 1)

	transcript := s.Transcript()
	gt.A(t, transcript).Length(2)
	gt.Equal(t, transcript[0].Role, miniprompt.RoleUser)
	gt.Equal(t, transcript[0].Content, "whats 2+2")
	gt.Equal(t, transcript[1].Role, miniprompt.RoleAssistant)
	gt.Equal(t, transcript[1].Content, "the answer is 4")
}

func TestCallWithTool(t *testing.T) {
	handlerCalled := 0
	var seenArgs string

	backend := &mockBackend{}
	backend.generateFunc = func(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
		gt.A(t, tools).Length(1)
		gt.Equal(t, tools[0].Name, "flubb")

		if backend.callCount == 1 {
			return &miniprompt.Response{
				ToolCalls: []miniprompt.ToolCall{
					{ID: "call_1", Name: "flubb", Arguments: `{}`},
				},
			}, nil
		}

		// Second turn: the transcript must already carry the tool result.
		last := transcript[len(transcript)-1]
		gt.Equal(t, last.Role, miniprompt.RoleTool)
		gt.A(t, last.ToolResults).Length(1)
		gt.Equal(t, last.ToolResults[0].ID, "call_1")

		return &miniprompt.Response{Texts: []string{"flubbed"}}, nil
	}

	entry := miniprompt.ToolEntry{
		Spec: miniprompt.ToolSpec{Name: "flubb", Description: "Performs the flubb action."},
		Handler: func(ctx context.Context, args string) string {
			handlerCalled++
			seenArgs = args
			return `{"status": "success"}`
		},
	}

	s := gt.R1(miniprompt.NewSession(backend, []miniprompt.ToolEntry{entry})).NoError(t)
	resp := gt.R1(s.SimpleCall(t.Context(), "Go ahead and flubb for me")).NoError(t)

	gt.Equal(t, resp, "flubbed")
	gt.Equal(t, backend.callCount, 2)
	gt.Equal(t, handlerCalled, 1)
	gt.Equal(t, seenArgs, `{}`)

	transcript := s.Transcript()
	gt.A(t, transcript).Length(4)
	gt.Equal(t, transcript[0].Role, miniprompt.RoleUser)
	gt.Equal(t, transcript[1].Role, miniprompt.RoleAssistant)
	gt.A(t, transcript[1].ToolCalls).Length(1)
	gt.Equal(t, transcript[2].Role, miniprompt.RoleTool)
	gt.Equal(t, transcript[2].ToolResults[0].Content, `{"status": "success"}`)
	gt.Equal(t, transcript[3].Role, miniprompt.RoleAssistant)
	gt.Equal(t, transcript[3].Content, "flubbed")
}

func TestCallDispatchOrder(t *testing.T) {
	var order []string

	backend := &mockBackend{}
	backend.generateFunc = func(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
		if backend.callCount == 1 {
			return &miniprompt.Response{
				ToolCalls: []miniprompt.ToolCall{
					{ID: "c1", Name: "beta", Arguments: `{}`},
					{ID: "c2", Name: "alpha", Arguments: `{}`},
				},
			}, nil
		}
		return &miniprompt.Response{Texts: []string{"done"}}, nil
	}

	record := func(name string) miniprompt.ToolEntry {
		return miniprompt.ToolEntry{
			Spec: miniprompt.ToolSpec{Name: name, Description: name},
			Handler: func(ctx context.Context, args string) string {
				order = append(order, name)
				return "ok"
			},
		}
	}

	s := gt.R1(miniprompt.NewSession(backend, []miniprompt.ToolEntry{record("alpha"), record("beta")})).NoError(t)
	gt.R1(s.SimpleCall(t.Context(), "run both")).NoError(t)

	// Results follow the request order, not the registration order.
	gt.Equal(t, order, []string{"beta", "alpha"})

	transcript := s.Transcript()
	results := transcript[2].ToolResults
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].ID, "c1")
	gt.Equal(t, results[1].ID, "c2")
}

func TestCallUnknownTool(t *testing.T) {
	handlerCalled := 0

	backend := &mockBackend{
		generateFunc: func(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
			return &miniprompt.Response{
				ToolCalls: []miniprompt.ToolCall{
					{ID: "c1", Name: "unregistered", Arguments: `{}`},
				},
			}, nil
		},
	}

	s := gt.R1(miniprompt.NewSession(backend, []miniprompt.ToolEntry{flubbTool(&handlerCalled)})).NoError(t)
	_, err := s.SimpleCall(t.Context(), "do something")

	gt.Error(t, err)
	gt.True(t, errors.Is(err, miniprompt.ErrToolNotFound))
	gt.Equal(t, handlerCalled, 0)

	// The transcript keeps the unanswered request for inspection.
	transcript := s.Transcript()
	gt.A(t, transcript).Length(2)
	gt.A(t, transcript[1].ToolCalls).Length(1)
}

func TestCallLoopLimit(t *testing.T) {
	handlerCalled := 0

	backend := &mockBackend{
		generateFunc: func(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
			return &miniprompt.Response{
				ToolCalls: []miniprompt.ToolCall{
					{ID: "c1", Name: "flubb", Arguments: `{}`},
				},
			}, nil
		},
	}

	s := gt.R1(miniprompt.NewSession(backend,
		[]miniprompt.ToolEntry{flubbTool(&handlerCalled)},
		miniprompt.WithLoopLimit(3),
	)).NoError(t)

	_, err := s.SimpleCall(t.Context(), "flubb forever")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, miniprompt.ErrLoopLimitExceeded))
	gt.Equal(t, backend.callCount, 3)
	gt.Equal(t, handlerCalled, 3)
}

func TestCallBackendError(t *testing.T) {
	cause := errors.New("connection refused")
	backend := &mockBackend{
		generateFunc: func(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
			return nil, cause
		},
	}

	s := gt.R1(miniprompt.NewSession(backend, nil)).NoError(t)
	_, err := s.SimpleCall(t.Context(), "hello")

	gt.Error(t, err)
	gt.True(t, errors.Is(err, cause))
}

func TestCallCancelled(t *testing.T) {
	backend := &mockBackend{
		generateFunc: func(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
			return &miniprompt.Response{Texts: []string{"hello"}}, nil
		},
	}

	s := gt.R1(miniprompt.NewSession(backend, nil)).NoError(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := s.Call(ctx, miniprompt.UserMessage("hello"))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, context.Canceled))
	gt.Equal(t, backend.callCount, 0)
}

func TestStrictArgs(t *testing.T) {
	handlerCalled := 0

	backend := &mockBackend{}
	backend.generateFunc = func(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
		switch backend.callCount {
		case 1:
			return &miniprompt.Response{
				ToolCalls: []miniprompt.ToolCall{
					{ID: "c1", Name: "greet", Arguments: `{"name": 42}`},
				},
			}, nil
		case 2:
			// The rejection must come back as a tool result, not an error.
			last := transcript[len(transcript)-1]
			gt.Equal(t, last.Role, miniprompt.RoleTool)
			gt.S(t, last.ToolResults[0].Content).Contains(`"status":"error"`)

			return &miniprompt.Response{
				ToolCalls: []miniprompt.ToolCall{
					{ID: "c2", Name: "greet", Arguments: `{"name": "Ada"}`},
				},
			}, nil
		default:
			return &miniprompt.Response{Texts: []string{"greeted"}}, nil
		}
	}

	entry := miniprompt.ToolEntry{
		Spec: miniprompt.ToolSpec{
			Name:        "greet",
			Description: "Greets someone by name",
			Parameters: map[string]*miniprompt.Parameter{
				"name": {Type: miniprompt.TypeString, Description: "who to greet"},
			},
			Required: []string{"name"},
		},
		Handler: func(ctx context.Context, args string) string {
			handlerCalled++
			return `{"status": "success"}`
		},
	}

	s := gt.R1(miniprompt.NewSession(backend, []miniprompt.ToolEntry{entry}, miniprompt.WithStrictArgs())).NoError(t)
	resp := gt.R1(s.SimpleCall(t.Context(), "greet Ada")).NoError(t)

	gt.Equal(t, resp, "greeted")
	gt.Equal(t, handlerCalled, 1)
	gt.Equal(t, backend.callCount, 3)
}

func TestCallbacks(t *testing.T) {
	backend := &mockBackend{}
	backend.generateFunc = func(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
		if backend.callCount == 1 {
			return &miniprompt.Response{
				Texts: []string{"calling flubb"},
				ToolCalls: []miniprompt.ToolCall{
					{ID: "c1", Name: "flubb", Arguments: `{}`},
				},
			}, nil
		}
		return &miniprompt.Response{Texts: []string{"done"}}, nil
	}

	t.Run("msg and tool callbacks observe the call", func(t *testing.T) {
		backend.callCount = 0
		handlerCalled := 0
		var msgs []string
		var toolNames []string

		s := gt.R1(miniprompt.NewSession(backend,
			[]miniprompt.ToolEntry{flubbTool(&handlerCalled)},
			miniprompt.WithMsgCallback(func(ctx context.Context, msg string) error {
				msgs = append(msgs, msg)
				return nil
			}),
			miniprompt.WithToolCallback(func(ctx context.Context, call miniprompt.ToolCall) error {
				toolNames = append(toolNames, call.Name)
				return nil
			}),
		)).NoError(t)

		gt.R1(s.SimpleCall(t.Context(), "flubb")).NoError(t)
		gt.Equal(t, msgs, []string{"calling flubb", "done"})
		gt.Equal(t, toolNames, []string{"flubb"})
	})

	t.Run("tool callback error aborts the call", func(t *testing.T) {
		backend.callCount = 0
		handlerCalled := 0
		abort := errors.New("not allowed")

		s := gt.R1(miniprompt.NewSession(backend,
			[]miniprompt.ToolEntry{flubbTool(&handlerCalled)},
			miniprompt.WithToolCallback(func(ctx context.Context, call miniprompt.ToolCall) error {
				return abort
			}),
		)).NoError(t)

		_, err := s.SimpleCall(t.Context(), "flubb")
		gt.Error(t, err)
		gt.True(t, errors.Is(err, abort))
		gt.Equal(t, handlerCalled, 0)
	})
}

func TestMultipleCallsShareTranscript(t *testing.T) {
	backend := &mockBackend{}
	backend.generateFunc = func(ctx context.Context, transcript []miniprompt.Message, tools []miniprompt.ToolSpec) (*miniprompt.Response, error) {
		if backend.callCount == 2 {
			// The second call must see the whole first exchange.
			gt.A(t, transcript).Length(3)
		}
		return &miniprompt.Response{Texts: []string{"ok"}}, nil
	}

	s := gt.R1(miniprompt.NewSession(backend, nil)).NoError(t)
	gt.R1(s.SimpleCall(t.Context(), "first")).NoError(t)
	gt.R1(s.SimpleCall(t.Context(), "second")).NoError(t)

	gt.A(t, s.Transcript()).Length(4)
}
