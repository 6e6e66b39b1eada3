package miniprompt

// Role is the origin of a message in a transcript.
type Role string

const (
	// RoleUser is non-model input supplied by the caller.
	RoleUser Role = "user"

	// RoleAssistant is content generated by the model, including tool call
	// requests.
	RoleAssistant Role = "assistant"

	// RoleTool carries the results of tool calls back to the model.
	RoleTool Role = "tool"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// ID is the identifier the model assigned to this call. The matching
	// ToolResult must carry the same ID.
	ID string

	// Name is the name of the tool the model wants to call.
	Name string

	// Arguments is the raw argument payload, usually JSON. It is passed to the
	// tool handler as-is.
	Arguments string
}

// ToolResult is the answer to one ToolCall.
type ToolResult struct {
	// ID references the ToolCall this result answers.
	ID string

	// Content is the handler output. Handlers report their own failure inside
	// this text; there is no separate error channel.
	Content string
}

// Message is one turn of a conversation.
//
// A user message has only Content. An assistant message has Content and, when
// the model requested tools, ToolCalls. A tool message has only ToolResults,
// one per call of the preceding assistant turn, in request order.
type Message struct {
	Role        Role
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// UserMessage creates a user message with the given text.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant message with the given text.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolResultMessage creates a tool message carrying the given results.
func ToolResultMessage(results ...ToolResult) Message {
	return Message{Role: RoleTool, ToolResults: results}
}
