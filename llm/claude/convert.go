package claude

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miniprompt"
)

// convertTool converts a tool specification to Claude's tool declaration.
func convertTool(spec miniprompt.ToolSpec) anthropic.ToolUnionParam {
	doc := spec.SchemaDoc()

	inputSchema := anthropic.ToolInputSchemaParam{
		Properties: doc["properties"],
	}
	if len(spec.Required) > 0 {
		inputSchema.ExtraFields = map[string]any{"required": spec.Required}
	}

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        spec.Name,
			Description: anthropic.String(spec.Description),
			InputSchema: inputSchema,
		},
	}
}

// convertMessages converts a transcript to Claude's message format. Tool
// results are carried in user-role messages with tool_result blocks, as the
// Messages API expects.
func convertMessages(transcript []miniprompt.Message) ([]anthropic.MessageParam, error) {
	messages := make([]anthropic.MessageParam, 0, len(transcript))

	for _, msg := range transcript {
		switch msg.Role {
		case miniprompt.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))

		case miniprompt.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				args := call.Arguments
				if args == "" {
					args = "{}"
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, json.RawMessage(args), call.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))

		case miniprompt.RoleTool:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolResults))
			for _, result := range msg.ToolResults {
				blocks = append(blocks, anthropic.NewToolResultBlock(result.ID, result.Content, false))
			}
			messages = append(messages, anthropic.NewUserMessage(blocks...))

		default:
			return nil, goerr.Wrap(miniprompt.ErrInvalidParameter, "unknown message role", goerr.V("role", msg.Role))
		}
	}

	return messages, nil
}
