package openai

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miniprompt"
	"github.com/sashabaranov/go-openai"
)

// convertTool converts miniprompt.ToolSpec to openai.Tool.
func convertTool(spec miniprompt.ToolSpec) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.SchemaDoc(),
		},
	}
}

// convertMessages converts a transcript to OpenAI chat messages. Tool
// results become role "tool" messages keyed by the original call ID.
func convertMessages(transcript []miniprompt.Message) ([]openai.ChatCompletionMessage, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(transcript))

	for _, msg := range transcript {
		switch msg.Role {
		case miniprompt.RoleUser:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})

		case miniprompt.RoleAssistant:
			converted := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, call := range msg.ToolCalls {
				converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				})
			}
			messages = append(messages, converted)

		case miniprompt.RoleTool:
			for _, result := range msg.ToolResults {
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    result.Content,
					ToolCallID: result.ID,
				})
			}

		default:
			return nil, goerr.Wrap(miniprompt.ErrInvalidParameter, "unsupported message role", goerr.V("role", msg.Role))
		}
	}

	return messages, nil
}
