package gemini

import (
	"encoding/json"

	"cloud.google.com/go/vertexai/genai"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miniprompt"
)

// convertTool converts miniprompt.ToolSpec to a Gemini function declaration.
func convertTool(spec miniprompt.ToolSpec) *genai.FunctionDeclaration {
	parameters := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema),
		Required:   spec.Required,
	}

	for name, param := range spec.Parameters {
		parameters.Properties[name] = convertParameterToSchema(param)
	}

	return &genai.FunctionDeclaration{
		Name:        spec.Name,
		Description: spec.Description,
		Parameters:  parameters,
	}
}

func convertParameterToSchema(param *miniprompt.Parameter) *genai.Schema {
	schema := &genai.Schema{
		Type:        getGenaiType(param.Type),
		Title:       param.Title,
		Description: param.Description,
	}

	if len(param.Enum) > 0 {
		schema.Enum = param.Enum
	}

	if param.Properties != nil {
		schema.Properties = make(map[string]*genai.Schema)
		for propName, prop := range param.Properties {
			schema.Properties[propName] = convertParameterToSchema(prop)
		}
		if len(param.Required) > 0 {
			schema.Required = param.Required
		}
	}

	if param.Items != nil {
		schema.Items = convertParameterToSchema(param.Items)
	}

	return schema
}

func getGenaiType(paramType miniprompt.ParameterType) genai.Type {
	switch paramType {
	case miniprompt.TypeString:
		return genai.TypeString
	case miniprompt.TypeNumber:
		return genai.TypeNumber
	case miniprompt.TypeInteger:
		return genai.TypeInteger
	case miniprompt.TypeBoolean:
		return genai.TypeBoolean
	case miniprompt.TypeArray:
		return genai.TypeArray
	case miniprompt.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// convertMessages converts a transcript to Gemini contents. Gemini uses
// "user" and "model" roles, and tool results travel as function response
// parts on a user turn.
func convertMessages(transcript []miniprompt.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(transcript))

	for _, msg := range transcript {
		switch msg.Role {
		case miniprompt.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})

		case miniprompt.RoleAssistant:
			parts := make([]genai.Part, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				args := map[string]any{}
				if call.Arguments != "" {
					if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
						return nil, goerr.Wrap(err, "failed to parse tool call arguments", goerr.V("name", call.Name))
					}
				}
				parts = append(parts, genai.FunctionCall{
					Name: call.Name,
					Args: args,
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: parts,
			})

		case miniprompt.RoleTool:
			parts := make([]genai.Part, 0, len(msg.ToolResults))
			for _, result := range msg.ToolResults {
				parts = append(parts, genai.FunctionResponse{
					Name:     result.ID,
					Response: toResponseMap(result.Content),
				})
			}
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: parts,
			})

		default:
			return nil, goerr.Wrap(miniprompt.ErrInvalidParameter, "unsupported message role", goerr.V("role", msg.Role))
		}
	}

	return contents, nil
}

// toResponseMap wraps a tool result as the map Gemini expects. JSON object
// results pass through as-is, anything else is wrapped under "result".
func toResponseMap(content string) map[string]any {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(content), &decoded); err == nil {
		return decoded
	}
	return map[string]any{"result": content}
}
