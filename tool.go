package miniprompt

import (
	"github.com/m-mizutani/goerr/v2"
)

// ToolSpec describes a tool made available to the model.
type ToolSpec struct {
	// Name is the unique identifier for the tool within a session.
	Name string

	// Description is a human-readable description of what the tool does.
	Description string

	// Parameters defines the arguments the tool accepts, keyed by argument
	// name. A nil or empty map means the tool takes no arguments.
	Parameters map[string]*Parameter

	// Required is the list of required parameter names.
	Required []string
}

// Validate validates the tool specification.
func (s *ToolSpec) Validate() error {
	eb := goerr.NewBuilder(goerr.V("tool", s))
	if s.Name == "" {
		return eb.Wrap(ErrInvalidTool, "name is required")
	}

	for name, param := range s.Parameters {
		if param == nil {
			return eb.Wrap(ErrInvalidTool, "parameter is nil", goerr.V("name", name))
		}
		if err := param.Validate(); err != nil {
			return eb.Wrap(err, "invalid parameter", goerr.V("name", name))
		}
	}

	for _, req := range s.Required {
		if _, ok := s.Parameters[req]; !ok {
			return eb.Wrap(ErrInvalidTool, "required parameter not found", goerr.V("name", req))
		}
	}

	return nil
}

// SchemaDoc returns the parameters as a JSON Schema object document. A tool
// without parameters yields {"type": "object", "properties": {}}.
func (s *ToolSpec) SchemaDoc() map[string]any {
	properties := map[string]any{}
	for name, param := range s.Parameters {
		properties[name] = param.schemaDoc()
	}

	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(s.Required) > 0 {
		req := make([]any, len(s.Required))
		for i, r := range s.Required {
			req[i] = r
		}
		doc["required"] = req
	}
	return doc
}

// ParameterType is the type of a parameter.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeNumber  ParameterType = "number"
	TypeInteger ParameterType = "integer"
	TypeBoolean ParameterType = "boolean"
	TypeArray   ParameterType = "array"
	TypeObject  ParameterType = "object"
)

// Parameter is a parameter of a tool.
type Parameter struct {
	// Title is the user-friendly name of the parameter. Optional.
	Title string

	// Type is the type of the parameter. Required.
	Type ParameterType

	// Description explains the purpose and expected format of the parameter.
	Description string

	// Enum is the list of allowed values. Only valid for string type.
	Enum []string

	// Properties defines the fields of an object type parameter.
	Properties map[string]*Parameter

	// Required lists the required field names when Type is object.
	Required []string

	// Items defines the element type of an array type parameter.
	Items *Parameter
}

// Validate validates the parameter.
func (p *Parameter) Validate() error {
	eb := goerr.NewBuilder(goerr.V("parameter", p))

	if p.Type == "" {
		return eb.Wrap(ErrInvalidParameter, "type is required")
	}

	if p.Type == TypeObject {
		if p.Properties == nil {
			return eb.Wrap(ErrInvalidParameter, "properties is required for object type")
		}
		for _, prop := range p.Properties {
			if err := prop.Validate(); err != nil {
				return eb.Wrap(err, "invalid property")
			}
		}
		for _, req := range p.Required {
			if _, ok := p.Properties[req]; !ok {
				return eb.Wrap(ErrInvalidParameter, "required field not found in properties", goerr.V("field", req))
			}
		}
	}

	if p.Type == TypeArray {
		if p.Items == nil {
			return eb.Wrap(ErrInvalidParameter, "items is required for array type")
		}
		if err := p.Items.Validate(); err != nil {
			return eb.Wrap(err, "invalid items")
		}
	}

	if len(p.Enum) > 0 && p.Type != TypeString {
		return eb.Wrap(ErrInvalidParameter, "enum is only valid for string type")
	}

	return nil
}

func (p *Parameter) schemaDoc() map[string]any {
	doc := map[string]any{
		"type": string(p.Type),
	}
	if p.Title != "" {
		doc["title"] = p.Title
	}
	if p.Description != "" {
		doc["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		enum := make([]any, len(p.Enum))
		for i, v := range p.Enum {
			enum[i] = v
		}
		doc["enum"] = enum
	}
	if p.Properties != nil {
		properties := map[string]any{}
		for name, prop := range p.Properties {
			properties[name] = prop.schemaDoc()
		}
		doc["properties"] = properties
		if len(p.Required) > 0 {
			req := make([]any, len(p.Required))
			for i, r := range p.Required {
				req[i] = r
			}
			doc["required"] = req
		}
	}
	if p.Items != nil {
		doc["items"] = p.Items.schemaDoc()
	}
	return doc
}
