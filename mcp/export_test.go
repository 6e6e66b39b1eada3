package mcp

var (
	ContentToText          = contentToText
	ErrorPayload           = errorPayload
	InputSchemaToParameter = inputSchemaToParameter
	PropertyToParameter    = propertyToParameter
)
