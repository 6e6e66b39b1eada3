package openai

var (
	ConvertMessages = convertMessages
	ConvertTool     = convertTool
	ProcessMessage  = processMessage
)
