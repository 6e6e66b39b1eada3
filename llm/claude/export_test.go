package claude

var (
	ConvertMessages = convertMessages
	ConvertTool     = convertTool
	ProcessResponse = processResponse
)
