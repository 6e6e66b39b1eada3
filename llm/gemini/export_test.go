package gemini

var (
	ConvertMessages = convertMessages
	ConvertTool     = convertTool
	ProcessResponse = processResponse
	ToResponseMap   = toResponseMap
)
