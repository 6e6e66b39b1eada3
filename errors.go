package miniprompt

import "errors"

var (
	// ErrToolNameConflict is returned by NewSession when two tools share a name.
	ErrToolNameConflict = errors.New("tool name conflict")

	// ErrToolNotFound is returned by Call when the model requests a tool that is
	// not registered. The model broke the protocol; the session must not be
	// reused after this error.
	ErrToolNotFound = errors.New("requested tool not found")

	// ErrLoopLimitExceeded is returned by Call when the model keeps requesting
	// tools beyond the configured loop limit. The transcript is preserved for
	// inspection.
	ErrLoopLimitExceeded = errors.New("loop limit exceeded")

	// ErrNoMatchingBlock is returned by ExtractBlock when no fenced code block
	// matches the query.
	ErrNoMatchingBlock = errors.New("no matching code block")

	ErrInvalidTool        = errors.New("invalid tool specification")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrInvalidInputSchema = errors.New("invalid input schema")
)
