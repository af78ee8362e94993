package constants

const (
	// MaxMessageContentLength caps chat and group message bodies, in bytes,
	// after sanitization.
	MaxMessageContentLength = 4000

	// Pagination caps for history endpoints.
	MessageHistoryDefaultLimit = 50
	MessageHistoryMaxLimit     = 200

	GroupMessageHistoryDefaultLimit = 100
	GroupMessageHistoryMaxLimit     = 500
)
