package constants

const (
	// Shared REST error codes
	ErrCodeAuthFailed      = "AUTH_FAILED"
	ErrCodeAuthExpired     = "AUTH_EXPIRED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeInternal        = "INTERNAL_ERROR"

	// Messaging domain errors
	ErrCodeMessageTooLong = "MESSAGE_TOO_LONG"
)
