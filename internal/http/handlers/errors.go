package handlers

// Machine-readable codes carried in ErrorResponse.Code.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeTooLarge         = "payload_too_large"
	ErrCodeUnavailable      = "service_unavailable"
	ErrCodeInternal         = "internal_error"
)
