package apperrors

import "errors"

var (
	ErrValidation            = errors.New("validation failed")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("not found")
	ErrAttachmentResolution  = errors.New("attachment resolution failed")
	ErrInvalidState          = errors.New("invalid connection state")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrInternal              = errors.New("internal error")
)

// Code maps an error to the wire-level error code sent to clients.
// Anything unrecognized collapses to INTERNAL_ERROR so internal details
// never leak out.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrAttachmentResolution):
		return "ATTACHMENT_RESOLUTION_FAILED"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrDependencyUnavailable):
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// Message returns the client-safe message for an error. Unexpected errors
// get a generic message.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAttachmentResolution),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrDependencyUnavailable):
		return err.Error()
	default:
		return "internal error"
	}
}
