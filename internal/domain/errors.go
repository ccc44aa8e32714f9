package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrGeneration   = errors.New("content generation failed")
	ErrRendering    = errors.New("document rendering failed")
	ErrNotification = errors.New("notification delivery failed")
)

// RenderingError is returned by the report workflow when the PDF could not be
// produced. The report row exists with an empty location.
type RenderingError struct {
	ReportID string
	Err      error
}

func (e *RenderingError) Error() string {
	return fmt.Sprintf("render report %s: %v", e.ReportID, e.Err)
}

func (e *RenderingError) Unwrap() []error {
	return []error{ErrRendering, e.Err}
}

// FailureKind names the failure class of err, matching the API error codes.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_request"
	case errors.Is(err, ErrRendering):
		return "rendering_failed"
	case errors.Is(err, ErrGeneration):
		return "generation_failed"
	case errors.Is(err, ErrNotification):
		return "notification_failed"
	default:
		return "internal_error"
	}
}
