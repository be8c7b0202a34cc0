package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails summarises an error for structured logging.
type ErrorDetails struct {
	Kind    string
	Code    string
	Hint    string
	Message string
}

// Details classifies err by its marker and returns log-friendly fields.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Message: err.Error()}
	switch {
	case errors.Is(err, ErrValidation):
		details.Kind, details.Code = "validation", "E_VALIDATION"
		details.Hint = "check the submitted input"
	case errors.Is(err, ErrNotFound):
		details.Kind, details.Code = "not_found", "E_NOT_FOUND"
		details.Hint = "verify the job id or source reference"
	case errors.Is(err, ErrConflict):
		details.Kind, details.Code = "conflict", "E_CONFLICT"
		details.Hint = "wait for the job to reach a state that accepts this action"
	case errors.Is(err, ErrConfiguration):
		details.Kind, details.Code = "configuration", "E_CONFIG"
		details.Hint = "review config.toml"
	case errors.Is(err, ErrExternalTool):
		details.Kind, details.Code = "external_tool", "E_EXTERNAL_TOOL"
		details.Hint = "run `overlaystudio status` to verify external binaries"
	case errors.Is(err, ErrTimeout):
		details.Kind, details.Code = "timeout", "E_TIMEOUT"
		details.Hint = "increase the relevant timeout or retry later"
	default:
		details.Kind, details.Code = "transient", "E_TRANSIENT"
		details.Hint = "retry the operation"
	}
	return details
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
