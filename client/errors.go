package client

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"
)

// Error codes.
const (
	CodeInvalidState               = "E_INVALID_STATE"
	CodeIncompatibleBatchOperation = "E_INCOMPATIBLE_BATCH_OPERATION"
	CodeConfigurationResolution    = "E_CONFIGURATION_RESOLUTION"
)

// Sentinels for errors.Is. They match any error of the same type and code.
var (
	ErrInvalidState               = &StateError{Code: CodeInvalidState}
	ErrIncompatibleBatchOperation = &StateError{Code: CodeIncompatibleBatchOperation}
	ErrConfigurationResolution    = &ConfigurationError{Code: CodeConfigurationResolution}
)

// StateError represents an operation attempted in the wrong batch state.
type StateError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	StackTrace []string               `json:"stack_trace,omitempty"`
}

// Error implements the error interface.
// Returns JSON format; use FormatError for the short form.
func (e *StateError) Error() string {
	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	b, _ := json.Marshal(errorData)
	return string(b)
}

// FormatError formats the error based on debug mode.
func (e *StateError) FormatError(debugMode bool) string {
	if !debugMode {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
		"details": e.Details,
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Is matches state errors with the same code.
func (e *StateError) Is(target error) bool {
	t, ok := target.(*StateError)
	return ok && t.Code == e.Code
}

func errInvalidState(operation string) error {
	return &StateError{
		Code:    CodeInvalidState,
		Type:    "STATE_ERROR",
		Message: fmt.Sprintf("%s called without a matching BeginBatch", operation),
		Details: map[string]interface{}{
			"operation":  operation,
			"batchDepth": 0,
		},
		StackTrace: captureStackTrace(),
	}
}

func errIncompatibleBatchOperation(operation string, depth int) error {
	return &StateError{
		Code:    CodeIncompatibleBatchOperation,
		Type:    "STATE_ERROR",
		Message: fmt.Sprintf("%s cannot run while a batch is open", operation),
		Details: map[string]interface{}{
			"operation":  operation,
			"batchDepth": depth,
		},
		StackTrace: captureStackTrace(),
	}
}

// ConfigurationError reports that metadata for a configuration could not be
// resolved from the remote service.
type ConfigurationError struct {
	Code          string                 `json:"code"`
	Type          string                 `json:"type"`
	Message       string                 `json:"message"`
	Details       map[string]interface{} `json:"details"`
	Configuration string                 `json:"configuration"`
	Cause         error                  `json:"cause,omitempty"`
	StackTrace    []string               `json:"stack_trace,omitempty"`
	Timestamp     time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode.
func (e *ConfigurationError) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]interface{}{
		"code":          e.Code,
		"type":          e.Type,
		"message":       e.Message,
		"configuration": e.Configuration,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the remote error, if any.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Is matches configuration errors with the same code.
func (e *ConfigurationError) Is(target error) bool {
	t, ok := target.(*ConfigurationError)
	return ok && t.Code == e.Code
}

func errConfigurationResolution(name, message string, cause error) error {
	return &ConfigurationError{
		Code:          CodeConfigurationResolution,
		Type:          "CONFIGURATION_ERROR",
		Message:       message,
		Configuration: name,
		Details: map[string]interface{}{
			"configuration": name,
		},
		Cause:      cause,
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// captureStackTrace captures the current stack trace for error reporting.
func captureStackTrace() []string {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(3, pcs) // skip runtime.Callers, captureStackTrace and the constructor

	frames := make([]string, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := callersFrames.Next()
		frames = append(frames, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}

	return frames
}

// FormatError is a helper to format any error with debug mode support.
func FormatError(err error, debugMode bool) string {
	if err == nil {
		return ""
	}

	type debugFormatter interface {
		FormatError(bool) string
	}

	if formatter, ok := err.(debugFormatter); ok {
		return formatter.FormatError(debugMode)
	}

	return err.Error()
}
