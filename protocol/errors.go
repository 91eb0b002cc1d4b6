// Package protocol provides error codes and types for the remote query
// protocol.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents standardized error codes across transport layers
type ErrorCode int

const (
	// Connection errors (1000-1099)
	ErrorCodeConnectionRefused ErrorCode = 1001
	ErrorCodeTimeout           ErrorCode = 1002
	ErrorCodeAuthFailed        ErrorCode = 1003
	ErrorCodeUnavailable       ErrorCode = 1005
	ErrorCodeCanceled          ErrorCode = 1006
	ErrorCodeBackpressure      ErrorCode = 1010

	// Protocol errors (2000-2099)
	ErrorCodeProtocolError ErrorCode = 2001
	ErrorCodeUnknownMethod ErrorCode = 2002

	// Execution errors (3000-3099)
	ErrorCodeQueryError           ErrorCode = 3001
	ErrorCodeUnknownConfiguration ErrorCode = 3002
)

// TransportError represents an error with structured error code
type TransportError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	IsRetryable bool                   `json:"isRetryable"`
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if len(e.Details) > 0 {
		detailsJSON, _ := json.Marshal(e.Details)
		return fmt.Sprintf("[%d] %s (details: %s)", e.Code, e.Message, string(detailsJSON))
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// NewTransportError creates a new transport error
func NewTransportError(code ErrorCode, message string, details map[string]interface{}) *TransportError {
	return &TransportError{
		Code:        code,
		Message:     message,
		Details:     details,
		IsRetryable: isRetryable(code),
	}
}

// isRetryable determines if an error code represents a retryable error
func isRetryable(code ErrorCode) bool {
	switch code {
	case ErrorCodeTimeout,
		ErrorCodeUnavailable,
		ErrorCodeBackpressure:
		return true
	default:
		return false
	}
}

// ConnectionError creates a connection-related transport error
func ConnectionError(message string, details map[string]interface{}) *TransportError {
	return NewTransportError(ErrorCodeConnectionRefused, message, details)
}

// TimeoutError creates a timeout transport error
func TimeoutError(message string, details map[string]interface{}) *TransportError {
	return NewTransportError(ErrorCodeTimeout, message, details)
}

// QueryError creates an error for a statement the remote executor rejected.
func QueryError(message string, details map[string]interface{}) *TransportError {
	return NewTransportError(ErrorCodeQueryError, message, details)
}

// BackpressureError creates a backpressure transport error
func BackpressureError(queueDepth int) *TransportError {
	return NewTransportError(ErrorCodeBackpressure, "message queue full", map[string]interface{}{
		"queueDepth": queueDepth,
	})
}

// ToJSON serializes the error to JSON for cross-language transmission
func (e *TransportError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON deserializes a transport error from JSON
func FromJSON(data []byte) (*TransportError, error) {
	var err TransportError
	if unmarshalErr := json.Unmarshal(data, &err); unmarshalErr != nil {
		return nil, unmarshalErr
	}
	return &err, nil
}

// AsTransportError converts err into a TransportError. Errors that already are
// one are returned unchanged; anything else becomes a query error.
func AsTransportError(err error) *TransportError {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return QueryError(err.Error(), nil)
}

// ErrSerialization is matched by every CodecError via errors.Is.
var ErrSerialization = errors.New("serialization failure")

// CodecError reports a payload that could not be encoded or decoded.
type CodecError struct {
	Op      string // "encode" or "decode"
	Subject string // query, batch, result, scalar, info, request, response
	Message string
	Cause   error
}

func (e *CodecError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Subject, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CodecError) Unwrap() error { return e.Cause }

// Is matches ErrSerialization.
func (e *CodecError) Is(target error) bool {
	return target == ErrSerialization
}

func encodeErr(subject, message string, cause error) error {
	return &CodecError{Op: "encode", Subject: subject, Message: message, Cause: cause}
}

func decodeErr(subject, message string, cause error) error {
	return &CodecError{Op: "decode", Subject: subject, Message: message, Cause: cause}
}
