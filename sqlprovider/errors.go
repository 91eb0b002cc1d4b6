package sqlprovider

import (
	"fmt"
)

// Error codes.
const (
	CodeDialectConstruction = "E_DIALECT_CONSTRUCTION"
	CodeUnsupported         = "E_DIALECT_UNSUPPORTED"
)

// ErrDialectConstruction matches any ConstructionError with errors.Is.
var ErrDialectConstruction = &ConstructionError{Code: CodeDialectConstruction}

// ConstructionError reports that no strategy could be built for a dialect.
type ConstructionError struct {
	Code    string                 `json:"code"`
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
	Dialect string                 `json:"dialect,omitempty"`
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors with the same code.
func (e *ConstructionError) Is(target error) bool {
	t, ok := target.(*ConstructionError)
	return ok && t.Code == e.Code
}

func errNoConstructor(dialect string) error {
	return &ConstructionError{
		Code:    CodeDialectConstruction,
		Type:    "DIALECT_ERROR",
		Message: fmt.Sprintf("no constructor registered for dialect %q", dialect),
		Details: map[string]interface{}{
			"dialect": dialect,
		},
		Dialect: dialect,
	}
}

// UnsupportedError reports a statement feature the dialect cannot render.
type UnsupportedError struct {
	Dialect string
	Feature string
}

// Error implements the error interface.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s does not support %s", CodeUnsupported, e.Dialect, e.Feature)
}
