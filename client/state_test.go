package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionStateString(t *testing.T) {
	tests := []struct {
		state    ExecutionState
		expected string
	}{
		{Prepared, "PREPARED"},
		{Serialized, "SERIALIZED"},
		{Queued, "QUEUED"},
		{Dispatched, "DISPATCHED"},
		{Completed, "COMPLETED"},
		{Failed, "FAILED"},
		{ExecutionState(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}
