package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateErrorJSON(t *testing.T) {
	err := errInvalidState("CommitBatch")

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(err.Error()), &data))
	assert.Equal(t, CodeInvalidState, data["code"])
	assert.Equal(t, "STATE_ERROR", data["type"])
	assert.Contains(t, data["message"], "CommitBatch")

	details, ok := data["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "CommitBatch", details["operation"])
}

func TestStateErrorFormat(t *testing.T) {
	err := errIncompatibleBatchOperation("ExecuteScalar", 2).(*StateError)

	short := err.FormatError(false)
	assert.True(t, strings.HasPrefix(short, CodeIncompatibleBatchOperation+": "))

	debug := err.FormatError(true)
	assert.Contains(t, debug, "stack_trace")
	assert.Contains(t, debug, `"batchDepth": 2`)
}

func TestStateErrorIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", errIncompatibleBatchOperation("ExecuteReader", 1))
	assert.ErrorIs(t, err, ErrIncompatibleBatchOperation)
	assert.NotErrorIs(t, err, ErrInvalidState)
	assert.NotErrorIs(t, err, ErrConfigurationResolution)
}

func TestConfigurationError(t *testing.T) {
	cause := errors.New("connection refused")
	err := errConfigurationResolution("Main", "GetInfo failed", cause)

	assert.Equal(t, "E_CONFIGURATION_RESOLUTION: GetInfo failed (caused by: connection refused)", err.Error())
	assert.ErrorIs(t, err, ErrConfigurationResolution)
	assert.ErrorIs(t, err, cause)

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Main", ce.Configuration)
	assert.False(t, ce.Timestamp.IsZero())
	assert.NotEmpty(t, ce.StackTrace)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(ce.FormatError(true)), &data))
	assert.Equal(t, "Main", data["configuration"])
	assert.Contains(t, data, "cause")
	assert.Contains(t, data, "timestamp")
}

func TestConfigurationErrorWithoutCause(t *testing.T) {
	err := errConfigurationResolution("Main", "remote service returned unusable metadata", nil)
	assert.Equal(t, "E_CONFIGURATION_RESOLUTION: remote service returned unusable metadata", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestFormatErrorHelper(t *testing.T) {
	assert.Equal(t, "", FormatError(nil, true))
	assert.Equal(t, "plain", FormatError(errors.New("plain"), true))

	err := errInvalidState("CommitBatch")
	assert.Equal(t, err.(*StateError).FormatError(false), FormatError(err, false))
	assert.Contains(t, FormatError(err, true), "stack_trace")
}
