package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportErrorFormatting(t *testing.T) {
	err := ConnectionError("dial failed", nil)
	assert.Equal(t, "[1001] dial failed", err.Error())
	assert.False(t, err.IsRetryable)

	err = BackpressureError(12)
	assert.Contains(t, err.Error(), `"queueDepth":12`)
	assert.True(t, err.IsRetryable)
}

func TestTransportErrorJSON(t *testing.T) {
	err := QueryError("syntax error", map[string]interface{}{"line": "1"})
	data, jerr := err.ToJSON()
	require.NoError(t, jerr)

	back, jerr := FromJSON(data)
	require.NoError(t, jerr)
	assert.Equal(t, err, back)
}

func TestAsTransportError(t *testing.T) {
	assert.Nil(t, AsTransportError(nil))

	te := TimeoutError("slow", nil)
	assert.Same(t, te, AsTransportError(fmt.Errorf("wrapped: %w", te)))

	converted := AsTransportError(errors.New("boom"))
	assert.Equal(t, ErrorCodeQueryError, converted.Code)
	assert.Equal(t, "boom", converted.Message)
}

func TestCodecErrorIs(t *testing.T) {
	cause := errors.New("bad bytes")
	err := decodeErr("result", "unmarshal failed", cause)

	assert.True(t, errors.Is(err, ErrSerialization))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "decode result: unmarshal failed: bad bytes", err.Error())
}
