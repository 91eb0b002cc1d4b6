package client

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-strohschein/remotedb/query"
	"github.com/dan-strohschein/remotedb/service"
	"github.com/dan-strohschein/remotedb/testutil"
)

func TestLoggingHook(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("DEBUG", &buf)

	exec := testutil.NewMockService()
	exec.ExpectNonQuery("Main").WillReturn(1)
	exec.ExpectScalar("Main").WillReturnError(errors.New("remote failure"))
	c := newTestClient(t, exec, "Main")
	c.RegisterHook(NewLoggingHook(logger, true, true, true))
	ctx := context.Background()

	_, err := c.ExecuteNonQuery(ctx, c.SetQuery(query.NewContext(renameStmt(1, "Ann"))))
	require.NoError(t, err)
	_, err = c.ExecuteScalar(ctx, c.SetQuery(query.NewContext(countStmt())))
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"message":"calling remote service"`)
	assert.Contains(t, out, `"message":"remote call completed"`)
	assert.Contains(t, out, `"message":"remote call failed"`)
	assert.Contains(t, out, `"operation":"ExecuteNonQuery"`)
	assert.Contains(t, out, `"result":"1"`)
	assert.Contains(t, out, `"duration"`)
	assert.Contains(t, out, `remote failure`)
}

func TestLoggingHookQuiet(t *testing.T) {
	var buf bytes.Buffer
	hook := NewLoggingHook(NewLogger("DEBUG", &buf), false, false, false)

	hc := &HookContext{Operation: service.MethodGetInfo, Metadata: map[string]interface{}{}, Result: "info"}
	require.NoError(t, hook.Before(context.Background(), hc))
	require.NoError(t, hook.After(context.Background(), hc))

	out := buf.String()
	assert.NotContains(t, out, "calling remote service")
	assert.NotContains(t, out, `"result"`)
	assert.NotContains(t, out, `"duration"`)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestMetricsHook(t *testing.T) {
	metrics := NewMetricsHook()

	exec := testutil.NewMockService()
	exec.ExpectNonQuery("Main").WillReturn(1).Twice()
	exec.ExpectScalar("Main").WillReturnError(errors.New("remote failure"))
	c := newTestClient(t, exec, "Main")
	c.RegisterHook(metrics)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.ExecuteNonQuery(ctx, c.SetQuery(query.NewContext(renameStmt(1, "Ann"))))
		require.NoError(t, err)
	}
	_, err := c.ExecuteScalar(ctx, c.SetQuery(query.NewContext(countStmt())))
	require.Error(t, err)

	assert.Equal(t, 2.0, promtest.ToFloat64(metrics.Calls(service.MethodExecuteNonQuery)))
	assert.Equal(t, 0.0, promtest.ToFloat64(metrics.Errors(service.MethodExecuteNonQuery)))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Calls(service.MethodExecuteScalar)))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Errors(service.MethodExecuteScalar)))
}

func TestMetricsHookRegisters(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	metrics := NewMetricsHook()
	require.NoError(t, reg.Register(metrics))

	hc := &HookContext{Operation: service.MethodExecuteBatch}
	require.NoError(t, metrics.After(context.Background(), hc))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "remotedb_client_calls_total")
	assert.Contains(t, names, "remotedb_client_call_duration_seconds")
}
