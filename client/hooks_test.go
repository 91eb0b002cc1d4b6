package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-strohschein/remotedb/query"
	"github.com/dan-strohschein/remotedb/service"
	"github.com/dan-strohschein/remotedb/testutil"
)

// recordingHook records the operations it saw and can fail on demand.
type recordingHook struct {
	name      string
	beforeErr error
	afterErr  error

	mu       sync.Mutex
	before   []string
	after    []*HookContext
	sequence *[]string
}

func (h *recordingHook) Name() string { return h.name }

func (h *recordingHook) Before(ctx context.Context, hc *HookContext) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.before = append(h.before, hc.Operation)
	if h.sequence != nil {
		*h.sequence = append(*h.sequence, h.name+".before")
	}
	hc.Metadata[h.name] = true
	return h.beforeErr
}

func (h *recordingHook) After(ctx context.Context, hc *HookContext) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.after = append(h.after, hc)
	if h.sequence != nil {
		*h.sequence = append(*h.sequence, h.name+".after")
	}
	return h.afterErr
}

func (h *recordingHook) operations() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ops := make([]string, len(h.after))
	for i, hc := range h.after {
		ops[i] = hc.Operation
	}
	return ops
}

func TestRegisterHook(t *testing.T) {
	c := newTestClient(t, testutil.NewMockService(), "Main")

	c.RegisterHook(&recordingHook{name: "a"})
	c.RegisterHook(&recordingHook{name: "b"})
	assert.Equal(t, []string{"a", "b"}, c.GetHooks())

	// same name replaces in place
	replacement := &recordingHook{name: "a"}
	c.RegisterHook(replacement)
	assert.Equal(t, []string{"a", "b"}, c.GetHooks())
	assert.Same(t, replacement, c.snapshotHooks()[0])

	assert.True(t, c.UnregisterHook("a"))
	assert.False(t, c.UnregisterHook("a"))
	assert.Equal(t, []string{"b"}, c.GetHooks())
}

func TestHooksFromOptions(t *testing.T) {
	exec := testutil.NewMockService()
	c, err := NewClient(&ClientOptions{
		ServiceFactory: exec.Factory(),
		Logger:         NewNoopLogger(),
		Hooks:          []Hook{&recordingHook{name: "first"}, NewMetricsHook()},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "metrics"}, c.GetHooks())
}

func TestHookOrderAndContext(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectNonQuery("Main").WillReturn(7)
	c := newTestClient(t, exec, "Main")

	var sequence []string
	first := &recordingHook{name: "first", sequence: &sequence}
	second := &recordingHook{name: "second", sequence: &sequence}
	c.RegisterHook(first)
	c.RegisterHook(second)

	_, err := c.ExecuteNonQuery(context.Background(), c.SetQuery(query.NewContext(renameStmt(1, "Ann"))))
	require.NoError(t, err)

	assert.Equal(t, []string{"first.before", "second.before", "first.after", "second.after"}, sequence)

	require.Len(t, second.after, 1)
	hc := second.after[0]
	assert.Equal(t, service.MethodExecuteNonQuery, hc.Operation)
	assert.Equal(t, "Main", hc.Configuration)
	assert.Equal(t, 7, hc.Result)
	assert.NoError(t, hc.Error)
	assert.NotEmpty(t, hc.TraceID)
	assert.Equal(t, true, hc.Metadata["first"])
	assert.False(t, hc.StartTime.IsZero())
}

func TestHookBeforeErrorAbortsCall(t *testing.T) {
	exec := testutil.NewMockService()
	c := newTestClient(t, exec, "Main")

	veto := errors.New("not now")
	c.RegisterHook(&recordingHook{name: "veto", beforeErr: veto})

	_, err := c.ExecuteNonQuery(context.Background(), c.SetQuery(query.NewContext(renameStmt(1, "Ann"))))
	assert.ErrorIs(t, err, veto)
	assert.Equal(t, 0, exec.GetCallCount(service.MethodExecuteNonQuery))
	assert.Equal(t, 0, exec.OpenHandles())
}

func TestHookAfterSeesFailure(t *testing.T) {
	exec := testutil.NewMockService()
	boom := errors.New("remote failure")
	exec.ExpectScalar("Main").WillReturnError(boom)
	c := newTestClient(t, exec, "Main")

	rec := &recordingHook{name: "rec", afterErr: errors.New("hook failure")}
	c.RegisterHook(rec)

	_, err := c.ExecuteScalar(context.Background(), c.SetQuery(query.NewContext(countStmt())))
	assert.ErrorIs(t, err, boom)

	require.Len(t, rec.after, 1)
	assert.ErrorIs(t, rec.after[0].Error, boom)
}

func TestHookAfterErrorReturnedOnSuccess(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectScalar("Main").WillReturn("x")
	c := newTestClient(t, exec, "Main")

	hookErr := errors.New("hook failure")
	c.RegisterHook(&recordingHook{name: "rec", afterErr: hookErr})

	_, err := c.ExecuteScalar(context.Background(), c.SetQuery(query.NewContext(countStmt())))
	assert.ErrorIs(t, err, hookErr)
}

func TestHooksCoverConfigurationLookup(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectGetInfo("Main").WillReturn(postgresInfo("Main"))
	c := newTestClient(t, exec, "Main")

	rec := &recordingHook{name: "rec"}
	c.RegisterHook(rec)

	_, err := c.ContextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{service.MethodGetInfo}, rec.operations())
}

func TestHookMetadataRecordsPayloadSize(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectReader("Main").WillReturn(peopleTable(t))
	c := newTestClient(t, exec, "Main")

	rec := &recordingHook{name: "rec"}
	c.RegisterHook(rec)

	r, err := c.ExecuteReader(context.Background(), c.SetQuery(query.NewContext(selectStmt())))
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, rec.after, 1)
	size, ok := rec.after[0].Metadata["bytes"].(int)
	require.True(t, ok)
	assert.Greater(t, size, 0)
}
