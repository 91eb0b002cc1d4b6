package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-strohschein/remotedb/query"
	"github.com/dan-strohschein/remotedb/service"
	"github.com/dan-strohschein/remotedb/testutil"
)

func renameStmt(id int64, name string) *query.Statement {
	return &query.Statement{
		Kind:  query.KindUpdate,
		Table: "Person",
		Set: []*query.Assignment{
			{Column: "Name", Value: query.Param("name")},
		},
		Where: []*query.Predicate{
			{Column: "ID", Op: query.OpEq, Right: query.Literal(id)},
		},
		Parameters: []*query.Parameter{query.NewParameter("name", name)},
	}
}

func TestBatchQueuesNonQueries(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectBatch("Main")
	c := newTestClient(t, exec, "Main")
	ctx := context.Background()

	c.BeginBatch()
	for i := int64(1); i <= 3; i++ {
		e := c.SetQuery(query.NewContext(renameStmt(i, "Ann")))
		n, err := c.ExecuteNonQuery(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, QueuedResult, n)
		assert.Equal(t, Queued, e.State())
	}

	// nothing reaches the service before the commit
	assert.Equal(t, 0, exec.Acquired())
	assert.Equal(t, 3, c.PendingStatements())

	require.NoError(t, c.CommitBatch(ctx))

	calls := exec.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, service.MethodExecuteBatch, calls[0].Method)
	require.Len(t, calls[0].Batch, 3)
	assert.Equal(t, "Person", calls[0].Batch[0].Table)
	assert.Equal(t, 0, c.PendingStatements())
	assert.Equal(t, 0, exec.OpenHandles())
	exec.VerifyExpectations(t)
}

func TestBatchNestingFlushesOnOutermostCommit(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectBatch("Main")
	c := newTestClient(t, exec, "Main")
	ctx := context.Background()

	c.BeginBatch()
	c.BeginBatch()
	assert.Equal(t, 2, c.BatchDepth())

	_, err := c.ExecuteNonQuery(ctx, c.SetQuery(query.NewContext(renameStmt(1, "Ann"))))
	require.NoError(t, err)

	require.NoError(t, c.CommitBatch(ctx))
	assert.Equal(t, 1, c.BatchDepth())
	assert.Equal(t, 0, exec.GetCallCount(service.MethodExecuteBatch))

	_, err = c.ExecuteNonQuery(ctx, c.SetQuery(query.NewContext(renameStmt(2, "Bob"))))
	require.NoError(t, err)

	require.NoError(t, c.CommitBatch(ctx))
	assert.Equal(t, 0, c.BatchDepth())

	calls := exec.GetCalls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Batch, 2)
}

func TestEmptyBatchIsStillSent(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectBatch("Main")
	c := newTestClient(t, exec, "Main")

	c.BeginBatch()
	require.NoError(t, c.CommitBatch(context.Background()))

	calls := exec.GetCalls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Batch)
	exec.VerifyExpectations(t)
}

func TestCommitWithoutBeginFails(t *testing.T) {
	exec := testutil.NewMockService()
	c := newTestClient(t, exec, "Main")

	err := c.CommitBatch(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 0, exec.Acquired())
}

func TestBatchRejectsScalarAndReader(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectBatch("Main")
	c := newTestClient(t, exec, "Main")
	ctx := context.Background()

	c.BeginBatch()
	_, err := c.ExecuteNonQuery(ctx, c.SetQuery(query.NewContext(renameStmt(1, "Ann"))))
	require.NoError(t, err)

	_, err = c.ExecuteScalar(ctx, c.SetQuery(query.NewContext(countStmt())))
	assert.ErrorIs(t, err, ErrIncompatibleBatchOperation)

	_, err = c.ExecuteReader(ctx, c.SetQuery(query.NewContext(selectStmt())))
	assert.ErrorIs(t, err, ErrIncompatibleBatchOperation)

	// the batch is untouched by the rejected calls
	assert.Equal(t, 1, c.BatchDepth())
	assert.Equal(t, 1, c.PendingStatements())
	assert.Equal(t, 0, exec.Acquired())

	require.NoError(t, c.CommitBatch(ctx))
	exec.VerifyExpectations(t)
}

func TestBatchFailureDiscardsQueue(t *testing.T) {
	exec := testutil.NewMockService()
	boom := errors.New("deadlock")
	exec.ExpectBatch("Main").WillReturnError(boom)
	c := newTestClient(t, exec, "Main")
	ctx := context.Background()

	c.BeginBatch()
	_, err := c.ExecuteNonQuery(ctx, c.SetQuery(query.NewContext(renameStmt(1, "Ann"))))
	require.NoError(t, err)

	err = c.CommitBatch(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.BatchDepth())
	assert.Equal(t, 0, c.PendingStatements())
	assert.Equal(t, 0, exec.OpenHandles())

	// a fresh batch starts empty
	exec.ExpectBatch("Main")
	c.BeginBatch()
	require.NoError(t, c.CommitBatch(ctx))
	calls := exec.GetCalls()
	assert.Empty(t, calls[len(calls)-1].Batch)
}

func TestBatchAcquireFailure(t *testing.T) {
	exec := testutil.NewMockService()
	c := newTestClient(t, exec, "Main")
	ctx := context.Background()

	c.BeginBatch()
	_, err := c.ExecuteNonQuery(ctx, c.SetQuery(query.NewContext(renameStmt(1, "Ann"))))
	require.NoError(t, err)

	exec.WithAcquireError(errors.New("no route"))
	err = c.CommitBatch(ctx)
	assert.EqualError(t, err, "no route")
	assert.Equal(t, 0, c.BatchDepth())
}

func TestBatchReleasesHandleOnPanic(t *testing.T) {
	exec := testutil.NewMockService()
	c := newCrashingClient(t, exec)
	ctx := context.Background()

	c.BeginBatch()
	_, err := c.ExecuteNonQuery(ctx, c.SetQuery(query.NewContext(renameStmt(1, "Ann"))))
	require.NoError(t, err)
	assert.Equal(t, 0, exec.Acquired())

	assert.PanicsWithValue(t, "executor crashed", func() {
		_ = c.CommitBatch(ctx)
	})
	assert.Equal(t, 1, exec.Acquired())
	assert.Equal(t, 0, exec.OpenHandles())
	assert.Equal(t, 0, c.BatchDepth())
	assert.Equal(t, 0, c.PendingStatements())
}
