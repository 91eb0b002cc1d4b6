package testutil_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-strohschein/remotedb/protocol"
	"github.com/dan-strohschein/remotedb/query"
	"github.com/dan-strohschein/remotedb/result"
	"github.com/dan-strohschein/remotedb/service"
	"github.com/dan-strohschein/remotedb/sqlprovider"
	"github.com/dan-strohschein/remotedb/testutil"
)

func rawQuery(t *testing.T, text string) []byte {
	t.Helper()
	data, err := protocol.NewCodec().EncodeQuery(&query.Statement{Kind: query.KindRaw, Text: text}, nil)
	require.NoError(t, err)
	return data
}

func TestMockService_Expectations(t *testing.T) {
	mock := testutil.NewMockService()
	ctx := context.Background()

	info := &service.Info{Configurations: []string{"Main"}, Dialect: sqlprovider.SQLite}
	mock.ExpectGetInfo("Main").WillReturn(info)
	mock.ExpectNonQuery("Main").WillReturn(3).Twice()

	got, err := mock.GetInfo(ctx, "Main")
	require.NoError(t, err)
	assert.Same(t, info, got)

	for i := 0; i < 2; i++ {
		n, err := mock.ExecuteNonQuery(ctx, "Main", rawQuery(t, "DELETE FROM T"))
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}

	_, err = mock.ExecuteNonQuery(ctx, "Main", rawQuery(t, "DELETE FROM T"))
	assert.Error(t, err)

	mock.VerifyExpectations(t)
	assert.Equal(t, 3, mock.GetCallCount(service.MethodExecuteNonQuery))
	assert.Equal(t, "DELETE FROM T", mock.GetCalls()[1].Statement.Text)
}

func TestMockService_ScalarAndReader(t *testing.T) {
	mock := testutil.NewMockService()
	ctx := context.Background()
	codec := protocol.NewCodec()

	tbl := result.NewTable(result.Column{Name: "N"})
	require.NoError(t, tbl.AddRow(int64(1)))

	mock.ExpectScalar("").WillReturn("hello")
	mock.ExpectReader("").WillReturn(tbl)

	data, err := mock.ExecuteScalar(ctx, "", rawQuery(t, "SELECT 'hello'"))
	require.NoError(t, err)
	v, err := codec.DecodeScalar(data)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	data, err = mock.ExecuteReader(ctx, "", rawQuery(t, "SELECT 1 AS N"))
	require.NoError(t, err)
	got, err := codec.DecodeResult(data)
	require.NoError(t, err)
	assert.Equal(t, tbl, got)
}

func TestMockService_BatchDecodesStatements(t *testing.T) {
	mock := testutil.NewMockService()
	codec := protocol.NewCodec()
	mock.ExpectBatch("Main")

	payload, err := codec.EncodeBatch([][]byte{rawQuery(t, "A"), rawQuery(t, "B")})
	require.NoError(t, err)
	require.NoError(t, mock.ExecuteBatch(context.Background(), "Main", payload))

	calls := mock.GetCalls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Batch, 2)
	assert.Equal(t, "A", calls[0].Batch[0].Text)
	assert.Equal(t, "B", calls[0].Batch[1].Text)
}

func TestMockService_ErrorExpectations(t *testing.T) {
	mock := testutil.NewMockService()
	boom := errors.New("boom")
	mock.ExpectBatch("Main").WillReturnError(boom)

	payload, err := protocol.NewCodec().EncodeBatch(nil)
	require.NoError(t, err)
	assert.ErrorIs(t, mock.ExecuteBatch(context.Background(), "Main", payload), boom)
}

func TestMockService_Strict(t *testing.T) {
	mock := testutil.NewMockService().Strict()
	assert.Panics(t, func() {
		_, _ = mock.GetInfo(context.Background(), "Missing")
	})
}

func TestMockService_FactoryCountsHandles(t *testing.T) {
	mock := testutil.NewMockService()
	factory := mock.Factory()

	h1, err := factory(context.Background())
	require.NoError(t, err)
	h2, err := factory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, mock.OpenHandles())

	require.NoError(t, h1.Close())
	assert.Error(t, h1.Close())
	require.NoError(t, h2.Close())
	assert.Equal(t, 0, mock.OpenHandles())
	assert.Equal(t, 2, mock.Released())

	mock.WithAcquireError(errors.New("no executor"))
	_, err = factory(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, mock.Acquired())

	mock.Reset()
	assert.Equal(t, 0, mock.Acquired())
}
