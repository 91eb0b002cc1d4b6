package grpcservice

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dan-strohschein/remotedb/protocol"
	"github.com/dan-strohschein/remotedb/query"
	"github.com/dan-strohschein/remotedb/result"
	"github.com/dan-strohschein/remotedb/service"
	"github.com/dan-strohschein/remotedb/service/framed"
	"github.com/dan-strohschein/remotedb/sqlprovider"
	"github.com/dan-strohschein/remotedb/testutil"
)

var _ service.Service = (*Client)(nil)

func startServer(t *testing.T, exec service.Service) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterServer(srv, framed.NewHandler(exec, nil))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := Dial(Options{
		Address: "passthrough:///bufnet",
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func rawQuery(t *testing.T, text string) []byte {
	t.Helper()
	data, err := protocol.NewCodec().EncodeQuery(&query.Statement{Kind: query.KindRaw, Text: text}, nil)
	require.NoError(t, err)
	return data
}

func TestClientRoundTrips(t *testing.T) {
	tbl := result.NewTable(result.Column{Name: "Name"})
	require.NoError(t, tbl.AddRow("Ann"))

	exec := testutil.NewMockService()
	exec.ExpectGetInfo("Main").WillReturn(&service.Info{
		Configurations: []string{"Main", "Primary"},
		Dialect:        sqlprovider.MySQL,
		Flags:          sqlprovider.MySQLFlags(),
	})
	exec.ExpectNonQuery("Main").WillReturn(3)
	exec.ExpectScalar("Main").WillReturn("x")
	exec.ExpectReader("Main").WillReturn(tbl)
	exec.ExpectBatch("Main").WillReturn(nil)

	conn := startServer(t, exec)
	ctx, _ := testutil.WithTimeout(t)
	svc, err := SharedFactory(conn, nil)(ctx)
	require.NoError(t, err)
	defer svc.Close()

	codec := protocol.NewCodec()

	info, err := svc.GetInfo(ctx, "Main")
	require.NoError(t, err)
	assert.Equal(t, sqlprovider.MySQL, info.Dialect)
	assert.Equal(t, sqlprovider.MySQLFlags(), info.Flags)

	n, err := svc.ExecuteNonQuery(ctx, "Main", rawQuery(t, "DELETE FROM T"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := svc.ExecuteScalar(ctx, "Main", rawQuery(t, "SELECT 'x'"))
	require.NoError(t, err)
	v, err := codec.DecodeScalar(data)
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	data, err = svc.ExecuteReader(ctx, "Main", rawQuery(t, "SELECT Name FROM T"))
	require.NoError(t, err)
	got, err := codec.DecodeResult(data)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Ann"}}, got.Rows)

	batch, err := codec.EncodeBatch([][]byte{rawQuery(t, "A"), rawQuery(t, "B")})
	require.NoError(t, err)
	require.NoError(t, svc.ExecuteBatch(ctx, "Main", batch))

	calls := exec.GetCalls()
	require.Len(t, calls, 5)
	assert.Len(t, calls[4].Batch, 2)
	exec.VerifyExpectations(t)
}

func TestReaderPreservesValueTypes(t *testing.T) {
	tbl, err := testutil.NewPersonFactory().Table(3)
	require.NoError(t, err)
	tbl.Rows[1][1] = nil

	exec := testutil.NewMockService()
	exec.ExpectReader("Main").WillReturn(tbl)

	conn := startServer(t, exec)
	ctx, _ := testutil.WithTimeout(t)
	c := NewClient(conn, nil, false)

	data, err := c.ExecuteReader(ctx, "Main", rawQuery(t, "SELECT * FROM Person"))
	require.NoError(t, err)
	got, err := protocol.NewCodec().DecodeResult(data)
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns, got.Columns)
	assert.Equal(t, tbl.Rows, got.Rows)
}

func TestErrorsKeepTransportCode(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectNonQuery("Main").WillReturnError(errors.New("constraint violated"))
	exec.ExpectGetInfo("Gone").WillReturnError(
		protocol.NewTransportError(protocol.ErrorCodeUnknownConfiguration, "no such configuration", map[string]interface{}{"name": "Gone"}))

	conn := startServer(t, exec)
	c := NewClient(conn, nil, false)

	_, err := c.ExecuteNonQuery(context.Background(), "Main", rawQuery(t, "X"))
	var te *protocol.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, protocol.ErrorCodeQueryError, te.Code)
	assert.Equal(t, "constraint violated", te.Message)

	_, err = c.GetInfo(context.Background(), "Gone")
	require.ErrorAs(t, err, &te)
	assert.Equal(t, protocol.ErrorCodeUnknownConfiguration, te.Code)
	assert.Equal(t, "Gone", te.Details["name"])
}

func TestClosedHandleRejectsCalls(t *testing.T) {
	conn := startServer(t, testutil.NewMockService())
	c := NewClient(conn, nil, false)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.GetInfo(context.Background(), "Main")
	var te *protocol.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, protocol.ErrorCodeConnectionRefused, te.Code)
}

func TestCodeMapping(t *testing.T) {
	assert.Equal(t, codes.NotFound, CodeOf(protocol.ErrorCodeUnknownConfiguration))
	assert.Equal(t, codes.Unknown, CodeOf(protocol.ErrorCode(42)))
	assert.Equal(t, protocol.ErrorCodeTimeout, ErrorCodeOf(codes.DeadlineExceeded))
	assert.Equal(t, protocol.ErrorCodeAuthFailed, ErrorCodeOf(codes.PermissionDenied))
	assert.Equal(t, protocol.ErrorCodeQueryError, ErrorCodeOf(codes.Aborted))

	for code, grpcCode := range toGRPC {
		if code == protocol.ErrorCodeConnectionRefused {
			continue
		}
		assert.Equal(t, code, ErrorCodeOf(grpcCode), "code %d", code)
	}
}

func TestDialRequiresAddress(t *testing.T) {
	_, err := Dial(Options{})
	assert.Error(t, err)

	_, err = Dial(Options{Address: "localhost:1", TLS: true, CAFile: "/nonexistent/ca.pem"})
	assert.Error(t, err)
}
