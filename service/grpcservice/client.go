// Package grpcservice carries the query service over gRPC. Requests and
// responses are the protocol envelopes in their structpb form, so no generated
// stubs are needed.
package grpcservice

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dan-strohschein/remotedb/protocol"
	"github.com/dan-strohschein/remotedb/service"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "remotedb.v1.QueryService"

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Options configures a gRPC connection.
type Options struct {
	// Address is the dial target, e.g. "db.internal:7443".
	Address string

	TLS                bool
	CAFile             string
	CertFile           string
	KeyFile            string
	InsecureSkipVerify bool

	// DialOptions are appended after the credentials option.
	DialOptions []grpc.DialOption
}

// Dial creates a client connection. The connection is established lazily on
// the first call.
func Dial(opts Options) (*grpc.ClientConn, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	creds := insecure.NewCredentials()
	if opts.TLS {
		cfg, err := tlsConfig(opts)
		if err != nil {
			return nil, err
		}
		creds = credentials.NewTLS(cfg)
	}
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts.DialOptions...)
	conn, err := grpc.NewClient(opts.Address, dialOpts...)
	if err != nil {
		return nil, protocol.ConnectionError("failed to create grpc client", map[string]interface{}{
			"address": opts.Address,
			"error":   err.Error(),
		})
	}
	return conn, nil
}

func tlsConfig(opts Options) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}
	if opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, protocol.ConnectionError("failed to load CA certificate", map[string]interface{}{
				"caFile": opts.CAFile,
			})
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, protocol.ConnectionError("failed to parse CA certificate", map[string]interface{}{
				"caFile": opts.CAFile,
			})
		}
		cfg.RootCAs = pool
	}
	if opts.CertFile != "" && opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, protocol.ConnectionError("failed to load client certificate and key", map[string]interface{}{
				"certFile": opts.CertFile,
				"keyFile":  opts.KeyFile,
			})
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// Client is a service handle over a gRPC connection.
type Client struct {
	conn   *grpc.ClientConn
	codec  protocol.Codec
	owns   bool
	nextID atomic.Uint64
	closed atomic.Bool
}

// NewClient creates a handle over conn. When owns is true, Close also closes
// the connection.
func NewClient(conn *grpc.ClientConn, codec protocol.Codec, owns bool) *Client {
	if codec == nil {
		codec = protocol.NewCodec()
	}
	return &Client{conn: conn, codec: codec, owns: owns}
}

// SharedFactory returns a factory whose handles share conn.
func SharedFactory(conn *grpc.ClientConn, codec protocol.Codec) service.Factory {
	return func(ctx context.Context) (service.Service, error) {
		return NewClient(conn, codec, false), nil
	}
}

// DialFactory returns a factory that creates a connection per handle.
func DialFactory(opts Options, codec protocol.Codec) service.Factory {
	return func(ctx context.Context) (service.Service, error) {
		conn, err := Dial(opts)
		if err != nil {
			return nil, err
		}
		return NewClient(conn, codec, true), nil
	}
}

func (c *Client) call(ctx context.Context, method, configuration string, data []byte) (*protocol.Response, error) {
	if c.closed.Load() {
		return nil, protocol.ConnectionError("service handle is closed", nil)
	}

	req := &protocol.Request{
		ID:            strconv.FormatUint(c.nextID.Add(1), 10),
		Method:        method,
		Configuration: configuration,
		Data:          data,
	}
	out := new(structpb.Struct)
	var trailer metadata.MD
	if err := c.conn.Invoke(ctx, fullMethod(method), req.Message(), out, grpc.Trailer(&trailer)); err != nil {
		return nil, fromStatus(err, trailer)
	}
	return protocol.ResponseFromMessage(out)
}

// GetInfo implements service.Service.
func (c *Client) GetInfo(ctx context.Context, configuration string) (*service.Info, error) {
	resp, err := c.call(ctx, service.MethodGetInfo, configuration, nil)
	if err != nil {
		return nil, err
	}
	return c.codec.DecodeInfo(resp.Data)
}

// ExecuteNonQuery implements service.Service.
func (c *Client) ExecuteNonQuery(ctx context.Context, configuration string, data []byte) (int, error) {
	resp, err := c.call(ctx, service.MethodExecuteNonQuery, configuration, data)
	if err != nil {
		return 0, err
	}
	return int(resp.Count), nil
}

// ExecuteScalar implements service.Service.
func (c *Client) ExecuteScalar(ctx context.Context, configuration string, data []byte) ([]byte, error) {
	resp, err := c.call(ctx, service.MethodExecuteScalar, configuration, data)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ExecuteReader implements service.Service.
func (c *Client) ExecuteReader(ctx context.Context, configuration string, data []byte) ([]byte, error) {
	resp, err := c.call(ctx, service.MethodExecuteReader, configuration, data)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ExecuteBatch implements service.Service.
func (c *Client) ExecuteBatch(ctx context.Context, configuration string, data []byte) error {
	_, err := c.call(ctx, service.MethodExecuteBatch, configuration, data)
	return err
}

// Close implements service.Service.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.owns {
		return c.conn.Close()
	}
	return nil
}
