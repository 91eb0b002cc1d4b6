// Package framed implements service.Service over a transport.Transport, one
// protocol.Request frame per call, and the matching server side.
package framed

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/dan-strohschein/remotedb/protocol"
	"github.com/dan-strohschein/remotedb/service"
	"github.com/dan-strohschein/remotedb/transport"
)

// Client is a service handle speaking the framed protocol.
type Client struct {
	tr     transport.Transport
	codec  protocol.Codec
	owns   bool
	nextID atomic.Uint64
	closed atomic.Bool
}

// NewClient creates a handle over tr. When owns is true, Close also closes
// the transport.
func NewClient(tr transport.Transport, codec protocol.Codec, owns bool) *Client {
	if codec == nil {
		codec = protocol.NewCodec()
	}
	return &Client{tr: tr, codec: codec, owns: owns}
}

// SharedFactory returns a factory whose handles share tr. Closing a handle
// leaves tr open.
func SharedFactory(tr transport.Transport, codec protocol.Codec) service.Factory {
	return func(ctx context.Context) (service.Service, error) {
		return NewClient(tr, codec, false), nil
	}
}

// DialFactory returns a factory that opens a transport per handle and closes
// it with the handle.
func DialFactory(dial transport.Factory, codec protocol.Codec) service.Factory {
	return func(ctx context.Context) (service.Service, error) {
		tr, err := dial(ctx)
		if err != nil {
			return nil, err
		}
		return NewClient(tr, codec, true), nil
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
	frame, err := c.codec.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	out, err := c.tr.RoundTrip(ctx, frame)
	if err != nil {
		return nil, err
	}

	resp, err := c.codec.DecodeResponse(out)
	if err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, protocol.NewTransportError(protocol.ErrorCodeProtocolError,
			fmt.Sprintf("response %s does not answer request %s", resp.ID, req.ID), nil)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp, nil
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
		return c.tr.Close()
	}
	return nil
}
