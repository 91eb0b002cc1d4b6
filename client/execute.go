package client

import (
	"context"

	"go.uber.org/multierr"

	"github.com/dan-strohschein/remotedb/query"
	"github.com/dan-strohschein/remotedb/result"
	"github.com/dan-strohschein/remotedb/service"
)

// QueuedResult is returned by ExecuteNonQuery when the statement was queued
// into an open batch.
const QueuedResult = -1

// Execution is one prepared query. It holds the service handle of an open
// reader until ReleaseQuery.
type Execution struct {
	Context *query.Context

	state  ExecutionState
	svc    service.Service
	reader *result.Reader
}

// State returns where the execution is in its lifecycle.
func (e *Execution) State() ExecutionState {
	return e.state
}

// SetQuery wraps qc for execution. Nothing is resolved or sent yet.
func (c *Client) SetQuery(qc *query.Context) *Execution {
	return &Execution{Context: qc, state: Prepared}
}

// encode processes the statement's parameters and serializes it. A
// parameter-dependent statement is sent with its own parameters; otherwise
// the context's parameter snapshot is used.
func (c *Client) encode(e *Execution) ([]byte, error) {
	stmt := e.Context.Statement
	params := e.Context.GetParameters()
	if stmt != nil {
		stmt = stmt.ProcessParameters()
		if stmt.IsParameterDependent {
			params = stmt.Parameters
		}
	}

	data, err := c.codec.EncodeQuery(stmt, params)
	if err != nil {
		e.state = Failed
		return nil, err
	}
	e.state = Serialized
	return data, nil
}

func (c *Client) checkOpen(operation string) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return &StateError{
			Code:       CodeInvalidState,
			Type:       "STATE_ERROR",
			Message:    operation + " called on a closed client",
			Details:    map[string]interface{}{"operation": operation},
			StackTrace: captureStackTrace(),
		}
	}
	return nil
}

// ExecuteNonQuery runs a statement and returns the affected row count. Inside
// a batch the statement is queued and QueuedResult is returned without a
// remote call.
func (c *Client) ExecuteNonQuery(ctx context.Context, e *Execution) (n int, err error) {
	if err := c.checkOpen("ExecuteNonQuery"); err != nil {
		return 0, err
	}

	data, err := c.encode(e)
	if err != nil {
		return 0, err
	}

	if c.batchDepth > 0 {
		c.batch = append(c.batch, data)
		e.state = Queued
		return QueuedResult, nil
	}

	svc, err := c.acquire(ctx)
	if err != nil {
		e.state = Failed
		return 0, err
	}
	e.state = Dispatched
	defer func() {
		if err = multierr.Append(err, svc.Close()); err != nil {
			e.state = Failed
			n = 0
		}
	}()

	n, err = svc.ExecuteNonQuery(ctx, c.configuration, data)
	if err != nil {
		return 0, err
	}
	e.state = Completed
	return n, nil
}

// ExecuteScalar runs a statement and returns its single value. It fails while
// a batch is open.
func (c *Client) ExecuteScalar(ctx context.Context, e *Execution) (v any, err error) {
	if err := c.checkOpen("ExecuteScalar"); err != nil {
		return nil, err
	}
	if c.batchDepth > 0 {
		return nil, errIncompatibleBatchOperation("ExecuteScalar", c.batchDepth)
	}

	data, err := c.encode(e)
	if err != nil {
		return nil, err
	}

	svc, err := c.acquire(ctx)
	if err != nil {
		e.state = Failed
		return nil, err
	}
	e.state = Dispatched
	defer func() {
		if err = multierr.Append(err, svc.Close()); err != nil {
			e.state = Failed
			v = nil
		}
	}()

	out, err := svc.ExecuteScalar(ctx, c.configuration, data)
	if err != nil {
		return nil, err
	}

	v, err = c.codec.DecodeScalar(out)
	if err != nil {
		return nil, err
	}
	e.state = Completed
	return v, nil
}

// ExecuteReader runs a statement and returns a forward-only reader over the
// rows. It fails while a batch is open.
//
// The service handle stays attached to e until ReleaseQuery is called or the
// reader is closed. If no reader is returned the handle is released before
// ExecuteReader exits.
func (c *Client) ExecuteReader(ctx context.Context, e *Execution) (r *result.Reader, err error) {
	if err := c.checkOpen("ExecuteReader"); err != nil {
		return nil, err
	}
	if c.batchDepth > 0 {
		return nil, errIncompatibleBatchOperation("ExecuteReader", c.batchDepth)
	}

	data, err := c.encode(e)
	if err != nil {
		return nil, err
	}

	svc, err := c.acquire(ctx)
	if err != nil {
		e.state = Failed
		return nil, err
	}
	e.svc = svc
	e.state = Dispatched
	defer func() {
		if r == nil {
			err = multierr.Append(err, c.ReleaseQuery(e))
		}
	}()

	out, err := svc.ExecuteReader(ctx, c.configuration, data)
	if err != nil {
		e.state = Failed
		return nil, err
	}

	tbl, err := c.codec.DecodeResult(out)
	if err != nil {
		e.state = Failed
		return nil, err
	}

	r = result.NewReader(tbl)
	r.OnClose(func() error { return c.ReleaseQuery(e) })
	e.reader = r
	e.state = Completed
	return r, nil
}

// ReleaseQuery closes the service handle held by e, if any. It is safe to call
// more than once.
func (c *Client) ReleaseQuery(e *Execution) error {
	if e == nil || e.svc == nil {
		return nil
	}
	svc := e.svc
	e.svc = nil
	return svc.Close()
}
