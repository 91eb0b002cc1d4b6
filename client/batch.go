package client

import (
	"context"

	"go.uber.org/multierr"
)

// BeginBatch opens a batch region, or nests into the open one. Non-query
// executions inside the region are queued until the outermost CommitBatch.
func (c *Client) BeginBatch() {
	if c.batchDepth == 0 {
		c.batch = make([][]byte, 0)
	}
	c.batchDepth++
}

// CommitBatch closes one batch region. Closing the outermost region sends the
// queued statements in one ExecuteBatch call, empty or not.
//
// The queue is discarded whether or not the call succeeds, leaving the client
// ready for a fresh batch.
func (c *Client) CommitBatch(ctx context.Context) error {
	if c.batchDepth == 0 {
		return errInvalidState("CommitBatch")
	}

	c.batchDepth--
	if c.batchDepth > 0 {
		return nil
	}

	pending := c.batch
	c.batch = nil
	return c.flush(ctx, pending)
}

// BatchDepth returns the nesting level of the open batch, or 0.
func (c *Client) BatchDepth() int {
	return c.batchDepth
}

// PendingStatements returns how many statements are queued.
func (c *Client) PendingStatements() int {
	return len(c.batch)
}

func (c *Client) flush(ctx context.Context, pending [][]byte) (err error) {
	c.logger.Debug("flushing batch", Int("statements", len(pending)))

	payload, err := c.codec.EncodeBatch(pending)
	if err != nil {
		c.logger.Error("batch encoding failed", Error("error", err))
		return err
	}

	svc, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err = multierr.Append(err, svc.Close()); err != nil {
			c.logger.Error("batch failed", Int("statements", len(pending)), Error("error", err))
		}
	}()

	return svc.ExecuteBatch(ctx, c.configuration, payload)
}
