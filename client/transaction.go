package client

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BeginTransaction starts a transaction and turns autocommit off. It does
// nothing while a transaction is already open.
//
// The transaction is not tied to ctx: it stays open until Commit, RollBack or
// Close, whatever happens to ctx afterwards.
func (c *Client) BeginTransaction(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed("BeginTransaction")
	}
	if !c.autocommit {
		return nil
	}
	c.releaseCursor()

	hc := newHookContext(OpBegin, "")
	if err := c.runBefore(ctx, hc); err != nil {
		return err
	}

	tx, err := c.db.BeginTxx(context.WithoutCancel(ctx), nil)
	if err != nil {
		txErr := c.txError("E_BEGIN_FAILED", "failed to begin transaction", "", err)
		return c.fail(scopeHandle, "begin", c.runAfter(ctx, hc, txErr))
	}

	c.tx = tx
	c.txID = uuid.New().String()
	c.autocommit = false
	hc.Metadata["tx_id"] = c.txID

	c.logger.Debug("transaction started",
		String("tx_id", c.txID),
		String("trace_id", hc.TraceID))

	return c.fail(scopeHandle, "begin", c.runAfter(ctx, hc, nil))
}

// Commit commits the open transaction and turns autocommit back on. In
// autocommit mode it does nothing.
func (c *Client) Commit(ctx context.Context) error {
	return c.endTransaction(ctx, OpCommit)
}

// RollBack rolls back the open transaction and turns autocommit back on. In
// autocommit mode it does nothing.
func (c *Client) RollBack(ctx context.Context) error {
	return c.endTransaction(ctx, OpRollback)
}

// IsAutocommit reports whether no transaction is open.
func (c *Client) IsAutocommit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autocommit
}

func (c *Client) endTransaction(ctx context.Context, op Operation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed(string(op))
	}
	if c.autocommit {
		return nil
	}
	c.releaseCursor()

	hc := newHookContext(op, "")
	hc.Metadata["tx_id"] = c.txID
	if err := c.runBefore(ctx, hc); err != nil {
		return err
	}

	var err error
	if op == OpCommit {
		err = c.tx.Commit()
	} else {
		err = c.tx.Rollback()
	}

	// database/sql finishes the transaction even when the driver call fails.
	txID := c.txID
	c.tx = nil
	c.txID = ""
	c.autocommit = true

	if err != nil {
		code, msg := "E_COMMIT_FAILED", "failed to commit transaction"
		if op == OpRollback {
			code, msg = "E_ROLLBACK_FAILED", "failed to roll back transaction"
		}
		err = c.txError(code, msg, txID, err)
	} else {
		c.logger.Debug("transaction finished",
			String("tx_id", txID),
			String("operation", string(op)),
			String("trace_id", hc.TraceID))
	}

	return c.fail(scopeHandle, string(op), c.runAfter(ctx, hc, err))
}

// releaseCursor closes the open cursor so the session is free for the next
// command.
func (c *Client) releaseCursor() {
	if c.stmt != nil {
		c.stmt.closeCursor()
	}
}

func (c *Client) txError(code, message, txID string, cause error) *TransactionError {
	details := map[string]interface{}{}
	if txID != "" {
		details["tx_id"] = txID
	}
	return &TransactionError{
		Code:       code,
		Type:       "TRANSACTION_ERROR",
		Message:    message,
		Details:    details,
		Cause:      cause,
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}
