package client

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"
)

// Ping checks that the session is still reachable. An open cursor is released
// first. Ping failures are connection errors and ignore ErrMode.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed("Ping")
	}
	c.releaseCursor()

	start := time.Now()
	err := c.db.PingContext(ctx)
	if err == nil {
		c.logger.Debug("ping ok", Duration("duration", time.Since(start)))
		return nil
	}

	c.handleErr = classifyError(c.dialect, err)
	connErr := &ConnectionError{
		Code:    "E_PING_FAILED",
		Type:    "CONNECTION_ERROR",
		Message: "database unreachable",
		Details: map[string]interface{}{
			"dsn":     c.dsn,
			"dropped": detectConnectionDrop(err),
		},
		Cause:      err,
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
	c.logger.Warn("ping failed", String("error", FormatError(connErr, c.opts.DebugMode)))
	return connErr
}

// detectConnectionDrop checks if an error indicates a connection drop.
func detectConnectionDrop(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection reset", "broken pipe", "connection refused", "bad connection"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
