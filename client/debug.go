package client

import (
	"encoding/json"
	"fmt"
)

// EnableDebugMode makes logged and formatted errors carry details, causes and
// stack traces.
func (c *Client) EnableDebugMode() {
	c.mu.Lock()
	c.opts.DebugMode = true
	c.mu.Unlock()
	c.logger.Info("debug mode enabled")
}

// DisableDebugMode disables debug mode.
func (c *Client) DisableDebugMode() {
	c.mu.Lock()
	c.opts.DebugMode = false
	c.mu.Unlock()
	c.logger.Info("debug mode disabled")
}

// IsDebugMode returns whether debug mode is currently enabled.
func (c *Client) IsDebugMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.DebugMode
}

// GetDebugInfo returns a snapshot of the facade state. The password is never
// part of it.
func (c *Client) GetDebugInfo() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := map[string]interface{}{
		"version":    Version,
		"driver":     c.info.Driver,
		"dsn":        c.dsn,
		"closed":     c.closed,
		"autocommit": c.autocommit,
		"debugMode":  c.opts.DebugMode,
		"hooks":      len(c.snapshotHooks()),
	}
	if c.txID != "" {
		info["txId"] = c.txID
	}

	if !c.closed {
		stats := c.db.Stats()
		info["handle"] = map[string]interface{}{
			"openConnections": stats.OpenConnections,
			"inUse":           stats.InUse,
			"idle":            stats.Idle,
			"waitCount":       stats.WaitCount,
			"waitDuration":    stats.WaitDuration.String(),
		}
	}

	if st := c.stmt; st != nil {
		info["statement"] = map[string]interface{}{
			"queryHash":    st.hash,
			"kind":         st.kind,
			"placeholders": st.Placeholders(),
			"bound":        len(st.order),
			"cursorOpen":   st.rows != nil,
			"rowCount":     st.rowCount(),
			"inTx":         st.owner != nil,
			"createdAt":    st.createdAt.Format("2006-01-02T15:04:05.000Z07:00"),
		}
	}

	handleErr := c.handleErr
	info["errorInfo"] = handleErr.Tuple()

	info["options"] = map[string]interface{}{
		"errMode":         c.opts.ErrMode.String(),
		"errorInfoSource": c.opts.ErrorInfoSource.String(),
		"requireDBName":   c.opts.RequireDBName,
		"connectTimeout":  c.opts.ConnectTimeout.String(),
	}

	return info
}

// DumpDebugInfoJSON returns debug info as formatted JSON string.
func (c *Client) DumpDebugInfoJSON() string {
	info := c.GetDebugInfo()
	bytes, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "failed to marshal debug info: %s"}`, err.Error())
	}
	return string(bytes)
}
