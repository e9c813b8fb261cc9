package client

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Operation names the facade call a hook is wrapped around.
type Operation string

const (
	OpPrepare  Operation = "prepare"
	OpExecute  Operation = "execute"
	OpBegin    Operation = "begin"
	OpCommit   Operation = "commit"
	OpRollback Operation = "rollback"
)

// HookContext describes the operation being run.
type HookContext struct {
	// Operation is the facade call being run.
	Operation Operation

	// Query is the SQL text. A Before hook on OpPrepare may rewrite it.
	Query string

	// QueryHash is the xxhash fingerprint of Query as received.
	QueryHash string

	// StatementKind is "query" or "exec" for statement operations.
	StatementKind string

	// Params are the bound values in driver order (OpExecute only).
	Params []interface{}

	// TraceID identifies this single operation.
	TraceID string

	// StartTime is when the operation began.
	StartTime time.Time

	// Metadata lets a hook pass data from Before to After.
	Metadata map[string]interface{}

	// Error, Duration and RowsAffected are set before After runs.
	Error        error
	Duration     time.Duration
	RowsAffected int64
}

// Hook inspects or aborts facade operations. Hooks run with the client's
// lock held and must not call back into the same Client.
type Hook interface {
	// Name returns the unique name of this hook.
	Name() string

	// Before runs before the operation. A non-nil error aborts it.
	Before(ctx context.Context, hookCtx *HookContext) error

	// After runs once the operation finished, even on failure. A non-nil
	// error replaces the operation's error.
	After(ctx context.Context, hookCtx *HookContext) error
}

// RegisterHook appends a hook. A hook with the same name is replaced in place.
func (c *Client) RegisterHook(hook Hook) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()

	for i, h := range c.hooks {
		if h.Name() == hook.Name() {
			c.hooks[i] = hook
			c.logger.Debug("hook replaced", String("hook", hook.Name()))
			return
		}
	}
	c.hooks = append(c.hooks, hook)
	c.logger.Debug("hook registered", String("hook", hook.Name()), Int("order", len(c.hooks)-1))
}

// UnregisterHook removes a hook by name and reports whether it was present.
func (c *Client) UnregisterHook(name string) bool {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()

	for i, h := range c.hooks {
		if h.Name() == name {
			c.hooks = append(c.hooks[:i], c.hooks[i+1:]...)
			c.logger.Debug("hook unregistered", String("hook", name))
			return true
		}
	}
	return false
}

// GetHooks returns the names of all registered hooks in execution order.
func (c *Client) GetHooks() []string {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()

	names := make([]string, len(c.hooks))
	for i, h := range c.hooks {
		names[i] = h.Name()
	}
	return names
}

func (c *Client) snapshotHooks() []Hook {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	hooks := make([]Hook, len(c.hooks))
	copy(hooks, c.hooks)
	return hooks
}

func newHookContext(op Operation, query string) *HookContext {
	hc := &HookContext{
		Operation: op,
		Query:     query,
		TraceID:   uuid.New().String(),
		StartTime: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
	if query != "" {
		hc.QueryHash = queryHash(query)
		hc.StatementKind = inferStatementKind(query)
	}
	return hc
}

func (c *Client) runBefore(ctx context.Context, hc *HookContext) error {
	for _, h := range c.snapshotHooks() {
		if err := h.Before(ctx, hc); err != nil {
			c.logger.Debug("hook aborted operation",
				String("hook", h.Name()),
				String("operation", string(hc.Operation)),
				String("trace_id", hc.TraceID),
				Error("error", err))
			return err
		}
	}
	return nil
}

// runAfter returns err, or the error of the last After hook that failed.
func (c *Client) runAfter(ctx context.Context, hc *HookContext, err error) error {
	hc.Error = err
	hc.Duration = time.Since(hc.StartTime)
	for _, h := range c.snapshotHooks() {
		if hookErr := h.After(ctx, hc); hookErr != nil {
			hc.Error = hookErr
		}
	}
	return hc.Error
}
