package client

import (
	"context"
	"sync/atomic"
)

// LoggingHook logs every operation at DEBUG and failures at ERROR.
type LoggingHook struct {
	logger    Logger
	logQuery  bool
	logParams bool
}

// NewLoggingHook creates a logging hook. logQuery adds the SQL text and
// logParams the bound values to each line.
func NewLoggingHook(logger Logger, logQuery, logParams bool) *LoggingHook {
	return &LoggingHook{logger: logger, logQuery: logQuery, logParams: logParams}
}

func (h *LoggingHook) Name() string {
	return "logging"
}

func (h *LoggingHook) Before(ctx context.Context, hookCtx *HookContext) error {
	return nil
}

func (h *LoggingHook) After(ctx context.Context, hookCtx *HookContext) error {
	fields := []Field{
		String("operation", string(hookCtx.Operation)),
		String("trace_id", hookCtx.TraceID),
		Duration("duration", hookCtx.Duration),
	}
	if hookCtx.QueryHash != "" {
		fields = append(fields, String("query_hash", hookCtx.QueryHash))
	}
	if h.logQuery && hookCtx.Query != "" {
		fields = append(fields, String("query", hookCtx.Query))
	}
	if h.logParams && len(hookCtx.Params) > 0 {
		fields = append(fields, Field{Key: "params", Value: hookCtx.Params})
	}

	if hookCtx.Error != nil {
		fields = append(fields, Error("error", hookCtx.Error))
		h.logger.Error("operation failed", fields...)
		return nil
	}

	if hookCtx.Operation == OpExecute {
		fields = append(fields, Int64("rows_affected", hookCtx.RowsAffected))
	}
	h.logger.Debug("operation completed", fields...)
	return nil
}

// MetricsHook counts operations with atomic counters.
type MetricsHook struct {
	TotalOperations   atomic.Uint64
	TotalPrepares     atomic.Uint64
	TotalQueries      atomic.Uint64
	TotalExecs        atomic.Uint64
	TotalTransactions atomic.Uint64
	TotalErrors       atomic.Uint64
	TotalDurationNs   atomic.Uint64
}

// NewMetricsHook creates a new metrics collection hook.
func NewMetricsHook() *MetricsHook {
	return &MetricsHook{}
}

func (h *MetricsHook) Name() string {
	return "metrics"
}

func (h *MetricsHook) Before(ctx context.Context, hookCtx *HookContext) error {
	return nil
}

func (h *MetricsHook) After(ctx context.Context, hookCtx *HookContext) error {
	h.TotalOperations.Add(1)
	h.TotalDurationNs.Add(uint64(hookCtx.Duration.Nanoseconds()))

	switch hookCtx.Operation {
	case OpPrepare:
		h.TotalPrepares.Add(1)
	case OpExecute:
		if hookCtx.StatementKind == kindQuery {
			h.TotalQueries.Add(1)
		} else {
			h.TotalExecs.Add(1)
		}
	case OpBegin:
		h.TotalTransactions.Add(1)
	}

	if hookCtx.Error != nil {
		h.TotalErrors.Add(1)
	}
	return nil
}

// GetStats returns current metrics as a map.
func (h *MetricsHook) GetStats() map[string]interface{} {
	total := h.TotalOperations.Load()
	dur := h.TotalDurationNs.Load()

	avg := uint64(0)
	if total > 0 {
		avg = dur / total
	}

	return map[string]interface{}{
		"total_operations":   total,
		"total_prepares":     h.TotalPrepares.Load(),
		"total_queries":      h.TotalQueries.Load(),
		"total_execs":        h.TotalExecs.Load(),
		"total_transactions": h.TotalTransactions.Load(),
		"total_errors":       h.TotalErrors.Load(),
		"total_duration_ns":  dur,
		"avg_duration_ns":    avg,
	}
}

// Reset clears all metrics.
func (h *MetricsHook) Reset() {
	h.TotalOperations.Store(0)
	h.TotalPrepares.Store(0)
	h.TotalQueries.Store(0)
	h.TotalExecs.Store(0)
	h.TotalTransactions.Store(0)
	h.TotalErrors.Store(0)
	h.TotalDurationNs.Store(0)
}
