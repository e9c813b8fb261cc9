package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoggingHook(t *testing.T) {
	var buf bytes.Buffer
	hook := NewLoggingHook(NewLogger("DEBUG", &buf), true, true)

	if hook.Name() != "logging" {
		t.Errorf("expected name 'logging', got %s", hook.Name())
	}

	hc := newHookContext(OpExecute, "SELECT :id")
	hc.Params = []interface{}{int64(1)}
	hc.Duration = 3 * time.Millisecond
	hc.RowsAffected = 0

	if err := hook.Before(context.Background(), hc); err != nil {
		t.Fatalf("Before returned error: %v", err)
	}
	if err := hook.After(context.Background(), hc); err != nil {
		t.Fatalf("After returned error: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line: %v (%s)", err, buf.String())
	}
	if entry["level"] != "DEBUG" || entry["operation"] != "execute" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["query"] != "SELECT :id" {
		t.Errorf("expected query field, got %v", entry["query"])
	}
	if entry["query_hash"] != queryHash("SELECT :id") {
		t.Errorf("expected query_hash field, got %v", entry["query_hash"])
	}
	if entry["params"] == nil {
		t.Error("expected params field")
	}
}

func TestLoggingHookOptions(t *testing.T) {
	var buf bytes.Buffer
	hook := NewLoggingHook(NewLogger("DEBUG", &buf), false, false)

	hc := newHookContext(OpPrepare, "SELECT 1")
	hc.Error = errors.New("boom")
	hook.After(context.Background(), hc)

	out := buf.String()
	if strings.Contains(out, `"query":`) || strings.Contains(out, `"params":`) {
		t.Errorf("query and params should be omitted: %s", out)
	}
	if !strings.Contains(out, `"level":"ERROR"`) {
		t.Errorf("failures log at ERROR: %s", out)
	}
}

func TestMetricsHook(t *testing.T) {
	hook := NewMetricsHook()
	ctx := context.Background()

	ops := []*HookContext{
		newHookContext(OpPrepare, "SELECT 1"),
		newHookContext(OpExecute, "SELECT 1"),
		newHookContext(OpExecute, "DELETE FROM t"),
		newHookContext(OpBegin, ""),
		newHookContext(OpCommit, ""),
	}
	ops[2].Error = errors.New("locked")
	for _, hc := range ops {
		hc.Duration = 10 * time.Nanosecond
		hook.After(ctx, hc)
	}

	stats := hook.GetStats()
	expect := map[string]uint64{
		"total_operations":   5,
		"total_prepares":     1,
		"total_queries":      1,
		"total_execs":        1,
		"total_transactions": 1,
		"total_errors":       1,
		"total_duration_ns":  50,
		"avg_duration_ns":    10,
	}
	for k, want := range expect {
		if stats[k] != want {
			t.Errorf("%s: expected %d, got %v", k, want, stats[k])
		}
	}

	hook.Reset()
	if hook.TotalOperations.Load() != 0 || hook.GetStats()["avg_duration_ns"] != uint64(0) {
		t.Error("Reset should clear all counters")
	}
}

func TestHookRegistration(t *testing.T) {
	c := &Client{logger: NewNoopLogger()}

	c.RegisterHook(NewMetricsHook())
	c.RegisterHook(NewLoggingHook(NewNoopLogger(), false, false))

	hooks := c.GetHooks()
	if len(hooks) != 2 || hooks[0] != "metrics" || hooks[1] != "logging" {
		t.Fatalf("unexpected hooks: %v", hooks)
	}

	// Same name replaces in place.
	replacement := NewMetricsHook()
	c.RegisterHook(replacement)
	if got := c.GetHooks(); len(got) != 2 || got[0] != "metrics" {
		t.Fatalf("unexpected hooks after replace: %v", got)
	}
	if c.snapshotHooks()[0] != Hook(replacement) {
		t.Error("hook was not replaced")
	}

	if !c.UnregisterHook("metrics") {
		t.Error("expected UnregisterHook to return true")
	}
	if c.UnregisterHook("nonexistent") {
		t.Error("expected UnregisterHook to return false for non-existent hook")
	}
	if got := c.GetHooks(); len(got) != 1 || got[0] != "logging" {
		t.Errorf("unexpected hooks after unregister: %v", got)
	}
}

type failingAfterHook struct {
	name string
	err  error
	seen *[]string
}

func (h *failingAfterHook) Name() string { return h.name }
func (h *failingAfterHook) Before(ctx context.Context, hookCtx *HookContext) error {
	return nil
}
func (h *failingAfterHook) After(ctx context.Context, hookCtx *HookContext) error {
	*h.seen = append(*h.seen, h.name)
	return h.err
}

func TestAfterHooksAllRunAndLastErrorWins(t *testing.T) {
	var seen []string
	first := errors.New("first")
	second := errors.New("second")

	c := &Client{logger: NewNoopLogger()}
	c.RegisterHook(&failingAfterHook{name: "a", err: first, seen: &seen})
	c.RegisterHook(&failingAfterHook{name: "b", seen: &seen})
	c.RegisterHook(&failingAfterHook{name: "c", err: second, seen: &seen})

	hc := newHookContext(OpExecute, "SELECT 1")
	err := c.runAfter(context.Background(), hc, nil)

	if !errors.Is(err, second) {
		t.Errorf("expected last hook error, got %v", err)
	}
	if strings.Join(seen, ",") != "a,b,c" {
		t.Errorf("all After hooks should run in order, got %v", seen)
	}
	if hc.Error != err {
		t.Error("HookContext.Error should hold the final error")
	}
}

func TestNewHookContext(t *testing.T) {
	hc := newHookContext(OpExecute, "UPDATE t SET a = 1")

	if hc.TraceID == "" || hc.StartTime.IsZero() || hc.Metadata == nil {
		t.Errorf("context not initialised: %+v", hc)
	}
	if hc.StatementKind != kindExec {
		t.Errorf("expected exec, got %s", hc.StatementKind)
	}

	other := newHookContext(OpExecute, "UPDATE t SET a = 1")
	if other.TraceID == hc.TraceID {
		t.Error("trace IDs must be unique")
	}

	begin := newHookContext(OpBegin, "")
	if begin.QueryHash != "" || begin.StatementKind != "" {
		t.Error("transaction operations carry no query data")
	}
}
