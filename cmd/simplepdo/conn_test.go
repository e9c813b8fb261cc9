package main

import (
	"strings"
	"testing"

	"github.com/LuisaeDev/SimplePDO/client"
)

func TestParseParam(t *testing.T) {
	tests := []struct {
		in       string
		name     string
		value    interface{}
		typ      string
		wantFail bool
	}{
		{in: "id=42:int", name: "id", value: "42", typ: "int"},
		{in: "name=alice", name: "name", value: "alice", typ: "str"},
		{in: "at=12:30", name: "at", value: "12:30", typ: "str"},
		{in: "at=12:30:str", name: "at", value: "12:30", typ: "str"},
		{in: "flag=true:BOOL", name: "flag", value: "true", typ: "bool"},
		{in: "gone=:null", name: "gone", value: nil, typ: "null"},
		{in: "empty=", name: "empty", value: "", typ: "str"},
		{in: "novalue", wantFail: true},
		{in: "=1", wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := parseParam(tt.in)
			if tt.wantFail {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name != tt.name || p.Value != tt.value || p.Type != tt.typ {
				t.Errorf("got %+v, want {%s %v %s}", p, tt.name, tt.value, tt.typ)
			}
		})
	}
}

func TestParamFlagsRepeat(t *testing.T) {
	var params paramFlags
	for _, s := range []string{"a=1:int", "b=x"} {
		if err := params.Set(s); err != nil {
			t.Fatalf("Set(%q): %v", s, err)
		}
	}
	if len(params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(params))
	}
	if got := params.String(); got != "a=1:int,b=x:str" {
		t.Errorf("unexpected String(): %s", got)
	}
}

func TestTabulate(t *testing.T) {
	rows := []client.Row{
		{"name": "a", "id": int64(1)},
		{"name": nil, "id": int64(2)},
	}
	headers, table := tabulate([]string{"name", "id"}, rows)
	if len(headers) != 2 || headers[0] != "name" || headers[1] != "id" {
		t.Fatalf("expected select order, got %v", headers)
	}
	if table[1][0] != "NULL" {
		t.Errorf("expected NULL cell, got %q", table[1][0])
	}
	if table[0][1] != "1" {
		t.Errorf("expected 1, got %q", table[0][1])
	}
}

func TestTabulateWithoutColumns(t *testing.T) {
	rows := []client.Row{
		{"b": 1, "a": 2},
		{"c": 3},
	}
	headers, table := tabulate(nil, rows)
	if strings.Join(headers, ",") != "a,b,c" {
		t.Fatalf("unexpected headers: %v", headers)
	}
	if table[1][0] != "" || table[1][2] != "3" {
		t.Errorf("unexpected second row: %v", table[1])
	}
}
