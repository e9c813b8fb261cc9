package client

import (
	"math"
	"testing"
)

type label string

func (l label) String() string { return "label:" + string(l) }

func TestParseParamType(t *testing.T) {
	tests := map[string]ParamType{
		"null":    ParamNull,
		"bool":    ParamBool,
		"int":     ParamInt,
		"str":     ParamStr,
		" INT ":   ParamInt,
		"":        ParamStr,
		"decimal": ParamStr,
	}

	for tag, want := range tests {
		if got := ParseParamType(tag); got != want {
			t.Errorf("ParseParamType(%q) = %s, want %s", tag, got, want)
		}
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name  string
		typ   ParamType
		in    interface{}
		want  interface{}
		fails bool
	}{
		{"nil stays nil", ParamInt, nil, nil, false},
		{"null drops value", ParamNull, "anything", nil, false},
		{"bool from bool", ParamBool, true, true, false},
		{"bool from string", ParamBool, "false", false, false},
		{"bool from empty string", ParamBool, "", false, false},
		{"bool from int", ParamBool, 3, true, false},
		{"bool from bad string", ParamBool, "maybe", nil, true},
		{"int from int", ParamInt, 42, int64(42), false},
		{"int from string", ParamInt, " 17 ", int64(17), false},
		{"int from bytes", ParamInt, []byte("5"), int64(5), false},
		{"int from bool", ParamInt, true, int64(1), false},
		{"int from integral float", ParamInt, 2.0, int64(2), false},
		{"int from fractional float", ParamInt, 2.5, nil, true},
		{"int from overflowing uint", ParamInt, uint64(math.MaxUint64), nil, true},
		{"int from bad string", ParamInt, "x", nil, true},
		{"int from zero-padded string", ParamInt, "010", int64(10), false},
		{"int from signed string", ParamInt, "+7", int64(7), false},
		{"int from hex string", ParamInt, "0x10", nil, true},
		{"int from zero string", ParamInt, "000", int64(0), false},
		{"bool from padded string", ParamBool, " true ", true, false},
		{"str from string", ParamStr, "abc", "abc", false},
		{"str from int", ParamStr, 12, "12", false},
		{"str from true", ParamStr, true, "1", false},
		{"str from false", ParamStr, false, "", false},
		{"str from stringer", ParamStr, label("x"), "label:x", false},
		{"str from bytes", ParamStr, []byte("raw"), "raw", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Coerce(tt.in)
			if tt.fails {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %#v, got %#v", tt.want, got)
			}
		})
	}
}
