package query

import (
	"encoding/json"
	"testing"

	"oswl-go/internal/oswl"
)

func testSnapshot() oswl.Snapshot {
	return oswl.Snapshot{
		{"id": json.Number("1"), "name": "web-1", "status": "ACTIVE", "cpus": json.Number("4")},
		{"id": json.Number("2"), "name": "web-2", "status": "SHUTOFF", "cpus": json.Number("2")},
		{"id": json.Number("3"), "name": "db-1", "status": "ACTIVE", "cpus": json.Number("16")},
	}
}

func ids(s oswl.Snapshot) []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = oswl.IDKey(r.ID())
	}
	return out
}

func TestFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule string
		want []string
	}{
		{
			name: "equality",
			rule: `{"==": [{"var": "status"}, "ACTIVE"]}`,
			want: []string{"1", "3"},
		},
		{
			name: "numeric comparison",
			rule: `{">": [{"var": "cpus"}, 3]}`,
			want: []string{"1", "3"},
		},
		{
			name: "combined",
			rule: `{"and": [{"==": [{"var": "status"}, "ACTIVE"]}, {"<": [{"var": "cpus"}, 8]}]}`,
			want: []string{"1"},
		},
		{
			name: "constant true keeps everything",
			rule: `true`,
			want: []string{"1", "2", "3"},
		},
		{
			name: "no match",
			rule: `{"==": [{"var": "status"}, "ERROR"]}`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rule, err := ParseRule(tt.rule)
			if err != nil {
				t.Fatalf("ParseRule() error = %v", err)
			}

			got, err := Filter(rule, testSnapshot())
			if err != nil {
				t.Fatalf("Filter() error = %v", err)
			}

			gotIDs := ids(got)
			if len(gotIDs) != len(tt.want) {
				t.Fatalf("Filter() ids = %v, want %v", gotIDs, tt.want)
			}
			for i := range gotIDs {
				if gotIDs[i] != tt.want[i] {
					t.Errorf("Filter() ids = %v, want %v", gotIDs, tt.want)
					break
				}
			}
		})
	}
}

func TestParseRule_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := ParseRule(`{"==": [`); err == nil {
		t.Error("ParseRule() expected error for malformed JSON")
	}
}

func TestTruthy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{json.Number("0"), false},
		{json.Number("0.0"), false},
		{json.Number("2"), true},
		{"", false},
		{"x", true},
		{[]any{}, false},
		{[]any{json.Number("1")}, true},
		{map[string]any{}, true},
	}
	for _, tt := range tests {
		if got := truthy(tt.in); got != tt.want {
			t.Errorf("truthy(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
