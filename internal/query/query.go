// Package query filters snapshot resources with JsonLogic rules.
package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diegoholiveira/jsonlogic"

	"oswl-go/internal/oswl"
)

// Rule is a parsed JsonLogic rule.
type Rule struct {
	raw []byte
}

// ParseRule validates that text is a JSON document and JsonLogic accepts it.
func ParseRule(text string) (*Rule, error) {
	raw := []byte(strings.TrimSpace(text))
	if !json.Valid(raw) {
		return nil, fmt.Errorf("rule is not valid JSON")
	}
	if !jsonlogic.IsValid(bytes.NewReader(raw)) {
		return nil, fmt.Errorf("rule is not valid JsonLogic")
	}
	return &Rule{raw: raw}, nil
}

// Match reports whether the rule evaluates truthy for r.
func (q *Rule) Match(r oswl.Resource) (bool, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("encoding resource: %w", err)
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(q.raw), bytes.NewReader(data), &out); err != nil {
		return false, fmt.Errorf("applying rule: %w", err)
	}

	var result any
	dec := json.NewDecoder(&out)
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return false, fmt.Errorf("decoding rule result: %w", err)
	}
	return truthy(result), nil
}

// Filter returns the resources of s that match rule, in their original order.
func Filter(rule *Rule, s oswl.Snapshot) (oswl.Snapshot, error) {
	out := oswl.Snapshot{}
	for i, r := range s {
		ok, err := rule.Match(r)
		if err != nil {
			return nil, fmt.Errorf("resource %d: %w", i, err)
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// truthy follows JsonLogic truthiness: false, null, 0, "" and [] are false.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	default:
		return true
	}
}
