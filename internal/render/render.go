// Package render turns changelog records into human-readable text.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"oswl-go/internal/oswl"
)

const timeField = "time"

// absent marks a field that does not exist on one side of a diff.
const absent = "<absent>"

// ModifiedDiff renders one change event of resource id as a unified diff.
// The "-" side holds the overridden values recorded in the event, the "+"
// side the same fields in current. current may be nil when the resource has
// since been removed.
func ModifiedDiff(id string, event, current oswl.Resource) (string, error) {
	keys := make([]string, 0, len(event))
	for k := range event {
		if k != timeField {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	before := make([]string, len(keys))
	after := make([]string, len(keys))
	for i, k := range keys {
		before[i] = line(k, event[k], true)
		v, ok := current[k]
		after[i] = line(k, v, ok)
	}

	stamp, _ := event[timeField].(string)
	u := difflib.UnifiedDiff{
		A:        before,
		B:        after,
		FromFile: fmt.Sprintf("a/%s@%s", id, stamp),
		ToFile:   "b/" + id,
		Context:  len(keys),
	}
	return difflib.GetUnifiedDiffString(u)
}

func line(key string, v any, ok bool) string {
	if !ok {
		return key + ": " + absent + "\n"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%s: %v\n", key, v)
	}
	return key + ": " + string(b) + "\n"
}

// Record writes a summary of rec to w: the header line, then the added,
// removed and modified ids with their times. With diffs set, each
// modification is followed by its unified diff against the current state.
func Record(w io.Writer, rec *oswl.Record, diffs bool) error {
	data := rec.ResourceData
	current := make(map[string]oswl.Resource, len(data.Current))
	for _, r := range data.Current {
		current[oswl.IDKey(r.ID())] = r
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s %s (updated %s, %d resources, sent=%t)\n",
		rec.GroupKey, rec.ResourceKind, rec.CreatedDate, rec.UpdatedTime, len(data.Current), rec.IsSent)

	for _, id := range sortedKeys(data.Added) {
		fmt.Fprintf(&b, "  + %s at %s\n", id, data.Added[id].Time)
	}
	for _, id := range sortedKeys(data.Removed) {
		stamp, _ := data.Removed[id][timeField].(string)
		fmt.Fprintf(&b, "  - %s at %s\n", id, stamp)
	}
	for _, id := range sortedKeys(data.Modified) {
		for _, event := range data.Modified[id] {
			stamp, _ := event[timeField].(string)
			fmt.Fprintf(&b, "  ~ %s at %s\n", id, stamp)
			if !diffs {
				continue
			}
			d, err := ModifiedDiff(id, event, current[id])
			if err != nil {
				return fmt.Errorf("rendering diff for %s: %w", id, err)
			}
			for _, l := range strings.SplitAfter(strings.TrimRight(d, "\n"), "\n") {
				b.WriteString("    " + l)
			}
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
