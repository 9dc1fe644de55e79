package oswl

import (
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	idField   = "id"
	timeField = "time"
)

// Resource is a single inventory item (a VM, a volume, a flavor...). The only
// field it must carry is "id"; everything else is free-form.
type Resource map[string]any

// Snapshot is every resource of one kind for one group, observed at one instant.
type Snapshot []Resource

// ID returns the resource id in its native form.
func (r Resource) ID() any {
	return r[idField]
}

// clone returns a shallow copy of r. Nested values are shared.
func (r Resource) clone() Resource {
	c := make(Resource, len(r)+1)
	for k, v := range r {
		c[k] = v
	}
	return c
}

// IDKey renders a resource id in the string form used for accumulator keys.
// Accumulators are persisted as JSON objects, so whatever type an id had on
// the way in, it comes back as a string key.
func IDKey(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// ValidateSnapshot checks that every resource carries a usable id: present,
// non-null and a string or a number. The delta functions rely on this.
func ValidateSnapshot(s Snapshot) error {
	for i, r := range s {
		if r == nil {
			return &MalformedResourceError{Index: i, Reason: "resource is null"}
		}
		id, ok := r[idField]
		if !ok {
			return &MalformedResourceError{Index: i, Reason: "missing id field"}
		}
		if !validID(id) {
			return &MalformedResourceError{Index: i, Reason: fmt.Sprintf("id has unsupported type %T", id)}
		}
	}
	return nil
}

func validID(id any) bool {
	switch id.(type) {
	case string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// idSet collects the native ids of a snapshot.
func idSet(s Snapshot) map[any]struct{} {
	ids := make(map[any]struct{}, len(s))
	for _, r := range s {
		ids[r.ID()] = struct{}{}
	}
	return ids
}

// indexByID maps native ids to resources. On duplicate ids the last one wins.
func indexByID(s Snapshot) map[any]Resource {
	m := make(map[any]Resource, len(s))
	for _, r := range s {
		m[r.ID()] = r
	}
	return m
}
