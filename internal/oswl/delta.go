package oswl

import (
	"reflect"
	"time"
)

// Within one snapshot pair ids are compared in their native form, so 1 and
// "1" are different resources. Accumulator keys always use IDKey.

// ComputeAdded stamps every id that is in curr but not in prev with the time
// it was first seen. An existing entry for such an id is overwritten.
func ComputeAdded(at time.Time, prev, curr Snapshot, acc Added) Added {
	if acc == nil {
		acc = make(Added)
	}
	stamp := Stamp{Time: FormatTimeOfDay(at)}
	prevIDs := idSet(prev)
	for id := range idSet(curr) {
		if _, ok := prevIDs[id]; !ok {
			acc[IDKey(id)] = stamp
		}
	}
	return acc
}

// ComputeRemoved records the full previous state of every resource that is
// in prev but not in curr, stamped with the removal time. Any entry for an id
// that is present in curr is then dropped: a resource that was removed and
// came back (a cluster reset recreating an external flavor, say) must not
// stay listed as removed.
func ComputeRemoved(at time.Time, prev, curr Snapshot, acc Removed) Removed {
	if acc == nil {
		acc = make(Removed)
	}
	stamp := FormatTimeOfDay(at)
	currIDs := idSet(curr)
	for _, res := range prev {
		if _, ok := currIDs[res.ID()]; ok {
			continue
		}
		entry := res.clone()
		entry[timeField] = stamp
		acc[IDKey(res.ID())] = entry
	}
	for id := range currIDs {
		delete(acc, IDKey(id))
	}
	return acc
}

// ComputeModified appends a change event for every id present in both
// snapshots whose resource changed. The event holds the previous value of
// each field of the previous resource that differs in the current one
// (a field missing from curr compares as null). Fields that only exist in
// curr are not recorded.
func ComputeModified(at time.Time, prev, curr Snapshot, acc Modified) Modified {
	if acc == nil {
		acc = make(Modified)
	}
	stamp := FormatTimeOfDay(at)
	currByID := indexByID(curr)
	for id, p := range indexByID(prev) {
		c, ok := currByID[id]
		if !ok || reflect.DeepEqual(p, c) {
			continue
		}
		event := make(Resource)
		for k, v := range p {
			if !reflect.DeepEqual(v, c[k]) {
				event[k] = v
			}
		}
		event[timeField] = stamp
		key := IDKey(id)
		acc[key] = append(acc[key], event)
	}
	return acc
}
