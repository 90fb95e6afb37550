// Package reconcile compares a fresh course table against tracked state.
// Everything here is pure, persistence and delivery happen in the caller.
package reconcile

import "gradewatch/internal/course"

type Result struct {
	// Events are the pending courses that now have a published grade, in
	// pending order. Each must be committed only after it is delivered.
	Events []course.PublicationEvent
	// NextPending is the pending set before any event is committed, with every
	// record replaced by its copy from the current table when present.
	NextPending []course.Record
}

// Reconcile finds the pending courses whose grade has been published.
//
// A pending course missing from the current table keeps its stored copy.
// Pending keys that are already notified are dropped without an event.
func Reconcile(current []course.Record, state course.TrackedState) Result {
	byKey := make(map[course.Key]course.Record, len(current))
	for _, r := range current {
		k := r.Key()
		if _, ok := byKey[k]; !ok {
			byKey[k] = r
		}
	}
	notified := state.NotifiedSet()

	result := Result{
		Events:      []course.PublicationEvent{},
		NextPending: make([]course.Record, 0, len(state.Pending)),
	}
	seen := make(map[course.Key]struct{}, len(state.Pending))
	for _, pending := range state.Pending {
		k := pending.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, done := notified[k]; done {
			continue
		}

		fresh, ok := byKey[k]
		if !ok {
			result.NextPending = append(result.NextPending, pending)
			continue
		}
		result.NextPending = append(result.NextPending, fresh)
		if fresh.Published() {
			result.Events = append(result.Events, course.PublicationEvent{Key: k, Record: fresh})
		}
	}
	return result
}

// Seed picks the courses to track on a first run: every unpublished course
// in the table that has not been notified, once per key.
//
// Courses that never receive a grade stay pending indefinitely.
func Seed(current []course.Record, notified []course.Key) []course.Record {
	skip := make(map[course.Key]struct{}, len(current)+len(notified))
	for _, k := range notified {
		skip[k] = struct{}{}
	}
	out := []course.Record{}
	for _, r := range current {
		if r.Published() {
			continue
		}
		k := r.Key()
		if _, ok := skip[k]; ok {
			continue
		}
		skip[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Apply commits every event to a copy of state with NextPending as its
// pending set, the result of delivering everything successfully.
func Apply(state course.TrackedState, result Result) course.TrackedState {
	next := state.Clone()
	next.Pending = append([]course.Record(nil), result.NextPending...)
	for _, e := range result.Events {
		next.Commit(e.Key)
	}
	return next
}
