// Package course holds the records read from the portal's course table and
// the tracked state derived from them.
package course

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gradewatch/lib/textutil"
)

const (
	HeaderCourseID   = "Course ID"
	HeaderCourseName = "Course Name"
	HeaderTrimester  = "Trimester"
	HeaderCredit     = "Credit"
	HeaderGrade      = "Grade"
	HeaderPoint      = "Point"
)

// Record is one row of the course table. Columns the portal adds beyond the
// well-known ones are kept verbatim in Extra.
type Record struct {
	CourseID   string
	CourseName string
	Trimester  string
	Credit     string
	// Grade and Point are empty until the grade is published.
	Grade string
	Point string
	Extra map[string]string
}

func (r *Record) field(header string) *string {
	switch textutil.NormalizeName(header) {
	case "courseid":
		return &r.CourseID
	case "coursename":
		return &r.CourseName
	case "trimester":
		return &r.Trimester
	case "credit":
		return &r.Credit
	case "grade":
		return &r.Grade
	case "point":
		return &r.Point
	}
	return nil
}

// FromColumns builds a record from a header to cell mapping. Header matching
// ignores case and whitespace.
func FromColumns(columns map[string]string) Record {
	var r Record
	for header, value := range columns {
		if f := r.field(header); f != nil {
			*f = value
			continue
		}
		if r.Extra == nil {
			r.Extra = map[string]string{}
		}
		r.Extra[header] = value
	}
	return r
}

// Columns is the inverse of FromColumns, using the canonical header names.
func (r Record) Columns() map[string]string {
	out := make(map[string]string, 6+len(r.Extra))
	for k, v := range r.Extra {
		out[k] = v
	}
	out[HeaderCourseID] = r.CourseID
	out[HeaderCourseName] = r.CourseName
	out[HeaderTrimester] = r.Trimester
	out[HeaderCredit] = r.Credit
	out[HeaderGrade] = r.Grade
	out[HeaderPoint] = r.Point
	return out
}

// Published reports whether both grade and grade point are present.
// A grade without a point is still pending.
func (r Record) Published() bool {
	return strings.TrimSpace(r.Grade) != "" && strings.TrimSpace(r.Point) != ""
}

func (r Record) Key() Key {
	return NewKey(r.CourseID, r.CourseName, r.Trimester)
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s (%s)", r.CourseID, r.CourseName, r.Trimester)
}

func (r Record) MarshalJSON() ([]byte, error) {
	// encoding/json sorts map keys, so equal records encode identically.
	return json.Marshal(r.Columns())
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var columns map[string]string
	if err := json.Unmarshal(b, &columns); err != nil {
		return err
	}
	*r = FromColumns(columns)
	return nil
}

// Equal compares all columns, treating a nil and an empty Extra the same.
func (r Record) Equal(o Record) bool {
	a, b := r.Columns(), o.Columns()
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if ov, ok := b[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Key identifies a course across polls. Fields are trimmed.
type Key struct {
	CourseID   string
	CourseName string
	Trimester  string
}

func NewKey(courseID, courseName, trimester string) Key {
	return Key{
		CourseID:   strings.TrimSpace(courseID),
		CourseName: strings.TrimSpace(courseName),
		Trimester:  strings.TrimSpace(trimester),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.CourseID, k.CourseName, k.Trimester)
}

func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{k.CourseID, k.CourseName, k.Trimester})
}

func (k *Key) UnmarshalJSON(b []byte) error {
	var tuple []string
	if err := json.Unmarshal(b, &tuple); err != nil {
		return err
	}
	if len(tuple) != 3 {
		return fmt.Errorf("course key must have 3 elements, got %d", len(tuple))
	}
	*k = NewKey(tuple[0], tuple[1], tuple[2])
	return nil
}

// PublicationEvent is emitted when a pending course shows up with its grade.
type PublicationEvent struct {
	Key    Key
	Record Record
}

// TrackedState is what survives across runs: the courses still awaiting a
// grade and the courses already notified. A key is never in both.
type TrackedState struct {
	Pending  []Record
	Notified []Key
}

func (s TrackedState) IsEmpty() bool {
	return len(s.Pending) == 0 && len(s.Notified) == 0
}

func (s TrackedState) Clone() TrackedState {
	var out TrackedState
	if s.Pending != nil {
		out.Pending = make([]Record, len(s.Pending))
		for i, r := range s.Pending {
			if r.Extra != nil {
				extra := make(map[string]string, len(r.Extra))
				for k, v := range r.Extra {
					extra[k] = v
				}
				r.Extra = extra
			}
			out.Pending[i] = r
		}
	}
	if s.Notified != nil {
		out.Notified = append([]Key{}, s.Notified...)
	}
	return out
}

func (s TrackedState) NotifiedSet() map[Key]struct{} {
	set := make(map[Key]struct{}, len(s.Notified))
	for _, k := range s.Notified {
		set[k] = struct{}{}
	}
	return set
}

// IsNotified is a linear scan, use NotifiedSet for repeated lookups.
func (s TrackedState) IsNotified(key Key) bool {
	for _, k := range s.Notified {
		if k == key {
			return true
		}
	}
	return false
}

// Commit records that key was notified and stops tracking it as pending.
// Committing an already notified key is a no-op.
func (s *TrackedState) Commit(key Key) {
	s.Prune(key)
	if !s.IsNotified(key) {
		s.Notified = append(s.Notified, key)
	}
}

// Prune drops key from Pending without marking it notified.
// It reports whether anything was removed.
func (s *TrackedState) Prune(key Key) bool {
	kept := s.Pending[:0:0]
	removed := false
	for _, r := range s.Pending {
		if r.Key() == key {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	s.Pending = kept
	return removed
}

// Normalize removes duplicate keys, keeping the first occurrence, and drops
// pending records whose key is already notified.
func (s *TrackedState) Normalize() {
	notified := make([]Key, 0, len(s.Notified))
	seen := map[Key]struct{}{}
	for _, k := range s.Notified {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		notified = append(notified, k)
	}
	pending := make([]Record, 0, len(s.Pending))
	for _, r := range s.Pending {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		pending = append(pending, r)
	}
	s.Notified = notified
	s.Pending = pending
}

// SortedKeys returns keys ordered by trimester, then course id, for display.
func SortedKeys(keys []Key) []Key {
	out := append([]Key(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Trimester != out[j].Trimester {
			return out[i].Trimester < out[j].Trimester
		}
		return out[i].CourseID < out[j].CourseID
	})
	return out
}
