package reconcile

import (
	"testing"

	"gradewatch/internal/course"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func rec(id, name, grade, point string) course.Record {
	return course.Record{CourseID: id, CourseName: name, Trimester: "Spring 2025", Credit: "3.00", Grade: grade, Point: point}
}

func TestPublishedCourseEmitsEvent(t *testing.T) {
	cse := rec("CSE101", "Intro", "", "")
	mat := rec("MAT101", "Calculus", "", "")
	state := course.TrackedState{Pending: []course.Record{cse, mat}}

	cseGraded := rec("CSE101", "Intro", "A", "4.00")
	result := Reconcile([]course.Record{cseGraded, mat}, state)

	require.Empty(t, cmp.Diff([]course.PublicationEvent{{Key: cse.Key(), Record: cseGraded}}, result.Events))
	require.Empty(t, cmp.Diff([]course.Record{cseGraded, mat}, result.NextPending))

	next := Apply(state, result)
	require.Empty(t, cmp.Diff([]course.Record{mat}, next.Pending))
	require.Equal(t, []course.Key{cse.Key()}, next.Notified)
}

func TestReconcileIsPure(t *testing.T) {
	cse := rec("CSE101", "Intro", "", "")
	state := course.TrackedState{Pending: []course.Record{cse}}
	before := state.Clone()
	current := []course.Record{rec("CSE101", "Intro", "A", "4.00")}

	first := Reconcile(current, state)
	second := Reconcile(current, state)
	require.Empty(t, cmp.Diff(first, second))
	require.Empty(t, cmp.Diff(before, state))
}

func TestNotifiedNeverEmitsAgain(t *testing.T) {
	cse := rec("CSE101", "Intro", "A", "4.00")
	state := course.TrackedState{Notified: []course.Key{cse.Key()}}
	result := Reconcile([]course.Record{cse}, state)
	require.Empty(t, result.Events)
	require.Empty(t, result.NextPending)

	// a stale document holding the key in both sets
	state.Pending = []course.Record{rec("CSE101", "Intro", "", "")}
	result = Reconcile([]course.Record{cse}, state)
	require.Empty(t, result.Events)
	require.Empty(t, result.NextPending)
}

func TestIdempotentAfterCommit(t *testing.T) {
	state := course.TrackedState{Pending: []course.Record{rec("CSE101", "Intro", "", "")}}
	current := []course.Record{rec("CSE101", "Intro", "B+", "3.33")}

	first := Reconcile(current, state)
	require.Len(t, first.Events, 1)
	state = Apply(state, first)

	second := Reconcile(current, state)
	require.Empty(t, second.Events)
}

func TestGradeWithoutPointStaysPending(t *testing.T) {
	pending := rec("CSE101", "Intro", "", "")
	state := course.TrackedState{Pending: []course.Record{pending}}
	partial := rec("CSE101", "Intro", "A", "")

	result := Reconcile([]course.Record{partial}, state)
	require.Empty(t, result.Events)
	require.Empty(t, cmp.Diff([]course.Record{partial}, result.NextPending))
}

func TestMissingCourseKeepsStoredCopy(t *testing.T) {
	pending := rec("CSE101", "Intro", "", "")
	state := course.TrackedState{Pending: []course.Record{pending}}

	result := Reconcile([]course.Record{rec("MAT101", "Calculus", "A", "4.00")}, state)
	require.Empty(t, result.Events)
	require.Empty(t, cmp.Diff([]course.Record{pending}, result.NextPending))
}

func TestKeyMatchingIgnoresWhitespace(t *testing.T) {
	state := course.TrackedState{Pending: []course.Record{rec(" CSE101", "Intro ", "", "")}}
	result := Reconcile([]course.Record{rec("CSE101", "Intro", "A-", "3.67")}, state)
	require.Len(t, result.Events, 1)
	require.Equal(t, course.NewKey("CSE101", "Intro", "Spring 2025"), result.Events[0].Key)
}

func TestEventsFollowPendingOrder(t *testing.T) {
	a := rec("A1", "First", "", "")
	b := rec("B1", "Second", "", "")
	state := course.TrackedState{Pending: []course.Record{b, a}}
	result := Reconcile([]course.Record{
		rec("A1", "First", "A", "4.00"),
		rec("B1", "Second", "B", "3.00"),
	}, state)
	require.Len(t, result.Events, 2)
	require.Equal(t, "B1", result.Events[0].Key.CourseID)
	require.Equal(t, "A1", result.Events[1].Key.CourseID)
}

func TestDuplicatePendingEmitsOnce(t *testing.T) {
	cse := rec("CSE101", "Intro", "", "")
	state := course.TrackedState{Pending: []course.Record{cse, cse}}
	result := Reconcile([]course.Record{rec("CSE101", "Intro", "A", "4.00")}, state)
	require.Len(t, result.Events, 1)
	require.Len(t, result.NextPending, 1)
}

func TestSeed(t *testing.T) {
	cse := rec("CSE101", "Intro", "", "")
	mat := rec("MAT101", "Calculus", "A", "4.00")
	phy := rec("PHY101", "Physics", "B", "")
	eng := rec("ENG101", "English", "", "")

	seeded := Seed(
		[]course.Record{cse, mat, phy, cse, eng},
		[]course.Key{eng.Key()},
	)
	require.Empty(t, cmp.Diff([]course.Record{cse, phy}, seeded))
	require.Empty(t, Seed(nil, nil))
}
