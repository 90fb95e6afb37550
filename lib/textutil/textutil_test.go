package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "courseid", NormalizeName("  Course\tID "))
	require.Equal(t, NormalizeName("Course Name"), NormalizeName("course  name"))
}

func TestContainsAny(t *testing.T) {
	require.True(t, ContainsAny("Student DASHBOARD", "dashboard", "logout"))
	require.False(t, ContainsAny("Sign In", "dashboard", "logout"))
}
