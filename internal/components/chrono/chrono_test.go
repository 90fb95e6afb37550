package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNowIsInPortalTimezone(t *testing.T) {
	_, offset := NewStandardTime().Now().Zone()
	require.Equal(t, 6*60*60, offset)

	fixed := FixedTime{T: time.Date(2025, 5, 1, 18, 30, 0, 0, time.UTC)}
	require.Equal(t, "2025-05-02T00:30:00+06:00", fixed.Now().Format(time.RFC3339))
}

func TestCronLoggerParams(t *testing.T) {
	l := cronLogger{}
	require.Equal(t, []any{"now: 1", "entry: 2"}, l.formatParams([]any{"now", 1, "entry", 2}))
	require.Equal(t, []any{"now: 1"}, l.formatParams([]any{"now", 1, "dangling"}))
}
