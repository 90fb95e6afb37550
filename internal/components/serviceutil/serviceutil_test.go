package serviceutil

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("signal watcher did not exit")
	}
}

func TestWatcherExitsAfterSignalAndStop(t *testing.T) {
	sigs := make(chan os.Signal, 2)
	released := false
	ctx, stop, exited := watchSignals(context.Background(), sigs, func() { released = true })

	sigs <- syscall.SIGTERM
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled by the signal")
	}

	stop()
	waitClosed(t, exited)
	require.True(t, released)
	// a second stop is harmless
	stop()
}

func TestWatcherExitsOnStopWithoutSignal(t *testing.T) {
	sigs := make(chan os.Signal, 2)
	ctx, stop, exited := watchSignals(context.Background(), sigs, func() {})

	stop()
	waitClosed(t, exited)
	require.Error(t, ctx.Err())
}

func TestWatcherExitsWhenParentEnds(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	_, stop, exited := watchSignals(parent, make(chan os.Signal), func() {})
	defer stop()

	cancel()
	waitClosed(t, exited)
}
