package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits the process immediately.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	ctx, stop, _ := watchSignals(parent, sigs, func() { signal.Stop(sigs) })
	return ctx, stop
}

// watchSignals cancels the returned context on the first value from sigs.
// The watcher exits, closing exited, once stop is called or parent ends
// before any signal arrived.
func watchSignals(
	parent context.Context,
	sigs <-chan os.Signal,
	release func(),
) (ctx context.Context, stop context.CancelFunc, exited <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	var once sync.Once
	stop = func() {
		once.Do(func() {
			release()
			close(done)
		})
		cancel()
	}

	out := make(chan struct{})
	go func() {
		defer close(out)
		select {
		case sig := <-sigs:
			slog.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			return
		case <-done:
			return
		}
		select {
		case sig := <-sigs:
			Fatal("received second signal", errSignal{sig})
		case <-done:
		}
	}()

	return ctx, stop, out
}

type errSignal struct{ sig os.Signal }

func (e errSignal) Error() string { return "signal: " + e.sig.String() }

func Fatal(message string, err error) {
	if err == nil {
		slog.Error(message)
	} else {
		slog.Error(message, "err", err.Error())
	}
	os.Exit(1)
}
