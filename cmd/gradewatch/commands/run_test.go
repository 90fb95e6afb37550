package commands

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"gradewatch/internal/components/telemetry"
	"gradewatch/internal/config"
	"gradewatch/internal/poller"
	"gradewatch/internal/watcherr"

	"github.com/stretchr/testify/require"
)

func TestRunOnceReturnsBootstrapFailure(t *testing.T) {
	portal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer portal.Close()

	var alerts atomic.Int32
	bot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		alerts.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer bot.Close()

	cfg := config.Default()
	cfg.Portal.BaseURL = portal.URL
	cfg.Portal.UserID = "011201234"
	cfg.Portal.Password = "secret"
	cfg.Portal.RequestsPerSecond = 100
	cfg.Notify.Telegram.BaseURL = bot.URL
	cfg.Notify.Telegram.Token = "123:abc"
	cfg.Notify.Telegram.ChatID = "42"
	cfg.State.Backend = "memory"
	cfg.Schedule.RetryAttempts = 1
	cfg.Schedule.RetryDelay = 0

	err := runOnce(context.Background(), cfg, &telemetry.RecordingAPI{})
	require.ErrorIs(t, err, poller.ErrBootstrap)
	require.ErrorIs(t, err, watcherr.ErrLoginFailure)
	require.EqualValues(t, 1, alerts.Load())
}

func TestRunOnceReportsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.State.Backend = "mongo"

	err := runOnce(context.Background(), cfg, &telemetry.RecordingAPI{})
	require.ErrorIs(t, err, watcherr.ErrConfig)
}
