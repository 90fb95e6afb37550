package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gradewatch/internal/watcherr"

	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, "https://ucam.uiu.ac.bd", cfg.Portal.BaseURL)
	require.Equal(t, 60*time.Second, cfg.Schedule.PollInterval.Std())
	require.Equal(t, 5*time.Hour+30*time.Minute, cfg.Schedule.MaxRuntime.Std())
	require.Equal(t, 3, cfg.Schedule.RetryAttempts)
	require.Equal(t, 2*time.Second, cfg.Schedule.RetryDelay.Std())
	require.Equal(t, 60*time.Second, cfg.Schedule.ErrorBackoff.Std())
	require.Equal(t, "sqlite", cfg.State.Backend)
}

func TestDurationJSON(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "1m30s", "b": 45}`), &v))
	require.Equal(t, 90*time.Second, v.A.Std())
	require.Equal(t, 45*time.Second, v.B.Std())

	out, err := json.Marshal(v.A)
	require.NoError(t, err)
	require.Equal(t, `"1m30s"`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{"a": "soon"}`), &v))
}

func TestApplyEnv(t *testing.T) {
	cfg, err := ApplyEnv(Default(), envOf(map[string]string{
		"USER_ID":            "011201001",
		"PASSWORD":           "hunter2",
		"TELEGRAM_BOT_TOKEN": "123:abc",
		"TELEGRAM_CHAT_ID":   "42",
		"POLL_INTERVAL":      "30",
		"MAX_RUNTIME":        "2h",
		"RETRY_ATTEMPTS":     "5",
		"STATE_BACKEND":      "redis",
		"UCAM_BASE_URL":      "",
	}))
	require.NoError(t, err)
	require.Equal(t, "011201001", cfg.Portal.UserID)
	require.Equal(t, "https://ucam.uiu.ac.bd", cfg.Portal.BaseURL)
	require.Equal(t, 30*time.Second, cfg.Schedule.PollInterval.Std())
	require.Equal(t, 2*time.Hour, cfg.Schedule.MaxRuntime.Std())
	require.Equal(t, 5, cfg.Schedule.RetryAttempts)
	require.Equal(t, "redis", cfg.State.Backend)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvInvalid(t *testing.T) {
	_, err := ApplyEnv(Default(), envOf(map[string]string{
		"RETRY_ATTEMPTS": "many",
		"ERROR_BACKOFF":  "later",
	}))
	require.ErrorIs(t, err, watcherr.ErrConfig)
	require.Contains(t, err.Error(), "RETRY_ATTEMPTS")
	require.Contains(t, err.Error(), "ERROR_BACKOFF")
}

func TestValidateMissing(t *testing.T) {
	err := Default().Validate()
	require.ErrorIs(t, err, watcherr.ErrConfig)
	require.Contains(t, err.Error(), "USER_ID")
	require.Contains(t, err.Error(), "PASSWORD")
	require.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
}

func TestValidateSchedule(t *testing.T) {
	cfg := Default()
	cfg.Portal.UserID = "u"
	cfg.Portal.Password = "p"
	cfg.Notify.Email = EmailConfig{SmtpServer: "smtp.example.com", From: "bot@example.com", To: []string{"me@example.com"}}
	cfg.Schedule.RetryAttempts = 0
	err := cfg.Validate()
	require.ErrorIs(t, err, watcherr.ErrConfig)
	require.Contains(t, err.Error(), "retry_attempts")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gradewatch.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		portal: {user_id: "from-file", password: "pw"},
		schedule: {poll_interval: "2m"},
		state: {backend: "postgres", dsn: "postgres://localhost/gw"},
	}`), 0644))

	t.Setenv("USER_ID", "from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Portal.UserID)
	require.Equal(t, "pw", cfg.Portal.Password)
	require.Equal(t, 2*time.Minute, cfg.Schedule.PollInterval.Std())
	require.Equal(t, "postgres", cfg.State.Backend)
	require.Equal(t, 3, cfg.Schedule.RetryAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	require.NoError(t, err)
	require.Equal(t, Default().Portal.BaseURL, cfg.Portal.BaseURL)
}
