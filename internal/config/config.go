// Package config assembles gradewatch's configuration from defaults, json5
// files and the environment, in that order of precedence (lowest first).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gradewatch/internal/components/configutil"
	"gradewatch/internal/components/telemetry"
	"gradewatch/internal/watcherr"

	"github.com/joho/godotenv"
)

// Duration is a time.Duration that reads "90s" style strings or a plain
// number of seconds from config files and the environment.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	raw := strings.Trim(string(b), `"'`)
	parsed, err := ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDuration accepts Go duration syntax or a bare number of seconds.
func ParseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(secs * float64(time.Second)), nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return Duration(parsed), nil
}

type PortalConfig struct {
	BaseURL  string `json:"base_url"`
	UserID   string `json:"user_id"`
	Password string `json:"password"`
	// CoursePath is the page holding the course table, relative to BaseURL.
	CoursePath       string   `json:"course_path"`
	TableSelector    string   `json:"table_selector"`
	CloudflareBypass bool     `json:"cloudflare_bypass"`
	RequestTimeout   Duration `json:"request_timeout"`
	// RequestsPerSecond paces all portal traffic.
	RequestsPerSecond float64 `json:"requests_per_second"`
	// DumpDir, when set, receives a text file per portal request and response.
	DumpDir string `json:"dump_dir"`
}

type TelegramConfig struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
	ChatID  string `json:"chat_id"`
}

func (c TelegramConfig) Enabled() bool {
	return c.Token != "" && c.ChatID != ""
}

type EmailConfig struct {
	SmtpServer string   `json:"smtp_server"`
	Port       int      `json:"port"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	From       string   `json:"from"`
	To         []string `json:"to"`
}

func (c EmailConfig) Enabled() bool {
	return c.SmtpServer != "" && c.From != "" && len(c.To) > 0
}

type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Email    EmailConfig    `json:"email"`
}

type StateConfig struct {
	// Backend is one of sqlite, libsql, postgres or redis.
	Backend   string `json:"backend"`
	DSN       string `json:"dsn"`
	AuthToken string `json:"auth_token"`
	// Key is the redis key holding the document.
	Key string `json:"key"`
}

type ScheduleConfig struct {
	PollInterval  Duration `json:"poll_interval"`
	MaxRuntime    Duration `json:"max_runtime"`
	RetryAttempts int      `json:"retry_attempts"`
	RetryDelay    Duration `json:"retry_delay"`
	ErrorBackoff  Duration `json:"error_backoff"`
	// Cron is the relaunch schedule used by the daemon command.
	Cron string `json:"cron"`
}

type Config struct {
	Portal    PortalConfig     `json:"portal"`
	Notify    NotifyConfig     `json:"notify"`
	State     StateConfig      `json:"state"`
	Schedule  ScheduleConfig   `json:"schedule"`
	Telemetry telemetry.Config `json:"telemetry"`
}

func Default() Config {
	return Config{
		Portal: PortalConfig{
			BaseURL:           "https://ucam.uiu.ac.bd",
			CoursePath:        "/Student/StudentCourseHistory.aspx",
			TableSelector:     "table#ctl00_MainContainer_gvRegisteredCourse",
			RequestTimeout:    Duration(10 * time.Second),
			RequestsPerSecond: 2,
		},
		Notify: NotifyConfig{
			Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
			Email:    EmailConfig{Port: 587},
		},
		State: StateConfig{
			Backend: "sqlite",
			DSN:     "gradewatch.db",
			Key:     "gradewatch:state",
		},
		Schedule: ScheduleConfig{
			PollInterval:  Duration(60 * time.Second),
			MaxRuntime:    Duration(5*time.Hour + 30*time.Minute),
			RetryAttempts: 3,
			RetryDelay:    Duration(2 * time.Second),
			ErrorBackoff:  Duration(60 * time.Second),
			Cron:          "0 */6 * * *",
		},
	}
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads the config file at path (a missing file is fine), loads `.env`
// into the process environment when present and applies env overrides.
func Load(path string) (Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, watcherr.Wrap(watcherr.ErrConfig, "config.dotenv", err)
	}

	cfg, err := configutil.Merge(path, Default())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, watcherr.Wrap(watcherr.ErrConfig, "config.file", err)
	}

	cfg, err = ApplyEnv(cfg, os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any of the recognized environment variables.
func ApplyEnv(cfg Config, lookup LookupFunc) (Config, error) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		parsed, err := ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = parsed
	}

	str("UCAM_BASE_URL", &cfg.Portal.BaseURL)
	str("USER_ID", &cfg.Portal.UserID)
	str("PASSWORD", &cfg.Portal.Password)
	str("TELEGRAM_BOT_TOKEN", &cfg.Notify.Telegram.Token)
	str("TELEGRAM_CHAT_ID", &cfg.Notify.Telegram.ChatID)
	str("STATE_BACKEND", &cfg.State.Backend)
	str("STATE_DSN", &cfg.State.DSN)
	str("STATE_AUTH_TOKEN", &cfg.State.AuthToken)
	dur("POLL_INTERVAL", &cfg.Schedule.PollInterval)
	dur("MAX_RUNTIME", &cfg.Schedule.MaxRuntime)
	dur("RETRY_DELAY", &cfg.Schedule.RetryDelay)
	dur("ERROR_BACKOFF", &cfg.Schedule.ErrorBackoff)

	if v, ok := lookup("RETRY_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RETRY_ATTEMPTS: %w", err))
		} else {
			cfg.Schedule.RetryAttempts = n
		}
	}

	if len(errs) > 0 {
		return cfg, watcherr.Wrap(watcherr.ErrConfig, "config.env", errors.Join(errs...))
	}
	return cfg, nil
}

// Validate checks everything a polling run needs.
func (c Config) Validate() error {
	var missing []string
	if c.Portal.BaseURL == "" {
		missing = append(missing, "portal.base_url (UCAM_BASE_URL)")
	}
	if c.Portal.UserID == "" {
		missing = append(missing, "portal.user_id (USER_ID)")
	}
	if c.Portal.Password == "" {
		missing = append(missing, "portal.password (PASSWORD)")
	}
	if !c.Notify.Telegram.Enabled() && !c.Notify.Email.Enabled() {
		missing = append(missing, "notify.telegram (TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID) or notify.email")
	}
	if c.State.Backend == "" {
		missing = append(missing, "state.backend (STATE_BACKEND)")
	}
	if len(missing) > 0 {
		return watcherr.New(watcherr.ErrConfig, "config.validate", "missing %s", strings.Join(missing, ", "))
	}

	var invalid []string
	if c.Schedule.PollInterval <= 0 {
		invalid = append(invalid, "schedule.poll_interval must be positive")
	}
	if c.Schedule.MaxRuntime <= 0 {
		invalid = append(invalid, "schedule.max_runtime must be positive")
	}
	if c.Schedule.RetryAttempts < 1 {
		invalid = append(invalid, "schedule.retry_attempts must be at least 1")
	}
	if c.Schedule.ErrorBackoff < 0 || c.Schedule.RetryDelay < 0 {
		invalid = append(invalid, "schedule delays must not be negative")
	}
	if len(invalid) > 0 {
		return watcherr.New(watcherr.ErrConfig, "config.validate", "%s", strings.Join(invalid, ", "))
	}
	return nil
}
