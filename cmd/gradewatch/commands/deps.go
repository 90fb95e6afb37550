package commands

import (
	"context"
	"fmt"
	"log/slog"

	"gradewatch/internal/components/chrono"
	"gradewatch/internal/components/retry"
	"gradewatch/internal/components/serviceutil"
	"gradewatch/internal/components/telemetry"
	"gradewatch/internal/config"
	"gradewatch/internal/coursetable"
	"gradewatch/internal/notify"
	"gradewatch/internal/portal"
	"gradewatch/internal/state"
	"gradewatch/lib/restyutil"

	"go.opentelemetry.io/otel"
)

// loadConfig exits the process when the config is unreadable, or invalid
// while strict is set.
func loadConfig(strict bool) config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if strict {
		err = cfg.Validate()
		if err != nil {
			serviceutil.Fatal("invalid config", err)
		}
	}
	return cfg
}

// setupTelemetry installs otel exporters when configured. The returned
// shutdown flushes them.
func setupTelemetry(ctx context.Context, cfg config.Config) (telemetry.API, func()) {
	var tel telemetry.API = telemetry.SlogAPI{}
	if !cfg.Telemetry.Enabled() {
		return tel, func() {}
	}

	t, err := telemetry.Setup(ctx, "gradewatch", cfg.Telemetry)
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	tel = telemetry.NewMeterAPI(tel, otel.Meter("gradewatch"))
	telemetry.InstrumentPerfStats(ctx, tel)

	return tel, func() {
		err := t.Shutdown(context.WithoutCancel(ctx))
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}
}

func retryPolicy(cfg config.Config) retry.Policy {
	return retry.Policy{
		Attempts: cfg.Schedule.RetryAttempts,
		Delay:    cfg.Schedule.RetryDelay.Std(),
	}
}

func openStore(ctx context.Context, cfg config.Config, runID string, tel telemetry.API) (*state.DocumentStore, error) {
	store, err := state.Open(ctx, cfg.State, state.Options{
		Time:  chrono.NewStandardTime(),
		RunID: runID,
		Tel:   tel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}

func newSession(cfg config.Config, tel telemetry.API) (*portal.Session, error) {
	var dump restyutil.Output
	if cfg.Portal.DumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(cfg.Portal.DumpDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create dump dir: %w", err)
		}
		dump = out
	}

	session, err := portal.NewSession(portal.Options{
		BaseURL:           cfg.Portal.BaseURL,
		UserID:            cfg.Portal.UserID,
		Password:          cfg.Portal.Password,
		CoursePath:        cfg.Portal.CoursePath,
		Timeout:           cfg.Portal.RequestTimeout.Std(),
		RequestsPerSecond: cfg.Portal.RequestsPerSecond,
		CloudflareBypass:  cfg.Portal.CloudflareBypass,
		Retry:             retryPolicy(cfg),
		Dump:              dump,
	}, tel)
	if err != nil {
		return nil, fmt.Errorf("failed to create portal session: %w", err)
	}
	return session, nil
}

func newExtractor(cfg config.Config, tel telemetry.API) coursetable.Extractor {
	return coursetable.NewExtractor(cfg.Portal.TableSelector, tel)
}

func newDispatcher(cfg config.Config, tel telemetry.API) *notify.Dispatcher {
	var channels []notify.Channel
	if cfg.Notify.Telegram.Enabled() {
		channels = append(channels, notify.NewTelegramChannel(notify.TelegramOptions{
			BaseURL: cfg.Notify.Telegram.BaseURL,
			Token:   cfg.Notify.Telegram.Token,
			ChatID:  cfg.Notify.Telegram.ChatID,
			Timeout: cfg.Portal.RequestTimeout.Std(),
		}, tel))
	}
	if cfg.Notify.Email.Enabled() {
		e := cfg.Notify.Email
		channels = append(channels, notify.NewEmailChannel(notify.EmailOptions{
			SmtpServer: e.SmtpServer,
			Port:       e.Port,
			Username:   e.Username,
			Password:   e.Password,
			From:       e.From,
			To:         e.To,
		}))
	}
	return notify.NewDispatcher(retryPolicy(cfg), tel, channels...)
}
