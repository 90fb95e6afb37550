package commands

import (
	"context"
	"log/slog"

	"gradewatch/internal/components/serviceutil"
	"gradewatch/internal/components/telemetry"
	"gradewatch/internal/config"
	"gradewatch/internal/poller"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

// runOnce performs one bootstrap and polling run to completion.
func runOnce(ctx context.Context, cfg config.Config, tel telemetry.API) error {
	runID := uuid.NewString()
	store, err := openStore(ctx, cfg, runID, tel)
	if err != nil {
		return err
	}
	defer store.Close()

	session, err := newSession(cfg, tel)
	if err != nil {
		return err
	}

	p := poller.New(
		session,
		newExtractor(cfg, tel),
		store,
		newDispatcher(cfg, tel),
		poller.Options{
			PollInterval: cfg.Schedule.PollInterval.Std(),
			MaxRuntime:   cfg.Schedule.MaxRuntime.Std(),
			ErrorBackoff: cfg.Schedule.ErrorBackoff.Std(),
			Retry:        retryPolicy(cfg),
			RunID:        runID,
		},
		tel,
	)

	slog.Info(
		"starting run",
		"run_id", runID,
		"poll_interval", cfg.Schedule.PollInterval.String(),
		"max_runtime", cfg.Schedule.MaxRuntime.String(),
		"state_backend", cfg.State.Backend,
	)
	err = p.Run(ctx)
	if err != nil {
		return err
	}
	slog.Info("run finished", "run_id", runID)
	return nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Logs in, seeds tracking on first use and polls until the runtime budget or a signal stops it.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(true)

		ctx, cancel := serviceutil.SignalContext(cmd.Context())
		defer cancel()

		tel, shutdown := setupTelemetry(ctx, cfg)
		defer shutdown()

		return runOnce(ctx, cfg, tel)
	},
}
