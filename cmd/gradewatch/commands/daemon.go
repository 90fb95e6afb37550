package commands

import (
	"fmt"
	"log/slog"
	"sync"

	"gradewatch/internal/components/chrono"
	"gradewatch/internal/components/serviceutil"

	"github.com/spf13/cobra"
)

var (
	daemonSchedule string
	daemonNow      bool
)

func init() {
	daemonCmd.Flags().StringVar(&daemonSchedule, "schedule", "", "Cron spec (Asia/Dhaka) for starting runs, defaults to schedule.cron from the config.")
	daemonCmd.Flags().BoolVar(&daemonNow, "now", false, "Also start a run immediately.")
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon [--schedule <cron>] [--now]",
	Short: "Starts a run on a cron schedule, skipping a tick while the previous run is still going.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(true)
		spec := daemonSchedule
		if spec == "" {
			spec = cfg.Schedule.Cron
		}

		ctx, cancel := serviceutil.SignalContext(cmd.Context())
		defer cancel()

		tel, shutdown := setupTelemetry(ctx, cfg)
		defer shutdown()

		var running sync.Mutex
		job := func() {
			if !running.TryLock() {
				slog.Info("previous run still going, skipping")
				return
			}
			defer running.Unlock()
			err := runOnce(ctx, cfg, tel)
			if err != nil {
				// the next tick tries again
				slog.Error("scheduled run failed", "err", err)
			}
		}

		cron := chrono.NewStandardCron(tel)
		err := cron.Cron(spec, job)
		if err != nil {
			cron.Stop()
			return fmt.Errorf("invalid schedule: %w", err)
		}
		slog.Info("daemon started", "schedule", spec)

		if daemonNow {
			go job()
		}

		<-ctx.Done()
		slog.Info("waiting for the current run to drain")
		<-cron.Stop().Done()
		running.Lock()
		return nil
	},
}
