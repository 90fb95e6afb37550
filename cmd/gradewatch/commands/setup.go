package commands

import (
	"context"
	"fmt"
	"time"

	"gradewatch/internal/reconcile"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Replaces the tracked pending courses with every ungraded course currently on the portal.",
	Long: `Replaces the tracked pending courses with every ungraded course currently on the portal.
Courses already notified stay notified and are never tracked again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(true)
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		tel, shutdown := setupTelemetry(ctx, cfg)
		defer shutdown()

		store, err := openStore(ctx, cfg, uuid.NewString(), tel)
		if err != nil {
			return err
		}
		defer store.Close()

		session, err := newSession(cfg, tel)
		if err != nil {
			return err
		}
		err = session.Login(ctx)
		if err != nil {
			return fmt.Errorf("failed to log in: %w", err)
		}
		page, err := session.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch course page: %w", err)
		}
		records, err := newExtractor(cfg, tel).Extract(page)
		if err != nil {
			return fmt.Errorf("failed to read course table: %w", err)
		}

		tracked, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}
		tracked.Pending = reconcile.Seed(records, tracked.Notified)
		err = store.Save(ctx, tracked)
		if err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Found %d courses, tracking %d without a published grade.\n", len(records), len(tracked.Pending))
		renderRecords(out, "Pending", tracked.Pending)
		return nil
	},
}
