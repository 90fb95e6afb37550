package commands

import (
	"context"
	"fmt"
	"time"

	"gradewatch/internal/course"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pruneCmd)
}

var pruneCmd = &cobra.Command{
	Use:   "prune <course-id> <course-name> <trimester>",
	Short: "Stops tracking a pending course that will never receive a grade.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(false)
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		tel, shutdown := setupTelemetry(ctx, cfg)
		defer shutdown()

		store, err := openStore(ctx, cfg, uuid.NewString(), tel)
		if err != nil {
			return err
		}
		defer store.Close()

		tracked, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}

		key := course.NewKey(args[0], args[1], args[2])
		if !tracked.Prune(key) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is not pending, nothing to do.\n", key)
			return nil
		}
		err = store.Save(ctx, tracked)
		if err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No longer tracking %s, %d courses still pending.\n", key, len(tracked.Pending))
		return nil
	},
}
