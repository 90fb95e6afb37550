package commands

import (
	"context"

	"gradewatch/internal/components/serviceutil"
	"gradewatch/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gradewatch",
	Short: "gradewatch watches the UCAM course table and announces newly published grades.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "gradewatch.json5", "Path to the json5 config file, <name>.local.json5 is merged over it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output.")
}

// ExecuteContext runs the selected command and exits non-zero on failure,
// after the command's own cleanup has run.
func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		serviceutil.Fatal("command failed", err)
	}
}
