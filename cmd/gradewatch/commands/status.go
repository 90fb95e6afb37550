package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"gradewatch/internal/components/chrono"
	"gradewatch/internal/course"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

func renderRecords(out io.Writer, title string, records []course.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("%s (%d)", title, len(records)))
	t.AppendHeader(table.Row{"Course ID", "Course Name", "Trimester", "Credit", "Grade", "Point"})
	for _, r := range records {
		t.AppendRow(table.Row{r.CourseID, r.CourseName, r.Trimester, r.Credit, r.Grade, r.Point})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func renderKeys(out io.Writer, title string, keys []course.Key) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("%s (%d)", title, len(keys)))
	t.AppendHeader(table.Row{"Course ID", "Course Name", "Trimester"})
	for _, k := range course.SortedKeys(keys) {
		t.AppendRow(table.Row{k.CourseID, k.CourseName, k.Trimester})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the pending and notified courses from the state store.",
	Args:  cobra.NoArgs,
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

		doc, ok, err := store.Document(ctx)
		if err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}
		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintln(out, "No state saved yet, run `gradewatch setup` or `gradewatch run`.")
			return nil
		}

		tracked := doc.State()
		updated := doc.UpdatedAt()
		if !updated.IsZero() {
			ago := chrono.NewStandardTime().Now().Sub(updated).Round(time.Second)
			fmt.Fprintf(out, "Last updated %s (%s ago) by run %s\n", doc.LastUpdated, ago, doc.RunID)
		}
		renderRecords(out, "Pending", tracked.Pending)
		renderKeys(out, "Notified", tracked.Notified)
		return nil
	},
}
