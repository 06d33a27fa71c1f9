package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chronomaps/footsteps/internal/model"
	"github.com/chronomaps/footsteps/internal/report"
	"github.com/chronomaps/footsteps/internal/store"
)

var reportOut string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a processing report workbook",
	Long:  "Collects stats from completed runs into an xlsx workbook and prints a summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{Status: store.RunStatusComplete, Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "list runs")
		}

		stats := collectStats(runs)
		if len(stats) == 0 {
			return eris.New("no completed runs to report on")
		}

		if err := report.WriteWorkbook(reportOut, stats); err != nil {
			return eris.Wrap(err, "write workbook")
		}
		zap.L().Info("workbook written", zap.String("path", reportOut), zap.Int("years", len(stats)))

		formatSummary(os.Stdout, report.Summarize(stats))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOut, "out", "footsteps_report.xlsx", "workbook output path")
	rootCmd.AddCommand(reportCmd)
}

// collectStats keeps the most recent stats per year. ListRuns returns runs
// newest first, so the first stats seen for a year win.
func collectStats(runs []store.Run) []model.ProcessingStats {
	seen := make(map[int]bool)
	var stats []model.ProcessingStats
	for _, r := range runs {
		if r.Stats == nil || seen[r.Year] {
			continue
		}
		seen[r.Year] = true
		stats = append(stats, *r.Stats)
	}
	return stats
}

// formatSummary writes the corpus-wide summary to w.
func formatSummary(out io.Writer, s report.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Years:\t%d\n", s.Years)
	_, _ = fmt.Fprintf(w, "Total dots:\t%d\n", s.TotalDots)
	_, _ = fmt.Fprintf(w, "Total population:\t%.0f\n", s.TotalPopulation)
	_, _ = fmt.Fprintf(w, "Mean dots per year:\t%.1f\n", s.MeanDotsPerYear)
	_, _ = fmt.Fprintf(w, "Median population:\t%.0f\n", s.MedianPopulation)
	_, _ = fmt.Fprintf(w, "Total elapsed:\t%s\n", s.TotalElapsed)
	_ = w.Flush()
}
