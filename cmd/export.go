package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chronomaps/footsteps/internal/export"
	"github.com/chronomaps/footsteps/internal/lod"
)

var (
	exportYear int
	exportAll  bool
	exportDir  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored aggregates as GeoJSONL",
	Long:  "Writes one newline-delimited GeoJSON file per detail level for each stored year.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !exportAll && !cmd.Flags().Changed("year") {
			return eris.New("either --year or --all is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		dir := exportDir
		if dir == "" {
			dir = cfg.Export.Dir
		}

		years := []int{exportYear}
		if exportAll {
			years, err = st.ListYears(ctx)
			if err != nil {
				return eris.Wrap(err, "list years")
			}
			if len(years) == 0 {
				return eris.New("store holds no processed years")
			}
		}

		for _, year := range years {
			levels := make(map[lod.Level][]lod.AggregatedSettlement, len(lod.Levels()))
			for _, level := range lod.Levels() {
				aggs, err := st.ListAggregates(ctx, year, level)
				if err != nil {
					return eris.Wrapf(err, "list %s aggregates for year %d", level, year)
				}
				levels[level] = aggs
			}

			paths, err := export.WriteYear(dir, year, levels)
			if err != nil {
				return eris.Wrapf(err, "export year %d", year)
			}
			zap.L().Info("year exported", zap.Int("year", year), zap.Int("files", len(paths)))
		}

		return nil
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportYear, "year", 0, "export a single year (negative for BC)")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "export every stored year")
	exportCmd.Flags().StringVar(&exportDir, "out", "", "output directory (default from config)")
	rootCmd.AddCommand(exportCmd)
}
