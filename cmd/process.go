package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chronomaps/footsteps/internal/engine"
	"github.com/chronomaps/footsteps/internal/hyde"
	"github.com/chronomaps/footsteps/internal/landmask"
	"github.com/chronomaps/footsteps/internal/lod"
	"github.com/chronomaps/footsteps/internal/placement"
	"github.com/chronomaps/footsteps/internal/store"
)

var (
	processYear int
	processAll  bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Synthesize settlements from density grids",
	Long:  "Reads density grids from the data directory, places settlement dots, aggregates them into all detail levels, and stores the result keyed by run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !processAll && !cmd.Flags().Changed("year") {
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

		manifest, err := loadManifest()
		if err != nil {
			return err
		}

		land, err := loadLandmask()
		if err != nil {
			return err
		}

		files, err := targetFiles()
		if err != nil {
			return err
		}

		// One engine per dot scale, shared across the years that use it, so
		// the position cache carries between adjacent years.
		engines := make(map[int]*engine.Engine)

		for _, f := range files {
			ppd := cfg.Engine.PeoplePerDot
			if manifest != nil {
				ppd = manifest.PeoplePerDot(f.Year, ppd)
			}

			eng, ok := engines[ppd]
			if !ok {
				eng = engine.New(engineOptions(ppd, land))
				engines[ppd] = eng
			}

			if err := processFile(ctx, st, eng, f); err != nil {
				return err
			}
		}

		zap.L().Info("processing complete", zap.Int("years", len(files)))
		return nil
	},
}

func init() {
	processCmd.Flags().IntVar(&processYear, "year", 0, "process a single year (negative for BC)")
	processCmd.Flags().BoolVar(&processAll, "all", false, "process every grid found in the data directory")
	rootCmd.AddCommand(processCmd)
}

// engineOptions maps the engine config section onto engine.Options for one
// dot scale.
func engineOptions(peoplePerDot int, land placement.LandChecker) engine.Options {
	return engine.Options{
		RuralToTownThreshold: cfg.Engine.RuralToTownThreshold,
		TownToCityThreshold:  cfg.Engine.TownToCityThreshold,
		MinDotPopulation:     cfg.Engine.MinDotPopulation,
		MinDotSpacing:        cfg.Engine.MinDotSpacingDegrees,
		EnableContinuity:     cfg.Engine.EnableContinuity,
		PeoplePerDot:         peoplePerDot,
		Workers:              cfg.Engine.Workers,
		Grids:                cfg.LOD,
		Land:                 land,
	}
}

// loadManifest loads the era manifest when the configured file exists. A
// missing manifest is not an error; the engine default applies to all years.
func loadManifest() (*hyde.Manifest, error) {
	path := cfg.Data.EraManifest
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		zap.L().Debug("no era manifest found", zap.String("path", path))
		return nil, nil
	}
	m, err := hyde.LoadManifest(path)
	if err != nil {
		return nil, eris.Wrap(err, "load era manifest")
	}
	return m, nil
}

// loadLandmask loads the coastline mask when configured. Without one,
// placement runs unconstrained.
func loadLandmask() (placement.LandChecker, error) {
	if cfg.Engine.LandmaskPath == "" {
		return nil, nil
	}
	m, err := landmask.Load(cfg.Engine.LandmaskPath, cfg.Engine.LandmaskResolution)
	if err != nil {
		return nil, eris.Wrap(err, "load landmask")
	}
	return m, nil
}

// targetFiles resolves the --year/--all flags against the data directory.
func targetFiles() ([]hyde.YearFile, error) {
	files, err := hyde.DiscoverYears(cfg.Data.Dir)
	if err != nil {
		return nil, eris.Wrap(err, "discover grids")
	}

	if processAll {
		if len(files) == 0 {
			return nil, eris.Errorf("no density grids found in %s", cfg.Data.Dir)
		}
		return files, nil
	}

	for _, f := range files {
		if f.Year == processYear {
			return []hyde.YearFile{f}, nil
		}
	}
	return nil, eris.Errorf("no grid for year %d in %s (expected %s)",
		processYear, cfg.Data.Dir, hyde.FileName(processYear))
}

// processFile runs one year end to end: read the grid, synthesize dots,
// persist every level under a new run.
func processFile(ctx context.Context, st store.Store, eng *engine.Engine, f hyde.YearFile) error {
	grid, err := hyde.ReadGrid(f.Path)
	if err != nil {
		return eris.Wrapf(err, "read grid for year %d", f.Year)
	}

	result, err := eng.ProcessYear(ctx, f.Year, grid.Cells())
	if err != nil {
		return eris.Wrapf(err, "process year %d", f.Year)
	}

	if _, err := st.CreateRun(ctx, result.RunID, f.Year); err != nil {
		return eris.Wrap(err, "create run")
	}

	for _, level := range lod.Levels() {
		if err := st.SaveAggregates(ctx, result.RunID, f.Year, level, result.LOD[level]); err != nil {
			if failErr := st.FailRun(ctx, result.RunID, err.Error()); failErr != nil {
				zap.L().Error("mark run failed", zap.String("run_id", result.RunID), zap.Error(failErr))
			}
			return eris.Wrapf(err, "save %s aggregates for year %d", level, f.Year)
		}
	}

	if err := st.CompleteRun(ctx, result.RunID, result.Stats); err != nil {
		return eris.Wrap(err, "complete run")
	}

	zap.L().Info("year stored",
		zap.Int("year", f.Year),
		zap.String("run_id", result.RunID),
		zap.Int("dots", result.Stats.DotsCreated),
		zap.Float64("population", result.Stats.TotalPopulation),
	)
	return nil
}
