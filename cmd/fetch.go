package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chronomaps/footsteps/internal/fetch"
)

var fetchURL string

var fetchCmd = &cobra.Command{
	Use:   "fetch [year...]",
	Short: "Download density grid archives",
	Long:  "Downloads zipped density grids into the data directory and extracts the ASCII grids inside. Years are given as signed integers, negative for BC.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if fetchURL == "" && len(args) == 0 {
			return eris.New("either --url or at least one year is required")
		}

		client := fetch.New(fetch.Options{
			Timeout:       time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries:    cfg.Fetch.MaxRetries,
			RatePerSecond: cfg.Fetch.RatePerSecond,
		})

		urls := make([]string, 0, len(args)+1)
		if fetchURL != "" {
			urls = append(urls, fetchURL)
		}
		for _, arg := range args {
			year, err := strconv.Atoi(arg)
			if err != nil {
				return eris.Errorf("invalid year %q", arg)
			}
			urls = append(urls, archiveURL(cfg.Fetch.BaseURL, year))
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(2)
		for _, u := range urls {
			g.Go(func() error {
				grids, err := client.FetchArchive(gctx, u, cfg.Data.Dir)
				if err != nil {
					return eris.Wrapf(err, "fetch %s", u)
				}
				zap.L().Info("archive fetched", zap.String("url", u), zap.Int("grids", len(grids)))
				return nil
			})
		}

		return g.Wait()
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "explicit archive URL instead of year-derived names")
	rootCmd.AddCommand(fetchCmd)
}

// archiveURL builds the download URL for one year's archive. Upstream names
// archives 1000BC_pop.zip and 1500AD_pop.zip.
func archiveURL(baseURL string, year int) string {
	if year < 0 {
		return fmt.Sprintf("%s/%dBC_pop.zip", baseURL, -year)
	}
	return fmt.Sprintf("%s/%dAD_pop.zip", baseURL, year)
}
