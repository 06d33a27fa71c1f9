// Package export writes aggregated settlements as newline-delimited GeoJSON,
// one feature per line, the input format the downstream tiling step expects.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/chronomaps/footsteps/internal/lod"
)

// WriteLevel streams one GeoJSON feature per aggregated settlement to w.
func WriteLevel(w io.Writer, aggs []lod.AggregatedSettlement) error {
	bw := bufio.NewWriter(w)
	for _, a := range aggs {
		f := &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{a.Coordinates.Lon, a.Coordinates.Lat}),
			Properties: map[string]any{
				"population": a.TotalPopulation,
				"year":       a.Year,
				"level":      a.Level.String(),
				"density":    a.AverageDensity,
				"dots":       a.SourceDotCount,
			},
		}
		data, err := f.MarshalJSON()
		if err != nil {
			return eris.Wrap(err, "export: marshal feature")
		}
		if _, err := bw.Write(data); err != nil {
			return eris.Wrap(err, "export: write feature")
		}
		if err := bw.WriteByte('\n'); err != nil {
			return eris.Wrap(err, "export: write feature")
		}
	}
	return eris.Wrap(bw.Flush(), "export: flush")
}

// FileName returns the export file name for a year and level, using the
// same BC/AD year labels as the source grids.
func FileName(year int, level lod.Level) string {
	if year < 0 {
		return fmt.Sprintf("footsteps_%dBC_%s.geojsonl", -year, level)
	}
	return fmt.Sprintf("footsteps_%dAD_%s.geojsonl", year, level)
}

// WriteYear writes one file per detail level into dir and returns the
// written paths. Empty levels still produce a file so consumers can tell
// "processed, nothing there" from "never processed".
func WriteYear(dir string, year int, levels map[lod.Level][]lod.AggregatedSettlement) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create dir %s", dir)
	}

	var paths []string
	for _, level := range lod.Levels() {
		path := filepath.Join(dir, FileName(year, level))
		if err := writeFile(path, levels[level]); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	zap.L().Info("export: year written",
		zap.Int("year", year),
		zap.String("dir", dir),
		zap.Int("files", len(paths)),
	)
	return paths, nil
}

func writeFile(path string, aggs []lod.AggregatedSettlement) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := WriteLevel(f, aggs); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
