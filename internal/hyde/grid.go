// Package hyde reads HYDE population-density releases: ESRI ASCII grids,
// the year-encoded file naming scheme, and the era manifest that maps year
// ranges to processing parameters.
package hyde

import (
	"bufio"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/chronomaps/footsteps/internal/model"
)

// kmPerDegree approximates the length of one degree at the equator. Cell
// areas shrink with cos(lat) toward the poles.
const kmPerDegree = 111.32

// Grid is a parsed ESRI ASCII raster. Row 0 is the northernmost row.
type Grid struct {
	Cols      int
	Rows      int
	XLLCorner float64
	YLLCorner float64
	CellSize  float64
	NoData    float64
	Values    [][]float64
}

// ReadGrid parses an .asc file: six header lines (ncols, nrows, xllcorner,
// yllcorner, cellsize, nodata_value, any case) followed by whitespace
// separated rows.
func ReadGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "hyde: open grid %s", path)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	g := &Grid{NoData: -9999}
	header := map[string]*float64{
		"xllcorner":    &g.XLLCorner,
		"yllcorner":    &g.YLLCorner,
		"cellsize":     &g.CellSize,
		"nodata_value": &g.NoData,
	}

	for i := 0; i < 6; i++ {
		if !sc.Scan() {
			return nil, eris.Errorf("hyde: %s: truncated header at line %d", path, i+1)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			return nil, eris.Errorf("hyde: %s: malformed header line %q", path, sc.Text())
		}
		key := strings.ToLower(fields[0])
		val, perr := strconv.ParseFloat(fields[1], 64)
		if perr != nil {
			return nil, eris.Wrapf(perr, "hyde: %s: header %s", path, key)
		}
		switch key {
		case "ncols":
			g.Cols = int(val)
		case "nrows":
			g.Rows = int(val)
		default:
			dst, ok := header[key]
			if !ok {
				return nil, eris.Errorf("hyde: %s: unknown header key %q", path, key)
			}
			*dst = val
		}
	}
	if g.Cols <= 0 || g.Rows <= 0 || g.CellSize <= 0 {
		return nil, eris.Errorf("hyde: %s: invalid dimensions %dx%d cellsize %f", path, g.Cols, g.Rows, g.CellSize)
	}

	g.Values = make([][]float64, 0, g.Rows)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != g.Cols {
			return nil, eris.Errorf("hyde: %s: row %d has %d values, want %d", path, len(g.Values), len(fields), g.Cols)
		}
		row := make([]float64, g.Cols)
		for j, field := range fields {
			v, perr := strconv.ParseFloat(field, 64)
			if perr != nil {
				return nil, eris.Wrapf(perr, "hyde: %s: row %d col %d", path, len(g.Values), j)
			}
			row[j] = v
		}
		g.Values = append(g.Values, row)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "hyde: read grid %s", path)
	}
	if len(g.Values) != g.Rows {
		return nil, eris.Errorf("hyde: %s: got %d rows, header says %d", path, len(g.Values), g.Rows)
	}

	return g, nil
}

// CellArea returns the approximate area in km² of a cell centered at lat.
func CellArea(lat, cellSize float64) float64 {
	side := cellSize * kmPerDegree
	return side * side * math.Cos(lat*math.Pi/180)
}

// Cells converts a density grid (persons per km²) into populated cell
// records. Nodata, zero, and negative values are dropped; nothing here is
// fatal once the header parsed.
func (g *Grid) Cells() []model.Cell {
	cells := make([]model.Cell, 0, g.Rows*g.Cols/8)
	var skipped int

	for row := 0; row < g.Rows; row++ {
		lat := g.YLLCorner + (float64(g.Rows-row)-0.5)*g.CellSize
		for col := 0; col < g.Cols; col++ {
			density := g.Values[row][col]
			if density == g.NoData || density <= 0 {
				continue
			}
			lon := g.XLLCorner + (float64(col)+0.5)*g.CellSize
			pop := density * CellArea(lat, g.CellSize)
			if pop <= 0 || math.IsNaN(pop) || math.IsInf(pop, 0) {
				skipped++
				continue
			}
			cells = append(cells, model.Cell{
				Lat:        lat,
				Lon:        lon,
				Population: pop,
				CellSize:   g.CellSize,
			})
		}
	}

	if skipped > 0 {
		zap.L().Debug("hyde: skipped degenerate density values", zap.Int("skipped", skipped))
	}
	return cells
}
