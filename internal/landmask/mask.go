// Package landmask answers "is this point on land" from a coastline
// shapefile rasterized to a coarse boolean grid. The answer is advisory:
// placement prefers land but never fails for want of it, so a coarse raster
// is fine and keeps lookups to an index into a bitmap.
package landmask

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultResolution is the raster cell size in degrees.
const DefaultResolution = 0.5

// Mask is a land/water bitmap covering the whole globe.
type Mask struct {
	res  float64
	cols int
	rows int
	land []bool
}

// Load reads a polygon shapefile (Natural Earth land works) and rasterizes
// it at the given resolution. Non-polygon shapes are skipped.
func Load(path string, res float64) (*Mask, error) {
	if res <= 0 {
		return nil, eris.Errorf("landmask: resolution %f must be positive", res)
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "landmask: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var polys []*shp.Polygon
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || len(poly.Points) == 0 {
			skipped++
			continue
		}
		polys = append(polys, poly)
	}
	if skipped > 0 {
		zap.L().Debug("landmask: skipped non-polygon records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(polys) == 0 {
		return nil, eris.Errorf("landmask: no polygons in %s", path)
	}

	m := FromPolygons(polys, res)
	zap.L().Info("landmask: rasterized",
		zap.String("path", path),
		zap.Int("polygons", len(polys)),
		zap.Float64("resolution", res),
		zap.Float64("land_fraction", m.Coverage()),
	)
	return m, nil
}

// FromPolygons rasterizes polygons directly. Ring containment uses the
// even-odd rule, so holes in multi-ring polygons punch water back out.
func FromPolygons(polys []*shp.Polygon, res float64) *Mask {
	m := &Mask{
		res:  res,
		cols: int(360/res + 0.5),
		rows: int(180/res + 0.5),
	}
	m.land = make([]bool, m.cols*m.rows)

	for _, poly := range polys {
		m.rasterize(poly)
	}
	return m
}

func (m *Mask) rasterize(poly *shp.Polygon) {
	minX, minY := poly.Points[0].X, poly.Points[0].Y
	maxX, maxY := minX, minY
	for _, p := range poly.Points[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	colLo, colHi := m.colFor(minX), m.colFor(maxX)
	rowLo, rowHi := m.rowFor(minY), m.rowFor(maxY)

	for row := rowLo; row <= rowHi; row++ {
		lat := -90 + (float64(row)+0.5)*m.res
		for col := colLo; col <= colHi; col++ {
			idx := row*m.cols + col
			if m.land[idx] {
				continue
			}
			lon := -180 + (float64(col)+0.5)*m.res
			if containsEvenOdd(poly, lon, lat) {
				m.land[idx] = true
			}
		}
	}
}

// containsEvenOdd runs a ray crossing test against every ring of the
// polygon.
func containsEvenOdd(poly *shp.Polygon, x, y float64) bool {
	inside := false
	for part := 0; part < len(poly.Parts); part++ {
		start := int(poly.Parts[part])
		end := len(poly.Points)
		if part+1 < len(poly.Parts) {
			end = int(poly.Parts[part+1])
		}
		for i, j := start, end-1; i < end; j, i = i, i+1 {
			pi, pj := poly.Points[i], poly.Points[j]
			if (pi.Y > y) != (pj.Y > y) &&
				x < (pj.X-pi.X)*(y-pi.Y)/(pj.Y-pi.Y)+pi.X {
				inside = !inside
			}
		}
	}
	return inside
}

// IsLand reports whether the raster cell containing (lat, lon) is land.
// Out-of-range coordinates are water.
func (m *Mask) IsLand(lat, lon float64) bool {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return m.land[m.rowFor(lat)*m.cols+m.colFor(lon)]
}

// Coverage returns the land fraction of the raster.
func (m *Mask) Coverage() float64 {
	var n int
	for _, land := range m.land {
		if land {
			n++
		}
	}
	return float64(n) / float64(len(m.land))
}

func (m *Mask) colFor(lon float64) int {
	return clampIdx(int((lon+180)/m.res), m.cols)
}

func (m *Mask) rowFor(lat float64) int {
	return clampIdx(int((lat+90)/m.res), m.rows)
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
