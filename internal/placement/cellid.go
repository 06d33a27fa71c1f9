// Package placement generates reproducible point positions inside population
// grid cells. The same geographic cell and tier always maps to the same cell
// identifier, seed, and point layout, which is what keeps settlements visually
// stable across years and repeated runs.
package placement

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/chronomaps/footsteps/internal/model"
)

// cellIDLen is the number of hex characters kept from the digest. Twelve
// characters keep collisions negligible at global cell counts while staying
// compact as a map key.
const cellIDLen = 12

// SnapToCell returns the canonical center of the grid cell containing
// (lat, lon). Every point that shares a cell id shares this center.
func SnapToCell(lat, lon, cellSize float64) (float64, float64) {
	return math.Round(lat/cellSize) * cellSize, math.Round(lon/cellSize) * cellSize
}

// CellID returns a stable identifier for the grid cell containing (lat, lon)
// at the given cell size and tier. Coordinates are snapped to the nearest
// cell boundary first, so any point inside the same cell yields the same id.
func CellID(lat, lon, cellSize float64, tier model.SettlementTier) string {
	cellLat, cellLon := SnapToCell(lat, lon, cellSize)

	key := fmt.Sprintf("%.6f,%.6f,%.6f,%s", cellLat, cellLon, cellSize, tier)
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])[:cellIDLen]
}

// Seed derives a deterministic RNG seed from a cell identifier.
func Seed(cellID string) uint64 {
	return xxhash.Sum64String(cellID)
}
