package placement

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/chronomaps/footsteps/internal/model"
)

func newTestRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seedStream))
}

func TestSampleZeroPoints(t *testing.T) {
	s := &Sampler{}
	points, fallbacks := s.Sample(50, 10, 0.5, 0, 0.01, newTestRNG(1))
	if len(points) != 0 {
		t.Errorf("expected no points, got %d", len(points))
	}
	if fallbacks != 0 {
		t.Errorf("expected no fallbacks, got %d", fallbacks)
	}
}

func TestSampleCount(t *testing.T) {
	s := &Sampler{}
	for _, n := range []int{1, 5, 20, 75} {
		points, _ := s.Sample(0, 0, 1.0, n, 0.001, newTestRNG(42))
		if len(points) != n {
			t.Errorf("n=%d: got %d points", n, len(points))
		}
	}
}

func TestSampleWithinCell(t *testing.T) {
	s := &Sampler{}
	const lat, lon, size = 40.0, -74.0, 0.5
	points, _ := s.Sample(lat, lon, size, 30, 0.001, newTestRNG(7))
	for _, p := range points {
		if math.Abs(p.Lat-lat) > size/2 || math.Abs(p.Lon-lon) > size/2 {
			t.Errorf("point (%f, %f) outside cell centered (%f, %f)", p.Lat, p.Lon, lat, lon)
		}
	}
}

func TestSampleSpacingSatisfied(t *testing.T) {
	s := &Sampler{}
	const minSpacing = 0.05
	points, fallbacks := s.Sample(0, 0, 1.0, 10, minSpacing, newTestRNG(99))
	if fallbacks != 0 {
		t.Fatalf("generous spacing should not need fallbacks, got %d", fallbacks)
	}
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			dLat := points[i].Lat - points[j].Lat
			dLon := points[i].Lon - points[j].Lon
			if d := math.Sqrt(dLat*dLat + dLon*dLon); d < minSpacing {
				t.Errorf("points %d and %d are %f apart, want >= %f", i, j, d, minSpacing)
			}
		}
	}
}

func TestSampleInfeasibleSpacingDegradesGracefully(t *testing.T) {
	s := &Sampler{}
	// 50 points each 2 degrees apart cannot fit a 1-degree cell; every point
	// must still be placed.
	points, fallbacks := s.Sample(0, 0, 1.0, 50, 2.0, newTestRNG(5))
	if len(points) != 50 {
		t.Fatalf("expected all 50 points placed, got %d", len(points))
	}
	if fallbacks == 0 {
		t.Error("expected fallback placements under infeasible spacing")
	}
}

func TestSampleDeterministicForSeed(t *testing.T) {
	s := &Sampler{}
	a, _ := s.Sample(48.8, 2.3, 0.0833, 12, 0.005, newTestRNG(123))
	b, _ := s.Sample(48.8, 2.3, 0.0833, 12, 0.005, newTestRNG(123))
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("point %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSampleAppendStablePrefix(t *testing.T) {
	s := &Sampler{}
	short, _ := s.Sample(48.8, 2.3, 0.0833, 5, 0.005, newTestRNG(123))
	long, _ := s.Sample(48.8, 2.3, 0.0833, 9, 0.005, newTestRNG(123))
	for i := range short {
		if short[i] != long[i] {
			t.Errorf("prefix point %d differs: %+v vs %+v", i, short[i], long[i])
		}
	}
}

func TestSampleClampsAtPoles(t *testing.T) {
	s := &Sampler{}
	points, _ := s.Sample(89.9, 179.9, 1.0, 20, 0.001, newTestRNG(11))
	for _, p := range points {
		if p.Lat > 90 || p.Lat < -90 || p.Lon > 180 || p.Lon < -180 {
			t.Errorf("point (%f, %f) out of valid range", p.Lat, p.Lon)
		}
	}
}

// waterWorld rejects everything, so land preference must give up rather than
// spin or drop points.
type waterWorld struct{}

func (waterWorld) IsLand(lat, lon float64) bool { return false }

// halfLand accepts only the eastern half of the cell.
type halfLand struct{}

func (halfLand) IsLand(lat, lon float64) bool { return lon >= 0 }

func TestSampleLandPreferenceAdvisory(t *testing.T) {
	s := &Sampler{Land: waterWorld{}}
	points, _ := s.Sample(0, 0, 1.0, 5, 0.001, newTestRNG(3))
	if len(points) != 5 {
		t.Fatalf("all-water mask must not drop points, got %d of 5", len(points))
	}

	s = &Sampler{Land: halfLand{}}
	points, _ = s.Sample(0, 0, 1.0, 10, 0.001, newTestRNG(3))
	onLand := 0
	for _, p := range points {
		if p.Lon >= 0 {
			onLand++
		}
	}
	if onLand < 8 {
		t.Errorf("expected most points on land, got %d of 10", onLand)
	}
}

func TestNearestSqEmpty(t *testing.T) {
	if d := nearestSq(model.Coordinates{}, nil); !math.IsInf(d, 1) {
		t.Errorf("nearestSq with no points = %f, want +Inf", d)
	}
}
