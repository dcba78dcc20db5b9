package coord

import (
	"math"
	"testing"
)

// Published swisstopo positions. The polynomials drift towards the borders,
// hence the per-point tolerances.
var lv95Points = []struct {
	name              string
	easting, northing float64
	lon, lat          float64
	tolDeg            float64
}{
	{"Bern", 2_600_000, 1_200_000, 7.438632, 46.951083, 0.001},
	{"Zurich", 2_683_474, 1_247_862, 8.5417, 47.3769, 0.005},
	{"Geneva", 2_500_560, 1_118_017, 6.1432, 46.2075, 0.01},
}

func TestSwissLV95(t *testing.T) {
	s := &SwissLV95{}
	if s.EPSG() != 2056 {
		t.Errorf("EPSG() = %d, want 2056", s.EPSG())
	}
	for _, p := range lv95Points {
		t.Run(p.name, func(t *testing.T) {
			lon, lat := s.ToWGS84(p.easting, p.northing)
			if math.Abs(lon-p.lon) > p.tolDeg || math.Abs(lat-p.lat) > p.tolDeg {
				t.Errorf("ToWGS84 = (%.6f, %.6f), want (%.6f, %.6f) within %g", lon, lat, p.lon, p.lat, p.tolDeg)
			}

			e, n := s.FromWGS84(p.lon, p.lat)
			if math.Abs(e-p.easting) > 600 || math.Abs(n-p.northing) > 600 {
				t.Errorf("FromWGS84 = (%.1f, %.1f), want (%.1f, %.1f) within 600 m", e, n, p.easting, p.northing)
			}

			// The two polynomials are near inverses of each other.
			e, n = s.FromWGS84(lon, lat)
			if math.Abs(e-p.easting) > 2 || math.Abs(n-p.northing) > 2 {
				t.Errorf("round trip = (%.2f, %.2f), want (%.2f, %.2f)", e, n, p.easting, p.northing)
			}
		})
	}
}

func TestSwissLV95Borders(t *testing.T) {
	s := &SwissLV95{}
	for _, pt := range [][2]float64{
		{5.96, 45.82},
		{10.49, 47.81},
		{6.13, 47.50},
		{10.47, 46.17},
	} {
		lon, lat := s.ToWGS84(s.FromWGS84(pt[0], pt[1]))
		if math.Abs(lon-pt[0]) > 1e-3 || math.Abs(lat-pt[1]) > 1e-3 {
			t.Errorf("round trip (%.2f, %.2f) = (%.6f, %.6f)", pt[0], pt[1], lon, lat)
		}
	}
}
