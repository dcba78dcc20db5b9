package coord

import (
	"math"
	"testing"
)

func TestWebMercatorKnownValues(t *testing.T) {
	wm := &WebMercatorProj{}
	tests := []struct {
		lon, lat float64
		x, y     float64
	}{
		{0, 0, 0, 0},
		{180, 0, OriginShift, 0},
		{-180, 0, -OriginShift, 0},
		{0, 85.0511287798, 0, OriginShift},
	}
	for _, tt := range tests {
		x, y := wm.FromWGS84(tt.lon, tt.lat)
		if math.Abs(x-tt.x) > 1 || math.Abs(y-tt.y) > 1 {
			t.Errorf("FromWGS84(%v, %v) = (%.1f, %.1f), want (%.1f, %.1f)", tt.lon, tt.lat, x, y, tt.x, tt.y)
		}
	}
}

func TestGroundMeters(t *testing.T) {
	tests := []struct {
		size   float64
		epsg   int
		lat    float64
		meters float64
	}{
		{1, 4326, 0, MetersPerDegree},
		// Geographic spacings use the meridian, so latitude does not matter.
		{1, 4326, 60, MetersPerDegree},
		{1, 3857, 0, 1},
		{1, 3857, 60, 0.5},
		{2, 2056, 47, 2},
	}
	for _, tt := range tests {
		got := PixelSizeInGroundMeters(tt.size, tt.epsg, tt.lat)
		if math.Abs(got-tt.meters)/tt.meters > 1e-6 {
			t.Errorf("PixelSizeInGroundMeters(%v, %d, %v) = %v, want %v", tt.size, tt.epsg, tt.lat, got, tt.meters)
		}
		if back := MetersToPixelSizeCRS(got, tt.epsg, tt.lat); math.Abs(back-tt.size)/tt.size > 1e-6 {
			t.Errorf("MetersToPixelSizeCRS(%v, %d, %v) = %v, want %v", got, tt.epsg, tt.lat, back, tt.size)
		}
	}
}
