package coord

import (
	"math"
	"testing"
)

func TestLocalFrameOrigin(t *testing.T) {
	f := NewLocalFrame(8.5, 47.3)
	e, n := f.Forward(8.5, 47.3)
	if math.Abs(e) > 1e-6 || math.Abs(n) > 1e-6 {
		t.Errorf("origin maps to (%v, %v), want (0, 0)", e, n)
	}
}

func TestLocalFrameDistances(t *testing.T) {
	f := NewLocalFrame(0, 0)
	tests := []struct {
		name        string
		lon, lat    float64
		east, north float64
	}{
		// One millidegree along the equator and along the meridian.
		{"east", 0.001, 0, 111.3195, 0},
		{"north", 0, 0.001, 0, 110.5743},
		{"west", -0.001, 0, -111.3195, 0},
		{"south", 0, -0.001, 0, -110.5743},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, n := f.Forward(tt.lon, tt.lat)
			if math.Abs(e-tt.east) > 0.01 || math.Abs(n-tt.north) > 0.01 {
				t.Errorf("Forward(%v, %v) = (%.4f, %.4f), want (%.4f, %.4f)", tt.lon, tt.lat, e, n, tt.east, tt.north)
			}
		})
	}
}

func TestLocalFramePreservesOrientation(t *testing.T) {
	// Away from the equator a degree of longitude is shorter than one of latitude.
	f := NewLocalFrame(10, 60)
	e, n := f.Forward(10.01, 60)
	if e <= 0 || math.Abs(n) > 1 {
		t.Errorf("east offset = (%v, %v)", e, n)
	}
	want := 0.01 * MetersPerDegree * math.Cos(60*math.Pi/180)
	if math.Abs(e-want)/want > 0.01 {
		t.Errorf("east offset %v, want ~%v", e, want)
	}
}

func TestFrameKeyFor(t *testing.T) {
	tests := []struct {
		lon, lat float64
		want     FrameKey
	}{
		{8.55, 47.37, FrameKey{85, 473}},
		{-0.05, -0.05, FrameKey{-1, -1}},
		{0, 0, FrameKey{0, 0}},
		{179.99, 89.99, FrameKey{1799, 899}},
	}
	for _, tt := range tests {
		if got := FrameKeyFor(tt.lon, tt.lat); got != tt.want {
			t.Errorf("FrameKeyFor(%v, %v) = %+v, want %+v", tt.lon, tt.lat, got, tt.want)
		}
	}

	lon, lat := FrameKey{-1, 473}.Origin()
	if math.Abs(lon+0.1) > 1e-12 || math.Abs(lat-47.3) > 1e-12 {
		t.Errorf("Origin = (%v, %v), want (-0.1, 47.3)", lon, lat)
	}
}

func TestGeodeticToECEF(t *testing.T) {
	x, y, z := GeodeticToECEF(0, 0, 0)
	if math.Abs(x-wgs84A) > 1e-6 || math.Abs(y) > 1e-6 || math.Abs(z) > 1e-6 {
		t.Errorf("equator/greenwich = (%v, %v, %v)", x, y, z)
	}
	_, _, z = GeodeticToECEF(0, 90, 0)
	b := wgs84A * (1 - wgs84F)
	if math.Abs(z-b) > 1e-6 {
		t.Errorf("north pole z = %v, want %v", z, b)
	}
}
