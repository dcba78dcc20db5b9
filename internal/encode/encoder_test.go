package encode

import (
	"bytes"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/pspoerri/cdbtiles/internal/raster"
)

// testGrid creates a size x size grid with an elevation ramp and a hole in
// the top-left corner.
func testGrid(size int) *Grid {
	g := NewGrid(size, size, raster.NorthUp(7, 47, 1.0/1024, 1.0/1024), 4326)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			g.Values[y*size+x] = -400 + float64(x)*12.5 + float64(y)*0.25
		}
	}
	g.Values[0] = math.NaN()
	return g
}

func TestNewEncoder(t *testing.T) {
	tests := []struct {
		format  string
		wantFmt string
		wantExt string
		wantErr bool
	}{
		{"tif", "tif", ".tif", false},
		{"GeoTIFF", "tif", ".tif", false},
		{"terrarium", "terrarium", ".png", false},
		{"png", "terrarium", ".png", false},
		{"webp", "webp", ".webp", false},
		{"jpeg", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			enc, err := NewEncoder(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if enc.Format() != tt.wantFmt {
				t.Errorf("Format() = %q, want %q", enc.Format(), tt.wantFmt)
			}
			if enc.FileExtension() != tt.wantExt {
				t.Errorf("FileExtension() = %q, want %q", enc.FileExtension(), tt.wantExt)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		format string
		tol    float64
	}{
		// tif stores float32; webp is lossless Terrarium.
		{"tif", 1e-3},
		{"terrarium", 1.0 / 256},
		{"webp", 1.0 / 256},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			src := testGrid(300)
			enc, err := NewEncoder(tt.format)
			if err != nil {
				t.Fatal(err)
			}
			data, err := enc.Encode(src)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if len(data) == 0 {
				t.Fatal("Encode produced empty data")
			}

			got, err := Decode(data, tt.format)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Width != src.Width || got.Height != src.Height {
				t.Fatalf("decoded size = %dx%d, want %dx%d", got.Width, got.Height, src.Width, src.Height)
			}
			if !math.IsNaN(got.Values[0]) {
				t.Errorf("hole decoded as %v, want NaN", got.Values[0])
			}
			for i := 1; i < len(src.Values); i++ {
				if d := math.Abs(got.Values[i] - src.Values[i]); d > tt.tol {
					t.Fatalf("post %d = %v, want %v (diff %v)", i, got.Values[i], src.Values[i], d)
				}
			}
		})
	}
}

func TestGeoTIFFKeepsGeoreferencing(t *testing.T) {
	src := testGrid(16)
	data, err := (&GeoTIFFEncoder{}).Encode(src)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data, "tif")
	if err != nil {
		t.Fatal(err)
	}
	if got.Transform != src.Transform {
		t.Errorf("transform = %v, want %v", got.Transform, src.Transform)
	}
	if got.EPSG != 4326 {
		t.Errorf("EPSG = %d, want 4326", got.EPSG)
	}
}

func TestTerrariumImageTransparency(t *testing.T) {
	g := testGrid(4)
	data, err := (&TerrariumEncoder{}).Encode(g)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Errorf("nodata alpha = %d, want 0", a>>8)
	}
	if _, _, _, a := img.At(1, 0).RGBA(); a>>8 != 255 {
		t.Errorf("data alpha = %d, want 255", a>>8)
	}
}

func TestElevationToTerrarium(t *testing.T) {
	tests := []struct {
		elev float64
		want color.RGBA
	}{
		{0, color.RGBA{128, 0, 0, 255}},
		{-32768, color.RGBA{0, 0, 0, 255}},
		{-40000, color.RGBA{0, 0, 0, 255}},
		{100.5, color.RGBA{128, 100, 128, 255}},
		{math.NaN(), color.RGBA{}},
		{math.Inf(1), color.RGBA{}},
	}
	for _, tt := range tests {
		if got := ElevationToTerrarium(tt.elev); got != tt.want {
			t.Errorf("ElevationToTerrarium(%v) = %v, want %v", tt.elev, got, tt.want)
		}
	}
	if got := TerrariumToElevation(color.RGBA{128, 100, 128, 255}); got != 100.5 {
		t.Errorf("TerrariumToElevation = %v, want 100.5", got)
	}
	if got := TerrariumToElevation(color.RGBA{}); !math.IsNaN(got) {
		t.Errorf("TerrariumToElevation(transparent) = %v, want NaN", got)
	}
}

func TestGridEmpty(t *testing.T) {
	g := NewGrid(3, 3, raster.NorthUp(0, 0, 1, 1), 4326)
	if !g.Empty() {
		t.Error("new grid not empty")
	}
	g.Values[4] = 1
	if g.Empty() {
		t.Error("grid with data reported empty")
	}
}
