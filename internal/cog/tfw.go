package cog

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pspoerri/cdbtiles/internal/raster"
)

// TFW holds the six parameters of a TIFF world file. Lines are, in order:
// pixel x size, row rotation, column rotation, pixel y size (negative for
// north-up), then x and y of the center of the upper-left pixel.
type TFW struct {
	PixelSizeX float64
	RotationY  float64
	RotationX  float64
	PixelSizeY float64
	OriginX    float64
	OriginY    float64
}

// parseTFW reads a world file.
func parseTFW(path string) (*TFW, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading TFW %s: %w", path, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) < 6 {
		return nil, fmt.Errorf("TFW %s: expected 6 values, got %d", path, len(fields))
	}

	var vals [6]float64
	for i := range vals {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("TFW %s value %d: %w", path, i+1, err)
		}
		vals[i] = v
	}
	return &TFW{
		PixelSizeX: vals[0],
		RotationY:  vals[1],
		RotationX:  vals[2],
		PixelSizeY: vals[3],
		OriginX:    vals[4],
		OriginY:    vals[5],
	}, nil
}

// findTFW looks for a world file next to a TIFF: .tfw, .TFW, .tifw, .TIFW.
func findTFW(tiffPath string) string {
	ext := filepath.Ext(tiffPath)
	base := tiffPath[:len(tiffPath)-len(ext)]

	for _, c := range []string{".tfw", ".TFW", ".tifw", ".TIFW"} {
		p := base + c
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Transform converts the world file, which addresses pixel centers, into a
// corner-based geotransform. Rotation terms are kept.
func (tfw *TFW) Transform() raster.GeoTransform {
	return raster.GeoTransform{
		tfw.OriginX - 0.5*tfw.PixelSizeX - 0.5*tfw.RotationX,
		tfw.PixelSizeX,
		tfw.RotationX,
		tfw.OriginY - 0.5*tfw.RotationY - 0.5*tfw.PixelSizeY,
		tfw.RotationY,
		tfw.PixelSizeY,
	}
}

// inferEPSG guesses the CRS of a world-file referenced raster from its
// coordinate ranges, falling back to WGS84.
func inferEPSG(gt raster.GeoTransform, width, height uint32) int {
	minX, maxY := gt[0], gt[3]
	maxX := minX + float64(width)*math.Abs(gt[1])
	minY := maxY - float64(height)*math.Abs(gt[5])

	if minX >= -180 && maxX <= 360 && minY >= -90 && maxY <= 90 {
		return 4326
	}
	if math.Abs(minX) > 100000 || math.Abs(maxY) > 100000 {
		if minX >= 2400000 && minX <= 2900000 && maxY >= 1000000 && maxY <= 1400000 {
			return 2056
		}
		if math.Abs(minX) <= 20037508.34 && math.Abs(maxY) <= 20048966.10 {
			return 3857
		}
	}
	return 4326
}
