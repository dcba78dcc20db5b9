package encode

import (
	"fmt"
	"strings"

	"github.com/pspoerri/cdbtiles/internal/raster"
)

// Grid is a tile of elevation posts with its georeferencing. NaN marks posts
// without data.
type Grid struct {
	Width, Height int
	Values        []float64 // row-major, north row first
	Transform     raster.GeoTransform
	EPSG          int
}

// NewGrid allocates a grid filled with NaN.
func NewGrid(width, height int, gt raster.GeoTransform, epsg int) *Grid {
	g := &Grid{Width: width, Height: height, Values: make([]float64, width*height), Transform: gt, EPSG: epsg}
	g.Fill(nan)
	return g
}

// Fill sets every post to v.
func (g *Grid) Fill(v float64) {
	for i := range g.Values {
		g.Values[i] = v
	}
}

// Empty reports whether no post holds data.
func (g *Grid) Empty() bool {
	for _, v := range g.Values {
		if v == v {
			return false
		}
	}
	return true
}

// Encoder encodes an elevation grid into tile bytes.
type Encoder interface {
	// Encode encodes a grid to bytes in the tile format.
	Encode(g *Grid) ([]byte, error)

	// Format returns the format name (e.g. "tif", "terrarium", "webp").
	Format() string

	// FileExtension returns the appropriate file extension.
	FileExtension() string
}

// Formats lists the names accepted by NewEncoder.
var Formats = []string{"tif", "terrarium", "webp"}

// NewEncoder creates an encoder for the given format.
func NewEncoder(format string) (Encoder, error) {
	switch strings.ToLower(format) {
	case "tif", "tiff", "geotiff":
		return &GeoTIFFEncoder{}, nil
	case "terrarium", "png":
		return &TerrariumEncoder{}, nil
	case "webp":
		return &WebPEncoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported tile format: %q (supported: %s)", format, strings.Join(Formats, ", "))
	}
}
