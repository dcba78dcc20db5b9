package encode

import (
	"bytes"
	"math"

	"github.com/pspoerri/cdbtiles/internal/cog"
	"github.com/pspoerri/cdbtiles/internal/raster"
)

// NoDataValue is written for posts without data in GeoTIFF tiles.
const NoDataValue = -32767

// GeoTIFFEncoder writes float32 GeoTIFF tiles, the native CDB elevation
// format: deflate with the floating point predictor, 256 pixel tiles.
type GeoTIFFEncoder struct{}

func (e *GeoTIFFEncoder) Encode(g *Grid) ([]byte, error) {
	vals := make([]float64, len(g.Values))
	for i, v := range g.Values {
		if math.IsNaN(v) {
			v = NoDataValue
		}
		vals[i] = v
	}
	img := &cog.Image{
		Width:     g.Width,
		Height:    g.Height,
		DataType:  raster.Float32,
		Values:    vals,
		Transform: g.Transform,
		EPSG:      g.EPSG,
		NoData:    NoDataValue,
		HasNoData: true,
	}
	opts := cog.WriteOptions{Deflate: true, Predictor: 3}
	if g.Width >= 256 && g.Height >= 256 {
		opts.TileSize = 256
	}
	var buf bytes.Buffer
	if err := cog.Write(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *GeoTIFFEncoder) Format() string        { return "tif" }
func (e *GeoTIFFEncoder) FileExtension() string { return ".tif" }
