package encode

import (
	"bytes"
	"fmt"
	"image/png"
	"math"

	"github.com/gen2brain/webp"

	"github.com/pspoerri/cdbtiles/internal/cog"
	"github.com/pspoerri/cdbtiles/internal/raster"
)

// Decode reads tile bytes written by the encoder for format back into a
// grid. Georeferencing is only recovered from GeoTIFF tiles.
func Decode(data []byte, format string) (*Grid, error) {
	enc, err := NewEncoder(format)
	if err != nil {
		return nil, err
	}
	switch enc.(type) {
	case *TerrariumEncoder:
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("png: %w", err)
		}
		return terrariumGrid(img), nil
	case *WebPEncoder:
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("webp: %w", err)
		}
		return terrariumGrid(img), nil
	default:
		return decodeGeoTIFF(data)
	}
}

func decodeGeoTIFF(data []byte) (*Grid, error) {
	r, err := cog.NewReader("tile", data)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	geom := r.Geometry()
	vals, err := r.ReadValues(raster.ElevationBand)
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if geom.HasNoData && v == geom.NoData {
			vals[i] = math.NaN()
		}
	}
	return &Grid{
		Width:     geom.Width,
		Height:    geom.Height,
		Values:    vals,
		Transform: geom.Transform,
		EPSG:      geom.EPSG,
	}, nil
}
