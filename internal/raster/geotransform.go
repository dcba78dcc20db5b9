package raster

import (
	"errors"
	"math"
)

// GeoTransform is an affine pixel-to-CRS transform in GDAL coefficient
// order: x = gt[0] + col*gt[1] + row*gt[2], y = gt[3] + col*gt[4] + row*gt[5].
// Pixel (0, 0) is the outer corner of the first pixel.
type GeoTransform [6]float64

var errSingularTransform = errors.New("geotransform is not invertible")

// NorthUp returns the transform of an unrotated grid whose top-left corner is
// at (originX, originY). sizeY is positive and applied southwards.
func NorthUp(originX, originY, sizeX, sizeY float64) GeoTransform {
	return GeoTransform{originX, sizeX, 0, originY, 0, -sizeY}
}

// Apply maps pixel coordinates to CRS coordinates.
func (gt GeoTransform) Apply(col, row float64) (x, y float64) {
	x = gt[0] + col*gt[1] + row*gt[2]
	y = gt[3] + col*gt[4] + row*gt[5]
	return
}

// Invert returns the CRS-to-pixel transform.
func (gt GeoTransform) Invert() (GeoTransform, error) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return GeoTransform{}, errSingularTransform
	}
	inv := 1 / det
	var out GeoTransform
	out[1] = gt[5] * inv
	out[2] = -gt[2] * inv
	out[4] = -gt[4] * inv
	out[5] = gt[1] * inv
	out[0] = -(out[1]*gt[0] + out[2]*gt[3])
	out[3] = -(out[4]*gt[0] + out[5]*gt[3])
	return out, nil
}

// Rotated reports whether the transform has rotation or shear terms.
func (gt GeoTransform) Rotated() bool {
	return gt[2] != 0 || gt[4] != 0
}

// PostSpacing returns the side of a square pixel with the same area, in CRS
// units.
func (gt GeoTransform) PostSpacing() float64 {
	return math.Sqrt(math.Abs(gt[1]*gt[5] - gt[2]*gt[4]))
}
