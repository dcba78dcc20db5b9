package cog

import (
	"github.com/pspoerri/cdbtiles/internal/raster"
)

// GeoTIFF GeoKey IDs.
const (
	gkModelType      = 1024
	gkRasterType     = 1025
	gkGeographicType = 2048
	gkProjectedType  = 3072
)

// Raster types.
const (
	rasterPixelIsArea  = 1
	rasterPixelIsPoint = 2
)

// geoKeys holds the GeoKeys the reader cares about.
type geoKeys struct {
	EPSG       int
	RasterType int
}

// parseGeoKeys extracts the CRS and raster type from a GeoKey directory.
func parseGeoKeys(keys []uint16) geoKeys {
	gk := geoKeys{RasterType: rasterPixelIsArea}
	if len(keys) < 4 {
		return gk
	}

	// Header: KeyDirectoryVersion, KeyRevision, MinorRevision, NumberOfKeys.
	n := int(keys[3])
	for i := 0; i < n; i++ {
		base := 4 + i*4
		if base+3 >= len(keys) {
			break
		}
		id, location, value := keys[base], keys[base+1], keys[base+3]
		if location != 0 {
			// Value lives in another tag; none of the keys used here do.
			continue
		}
		switch id {
		case gkProjectedType, gkGeographicType:
			if value > 0 && value != 32767 {
				gk.EPSG = int(value)
			}
		case gkRasterType:
			gk.RasterType = int(value)
		}
	}
	return gk
}

// geoTransform derives the pixel-to-CRS transform of an IFD from its model
// transformation, or its tiepoint and pixel scale. ok is false if neither is
// present.
func geoTransform(ifd *IFD, gk geoKeys) (gt raster.GeoTransform, ok bool) {
	switch {
	case len(ifd.ModelTransformation) >= 8:
		m := ifd.ModelTransformation
		gt = raster.GeoTransform{m[3], m[0], m[1], m[7], m[4], m[5]}
	case len(ifd.ModelTiepoint) >= 6 && len(ifd.ModelPixelScale) >= 2:
		tp, sc := ifd.ModelTiepoint, ifd.ModelPixelScale
		gt = raster.GeoTransform{tp[3] - tp[0]*sc[0], sc[0], 0, tp[4] + tp[1]*sc[1], 0, -sc[1]}
	default:
		return gt, false
	}
	if gk.RasterType == rasterPixelIsPoint {
		// Tie points address pixel centers; move the origin to the corner.
		gt[0] -= 0.5*gt[1] + 0.5*gt[2]
		gt[3] -= 0.5*gt[4] + 0.5*gt[5]
	}
	return gt, true
}

// scaleTransform adapts the full resolution transform to an overview of
// the given size.
func scaleTransform(gt raster.GeoTransform, fullW, fullH, w, h uint32) raster.GeoTransform {
	sx := float64(fullW) / float64(w)
	sy := float64(fullH) / float64(h)
	return raster.GeoTransform{gt[0], gt[1] * sx, gt[2] * sy, gt[3], gt[4] * sx, gt[5] * sy}
}
