// Package coord holds the coordinate reference systems understood by the
// raster sources and the local frames used for interpolation.
package coord

// Projection defines the interface for converting between a source CRS and WGS84.
type Projection interface {
	// ToWGS84 converts source CRS coordinates to WGS84 longitude/latitude (degrees).
	ToWGS84(x, y float64) (lon, lat float64)

	// FromWGS84 converts WGS84 longitude/latitude (degrees) to source CRS coordinates.
	FromWGS84(lon, lat float64) (x, y float64)

	// EPSG returns the EPSG code for this projection.
	EPSG() int
}

// ForEPSG returns a Projection for the given EPSG code.
// Returns nil if the EPSG code is not supported.
func ForEPSG(epsg int) Projection {
	switch epsg {
	case 2056:
		return &SwissLV95{}
	case 4326:
		return &WGS84Identity{}
	case 3857:
		return &WebMercatorProj{}
	default:
		return nil
	}
}

// Same reports whether a and b describe the same CRS. Nil means WGS84.
func Same(a, b Projection) bool {
	return EPSGOf(a) == EPSGOf(b)
}

// EPSGOf returns the EPSG code of p, 4326 for nil.
func EPSGOf(p Projection) int {
	if p == nil {
		return 4326
	}
	return p.EPSG()
}

// Transform converts (x, y) from one CRS to another through WGS84.
// Nil projections are treated as WGS84.
func Transform(from, to Projection, x, y float64) (float64, float64) {
	if Same(from, to) {
		return x, y
	}
	if from != nil {
		x, y = from.ToWGS84(x, y)
	}
	if to != nil {
		x, y = to.FromWGS84(x, y)
	}
	return x, y
}

// WGS84Identity is a no-op projection for data already in EPSG:4326.
type WGS84Identity struct{}

func (w *WGS84Identity) ToWGS84(x, y float64) (lon, lat float64) {
	return x, y
}

func (w *WGS84Identity) FromWGS84(lon, lat float64) (x, y float64) {
	return lon, lat
}

func (w *WGS84Identity) EPSG() int {
	return 4326
}
