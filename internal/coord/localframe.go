package coord

import "math"

// WGS84 ellipsoid.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// FrameCellSize is the quantization step, in degrees, of local frame origins.
const FrameCellSize = 0.1

// GeodeticToECEF converts WGS84 longitude/latitude (degrees) and ellipsoidal
// height (meters) to earth-centered earth-fixed coordinates.
func GeodeticToECEF(lon, lat, h float64) (x, y, z float64) {
	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180
	sinPhi, cosPhi := math.Sincos(phi)
	sinLam, cosLam := math.Sincos(lam)

	n := wgs84A / math.Sqrt(1-wgs84E2*sinPhi*sinPhi)
	x = (n + h) * cosPhi * cosLam
	y = (n + h) * cosPhi * sinLam
	z = (n*(1-wgs84E2) + h) * sinPhi
	return
}

// LocalFrame is a locally planar east/north/up frame tangent to the
// ellipsoid at its origin. Distances and directions near the origin are
// undistorted, unlike in geographic coordinates.
type LocalFrame struct {
	OriginLon, OriginLat float64

	ox, oy, oz     float64
	sinLat, cosLat float64
	sinLon, cosLon float64
}

// NewLocalFrame returns the frame tangent at lon/lat.
func NewLocalFrame(lon, lat float64) *LocalFrame {
	f := &LocalFrame{OriginLon: lon, OriginLat: lat}
	f.ox, f.oy, f.oz = GeodeticToECEF(lon, lat, 0)
	f.sinLat, f.cosLat = math.Sincos(lat * math.Pi / 180)
	f.sinLon, f.cosLon = math.Sincos(lon * math.Pi / 180)
	return f
}

// Forward projects lon/lat (degrees) on the ellipsoid into the frame and
// returns east and north offsets in meters.
func (f *LocalFrame) Forward(lon, lat float64) (east, north float64) {
	x, y, z := GeodeticToECEF(lon, lat, 0)
	dx, dy, dz := x-f.ox, y-f.oy, z-f.oz

	east = -f.sinLon*dx + f.cosLon*dy
	north = -f.sinLat*f.cosLon*dx - f.sinLat*f.sinLon*dy + f.cosLat*dz
	return
}

// FrameKey identifies the quantized cell a frame origin belongs to.
type FrameKey struct {
	Lon, Lat int32
}

// FrameKeyFor returns the key of the FrameCellSize cell containing lon/lat.
func FrameKeyFor(lon, lat float64) FrameKey {
	return FrameKey{
		Lon: int32(math.Floor(lon / FrameCellSize)),
		Lat: int32(math.Floor(lat / FrameCellSize)),
	}
}

// Origin returns the south-west corner of the cell.
func (k FrameKey) Origin() (lon, lat float64) {
	return float64(k.Lon) * FrameCellSize, float64(k.Lat) * FrameCellSize
}
