package coord

// SwissLV95 is EPSG:2056 (CH1903+ / LV95), evaluated with swisstopo's
// approximate polynomials. Accuracy is about one meter inside Switzerland,
// well below the post spacing of national elevation models.
type SwissLV95 struct{}

func (s *SwissLV95) EPSG() int { return 2056 }

// Bern false origin of LV95 and its geographic position in arc seconds.
const (
	lv95E0     = 2_600_000.0
	lv95N0     = 1_200_000.0
	lv95LatSec = 169028.66
	lv95LonSec = 26782.5
)

// ToWGS84 converts LV95 easting/northing in meters to longitude/latitude.
func (s *SwissLV95) ToWGS84(easting, northing float64) (lon, lat float64) {
	// Offsets from Bern in units of 1000 km.
	y := (easting - lv95E0) / 1e6
	x := (northing - lv95N0) / 1e6

	// Results are in units of 10000 arc seconds.
	lon10k := 2.6779094 + y*(4.728982+x*(0.791484+0.1306*x)-0.0436*y*y)
	lat10k := 16.9023892 + x*(3.238272-x*(0.002528+0.0140*x)) - y*y*(0.270978+0.0447*x)

	return lon10k * 100 / 36, lat10k * 100 / 36
}

// FromWGS84 converts longitude/latitude to LV95 easting/northing in meters.
func (s *SwissLV95) FromWGS84(lon, lat float64) (easting, northing float64) {
	// Offsets from Bern in units of 10000 arc seconds.
	phi := (lat*3600 - lv95LatSec) / 10000
	lam := (lon*3600 - lv95LonSec) / 10000

	easting = 2_600_072.37 + lam*(211_455.93-phi*(10_938.51+0.36*phi)-44.54*lam*lam)
	northing = 1_200_147.07 + phi*(308_807.95+phi*(76.63+119.79*phi)) + lam*lam*(3_745.25-194.56*phi)
	return
}
