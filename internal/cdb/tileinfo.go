package cdb

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	// MinLOD is the coarsest level of detail; LODs below zero are the
	// degenerate "LC" overview tiles that always cover a whole geocell.
	MinLOD = -10
	// MaxLOD is the finest level of detail a tile can address.
	MaxLOD = 23

	// TileSize is the post count along one edge of a tile at LOD >= 0.
	TileSize = 1024

	// basePixelSize is the nominal pixel size in degrees at LOD 0.
	basePixelSize = 1.0 / TileSize
)

// TileInfo identifies one tile of the pyramid.
//
// Latitude and Longitude are the whole-degree south-west corner of the
// geocell. URef counts rows south to north and RRef counts columns west to
// east within the geocell at the given LOD. TileInfo is a comparable value
// type; parent and child tiles are new values.
type TileInfo struct {
	Latitude  int
	Longitude int
	Dataset   int
	Selector1 int
	Selector2 int
	LOD       int
	URef      int
	RRef      int
}

// Bounds is a north/south/east/west box in geographic degrees.
type Bounds struct {
	North, South, East, West float64
}

// Bound converts b to an orb.Bound (X = longitude, Y = latitude).
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}

// Contains reports whether (lon, lat) lies inside b, edges included.
func (b Bounds) Contains(lon, lat float64) bool {
	return lon >= b.West && lon <= b.East && lat >= b.South && lat <= b.North
}

func (t TileInfo) String() string {
	return FileNameForTileInfo(t)
}

// Valid reports whether the row/column references are in range for the LOD.
func (t TileInfo) Valid() bool {
	if t.LOD < MinLOD || t.LOD > MaxLOD {
		return false
	}
	if t.Latitude < -90 || t.Latitude >= 90 || t.Longitude < -180 || t.Longitude >= 180 {
		return false
	}
	if t.LOD < 0 {
		return t.URef == 0 && t.RRef == 0
	}
	return t.URef >= 0 && t.URef < Rows(t.LOD) && t.RRef >= 0 && t.RRef < Cols(t.LOD)
}

// TileWidthAtLatitude returns the width in degrees of longitude of the
// geocell containing lat. Geocells widen toward the poles to keep their
// ground footprint roughly constant.
func TileWidthAtLatitude(lat float64) float64 {
	cell := math.Floor(lat)
	// Band by the geocell edge closest to the equator.
	band := cell
	if cell < 0 {
		band = -(cell + 1)
	}
	switch {
	case band >= 90:
		return 0
	case band >= 89:
		return 12
	case band >= 80:
		return 6
	case band >= 75:
		return 4
	case band >= 70:
		return 3
	case band >= 50:
		return 2
	default:
		return 1
	}
}

// PixelSizeForLod returns the nominal pixel size in degrees at lod.
func PixelSizeForLod(lod int) float64 {
	if lod >= 0 {
		return basePixelSize / math.Pow(2, float64(lod))
	}
	return basePixelSize * math.Pow(2, float64(-lod))
}

// LodForPixelSize returns the coarsest LOD whose nominal pixel size is at
// least as fine as pixelSize (degrees), or MaxLOD if no level is fine enough.
func LodForPixelSize(pixelSize float64) int {
	for lod := MinLOD; lod <= MaxLOD; lod++ {
		if PixelSizeForLod(lod) <= pixelSize {
			return lod
		}
	}
	return MaxLOD
}

// Rows returns the number of tile rows in a geocell at lod.
func Rows(lod int) int {
	if lod <= 0 {
		return 1
	}
	return 1 << lod
}

// Cols returns the number of tile columns in a geocell at lod.
func Cols(lod int) int {
	return Rows(lod)
}

// TileDimension returns the number of posts along one edge of a tile at lod.
// LC tiles shrink by a factor two per level below zero.
func TileDimension(lod int) int {
	if lod >= 0 {
		return TileSize
	}
	if lod < MinLOD {
		return 1
	}
	return TileSize >> -lod
}

// NSEWBoundsForTileInfo returns the geographic footprint of a tile.
func NSEWBoundsForTileInfo(t TileInfo) Bounds {
	rows := Rows(t.LOD)
	latSpacing := 1.0 / float64(rows)
	tileWidth := TileWidthAtLatitude(float64(t.Latitude))
	lonSpacing := tileWidth / float64(Cols(t.LOD))

	var b Bounds
	b.South = float64(t.Latitude) + latSpacing*float64(t.URef)
	b.North = b.South + latSpacing
	b.West = float64(t.Longitude) + lonSpacing*float64(t.RRef)
	b.East = b.West + lonSpacing
	return b
}

// ParentTileInfo returns the tile one level coarser that contains t.
// Callers must not recurse below MinLOD.
func ParentTileInfo(t TileInfo) TileInfo {
	p := t
	p.LOD = t.LOD - 1
	if p.LOD < 0 {
		p.URef, p.RRef = 0, 0
		return p
	}
	p.URef = t.URef / 2
	p.RRef = t.RRef / 2
	return p
}

// ChildTileInfos returns the tiles one level finer that exactly cover t:
// four for LOD >= 0 and the single next LC (or LOD 0) tile below zero.
func ChildTileInfos(t TileInfo) []TileInfo {
	if t.LOD >= MaxLOD {
		return nil
	}
	if t.LOD < 0 {
		c := t
		c.LOD++
		return []TileInfo{c}
	}
	children := make([]TileInfo, 0, 4)
	for du := 0; du < 2; du++ {
		for dr := 0; dr < 2; dr++ {
			c := t
			c.LOD++
			c.URef = t.URef*2 + du
			c.RRef = t.RRef*2 + dr
			children = append(children, c)
		}
	}
	return children
}

// GeocellForPoint returns the south-west corner of the geocell containing
// (lat, lon). Longitude is snapped to the geocell width of the latitude band.
func GeocellForPoint(lat, lon float64) (cellLat, cellLon int) {
	cellLat = int(math.Floor(lat))
	width := TileWidthAtLatitude(lat)
	if width == 0 {
		return cellLat, int(math.Floor(lon))
	}
	cellLon = int(math.Floor((lon+180)/width)*width - 180)
	return cellLat, cellLon
}

// TileInfoForPoint returns the tile at lod whose footprint contains (lat, lon).
func TileInfoForPoint(lat, lon float64, dataset, s1, s2, lod int) TileInfo {
	cellLat, cellLon := GeocellForPoint(lat, lon)
	t := TileInfo{
		Latitude:  cellLat,
		Longitude: cellLon,
		Dataset:   dataset,
		Selector1: s1,
		Selector2: s2,
		LOD:       lod,
	}
	if lod <= 0 {
		return t
	}
	rows := Rows(lod)
	width := TileWidthAtLatitude(lat)
	t.URef = clampRef(int(math.Floor((lat-float64(cellLat))*float64(rows))), rows)
	t.RRef = clampRef(int(math.Floor((lon-float64(cellLon))/width*float64(rows))), rows)
	return t
}

func clampRef(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// TileInfosForBounds returns every tile at lod that intersects b, ordered
// geocell by geocell (south to north, west to east) and row-major inside a
// geocell. A degenerate b (a point or a line) selects the tiles touching it.
func TileInfosForBounds(b Bounds, dataset, s1, s2, lod int) ([]TileInfo, error) {
	if b.North < b.South || b.East < b.West {
		return nil, fmt.Errorf("invalid bounds %+v", b)
	}
	if lod < MinLOD || lod > MaxLOD {
		return nil, fmt.Errorf("lod %d out of range [%d, %d]", lod, MinLOD, MaxLOD)
	}

	latStart := max(int(math.Floor(b.South)), -90)
	latEnd := min(max(int(math.Ceil(b.North))-1, latStart), 89)

	var tiles []TileInfo
	for lat := latStart; lat <= latEnd; lat++ {
		width := TileWidthAtLatitude(float64(lat))
		if width == 0 {
			continue
		}
		_, lonStart := GeocellForPoint(float64(lat), b.West)
		for lon := lonStart; lon < 180 && (float64(lon) < b.East || lon == lonStart); lon += int(width) {
			cell := TileInfo{Latitude: lat, Longitude: lon, Dataset: dataset, Selector1: s1, Selector2: s2, LOD: lod}
			if !intersects(NSEWBoundsForTileInfo(TileInfo{Latitude: lat, Longitude: lon}), b) {
				continue
			}
			if lod <= 0 {
				tiles = append(tiles, cell)
				continue
			}

			n := Rows(lod)
			uMin := clampRef(int(math.Floor((b.South-float64(lat))*float64(n))), n)
			uMax := clampRef(int(math.Ceil((b.North-float64(lat))*float64(n)))-1, n)
			rMin := clampRef(int(math.Floor((b.West-float64(lon))/width*float64(n))), n)
			rMax := clampRef(int(math.Ceil((b.East-float64(lon))/width*float64(n)))-1, n)
			for u := uMin; u <= max(uMax, uMin); u++ {
				for r := rMin; r <= max(rMax, rMin); r++ {
					t := cell
					t.URef, t.RRef = u, r
					if intersects(NSEWBoundsForTileInfo(t), b) {
						tiles = append(tiles, t)
					}
				}
			}
		}
	}
	return tiles, nil
}

// intersects reports whether tile bounds tb overlap b. A degenerate b (a
// point or a line) is treated as closed; otherwise shared edges don't count.
func intersects(tb, b Bounds) bool {
	if b.East > b.West {
		if tb.East <= b.West || tb.West >= b.East {
			return false
		}
	} else if b.West < tb.West || b.West > tb.East {
		return false
	}
	if b.North > b.South {
		if tb.North <= b.South || tb.South >= b.North {
			return false
		}
	} else if b.South < tb.South || b.South > tb.North {
		return false
	}
	return true
}
