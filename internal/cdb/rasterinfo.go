package cdb

// RasterInfo describes the grid of one physical raster: the upper-left
// origin, signed pixel size and the geographic footprint.
type RasterInfo struct {
	OriginX    float64
	OriginY    float64
	PixelSizeX float64
	PixelSizeY float64 // negative for north-up grids
	Width      int
	Height     int

	North, South, East, West float64
}

// RasterInfoForTileInfo returns the north-up grid of a tile at its nominal
// dimension.
func RasterInfoForTileInfo(t TileInfo) RasterInfo {
	b := NSEWBoundsForTileInfo(t)
	dim := TileDimension(t.LOD)
	return RasterInfo{
		OriginX:    b.West,
		OriginY:    b.North,
		PixelSizeX: (b.East - b.West) / float64(dim),
		PixelSizeY: -(b.North - b.South) / float64(dim),
		Width:      dim,
		Height:     dim,
		North:      b.North,
		South:      b.South,
		East:       b.East,
		West:       b.West,
	}
}

// PostCenter returns the geographic position of the center of post (col, row).
func (ri RasterInfo) PostCenter(col, row int) (x, y float64) {
	x = ri.OriginX + (float64(col)+0.5)*ri.PixelSizeX
	y = ri.OriginY + (float64(row)+0.5)*ri.PixelSizeY
	return
}

// Bounds returns the footprint as a Bounds value.
func (ri RasterInfo) Bounds() Bounds {
	return Bounds{North: ri.North, South: ri.South, East: ri.East, West: ri.West}
}
