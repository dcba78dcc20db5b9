package build

import (
	"cmp"
	"slices"

	"github.com/google/hilbert"

	"github.com/pspoerri/cdbtiles/internal/cdb"
)

// hilbertIndex returns the position of t along a Hilbert curve through the
// tiles of its geocell at its LOD.
func hilbertIndex(t cdb.TileInfo) int {
	n := max(cdb.Rows(t.LOD), cdb.Cols(t.LOD))
	h, err := hilbert.NewHilbert(n)
	if err != nil {
		return 0
	}
	d, err := h.MapInverse(t.RRef, t.URef)
	if err != nil {
		return 0
	}
	return d
}

// SortTiles orders tiles geocell by geocell, and along a Hilbert curve
// within each geocell, so tiles sampled close in time read neighboring
// source blocks.
func SortTiles(tiles []cdb.TileInfo) {
	keys := make(map[cdb.TileInfo]int, len(tiles))
	for _, t := range tiles {
		keys[t] = hilbertIndex(t)
	}
	slices.SortStableFunc(tiles, func(a, b cdb.TileInfo) int {
		return cmp.Or(
			cmp.Compare(a.Latitude, b.Latitude),
			cmp.Compare(a.Longitude, b.Longitude),
			cmp.Compare(a.LOD, b.LOD),
			cmp.Compare(keys[a], keys[b]),
		)
	})
}
