package cdb

import (
	"os"
)

// Coverage pairs a physically present tile with the root that holds it.
type Coverage struct {
	Root string
	Tile TileInfo
}

// Path returns the OS path of the covering tile file.
func (c Coverage) Path(ext string) string {
	return FullPathForTileInfo(c.Root, c.Tile, ext)
}

// CoverageOptions configures coverage resolution.
type CoverageOptions struct {
	// Extension of tile files including the dot. Defaults to the dataset's
	// extension.
	Extension string
	// Exists probes for a tile file. Defaults to os.Stat.
	Exists func(path string) bool
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

// ResolveCoverage finds, for every requested tile, the nearest physically
// present tile across roots (newest overlay first). A tile missing from every
// root is replaced by its parent, one LOD coarser, until MinLOD is exhausted.
// Parents shared by several missing tiles are probed once. Tiles with no
// coverage at any level produce no result. Results are in discovery order.
func ResolveCoverage(roots []string, tiles []TileInfo, opts CoverageOptions) []Coverage {
	exists := opts.Exists
	if exists == nil {
		exists = fileExists
	}

	var result []Coverage
	found := make(map[TileInfo]bool)
	pending := dedupe(tiles)

	for len(pending) > 0 {
		var next []TileInfo
		queued := make(map[TileInfo]bool)

		for _, t := range pending {
			if found[t] {
				continue
			}
			ext := opts.Extension
			if ext == "" {
				ext = DatasetExtension(t.Dataset)
			}
			hit := false
			for _, root := range roots {
				if exists(FullPathForTileInfo(root, t, ext)) {
					result = append(result, Coverage{Root: root, Tile: t})
					found[t] = true
					hit = true
					break
				}
			}
			if hit || t.LOD-1 < MinLOD {
				continue
			}
			p := ParentTileInfo(t)
			if !queued[p] {
				queued[p] = true
				next = append(next, p)
			}
		}
		pending = next
	}
	return result
}

// CoverageForBounds resolves coverage for every tile at lod intersecting b.
func CoverageForBounds(roots []string, b Bounds, dataset, s1, s2, lod int, opts CoverageOptions) ([]Coverage, error) {
	tiles, err := TileInfosForBounds(b, dataset, s1, s2, lod)
	if err != nil {
		return nil, err
	}
	return ResolveCoverage(roots, tiles, opts), nil
}

func dedupe(tiles []TileInfo) []TileInfo {
	seen := make(map[TileInfo]bool, len(tiles))
	out := make([]TileInfo, 0, len(tiles))
	for _, t := range tiles {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
