package cdb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touchTile(t *testing.T, root string, tile TileInfo) {
	t.Helper()
	p := FullPathForTileInfo(root, tile, ".tif")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("tile"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func makeChain(t *testing.T, n int) []string {
	t.Helper()
	base := t.TempDir()
	roots := make([]string, n)
	for i := range roots {
		roots[i] = filepath.Join(base, "v"+string(rune('0'+n-i)))
		if err := os.MkdirAll(roots[i], 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return roots
}

func TestResolveCoverageSecondOverlay(t *testing.T) {
	roots := makeChain(t, 3)
	tile := TileInfo{Latitude: 46, Longitude: 7, Dataset: 1, Selector1: 1, Selector2: 1, LOD: 3, URef: 2, RRef: 5}

	touchTile(t, roots[1], tile)
	// A coarser tile in the newest overlay must not win over the exact tile.
	touchTile(t, roots[0], ParentTileInfo(tile))

	got := ResolveCoverage(roots, []TileInfo{tile}, CoverageOptions{})
	want := []Coverage{{Root: roots[1], Tile: tile}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("coverage mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveCoverageNewestWins(t *testing.T) {
	roots := makeChain(t, 2)
	tile := TileInfo{Latitude: 46, Longitude: 7, Dataset: 1, Selector1: 1, Selector2: 1, LOD: 0}
	touchTile(t, roots[0], tile)
	touchTile(t, roots[1], tile)

	got := ResolveCoverage(roots, []TileInfo{tile}, CoverageOptions{})
	if len(got) != 1 || got[0].Root != roots[0] {
		t.Errorf("coverage = %+v, want tile from newest root %s", got, roots[0])
	}
}

func TestResolveCoverageFallsBackToParentOnce(t *testing.T) {
	roots := makeChain(t, 2)
	parent := TileInfo{Latitude: 46, Longitude: 7, Dataset: 1, Selector1: 1, Selector2: 1, LOD: 1, URef: 1, RRef: 0}
	touchTile(t, roots[1], parent)

	children := ChildTileInfos(parent)
	probes := make(map[string]int)
	opts := CoverageOptions{Exists: func(p string) bool {
		probes[p]++
		return fileExists(p)
	}}

	got := ResolveCoverage(roots, children, opts)
	want := []Coverage{{Root: roots[1], Tile: parent}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("coverage mismatch (-want +got):\n%s", diff)
	}
	for p, n := range probes {
		if n != 1 {
			t.Errorf("%s probed %d times, want 1", p, n)
		}
	}
}

func TestResolveCoverageStopsAtMinLOD(t *testing.T) {
	roots := makeChain(t, 1)
	tile := TileInfo{Latitude: 1, Longitude: 1, Dataset: 1, Selector1: 1, Selector2: 1, LOD: 2}

	var lods []int
	opts := CoverageOptions{Exists: func(p string) bool {
		ti, err := TileInfoForFileName(p)
		if err != nil {
			t.Fatalf("probe of unparsable path %q", p)
		}
		lods = append(lods, ti.LOD)
		return false
	}}

	if got := ResolveCoverage(roots, []TileInfo{tile}, opts); len(got) != 0 {
		t.Errorf("coverage = %+v, want none", got)
	}
	if len(lods) != 13 {
		t.Fatalf("probed %d levels, want 13 (2 .. -10)", len(lods))
	}
	if lods[len(lods)-1] != MinLOD {
		t.Errorf("last probed LOD = %d, want %d", lods[len(lods)-1], MinLOD)
	}
}

func TestResolveCoverageDiscoveryOrder(t *testing.T) {
	roots := makeChain(t, 1)
	a := TileInfo{Latitude: 1, Longitude: 1, Dataset: 1, LOD: 1, URef: 0, RRef: 0}
	b := TileInfo{Latitude: 1, Longitude: 2, Dataset: 1, LOD: 1, URef: 1, RRef: 1}
	missing := TileInfo{Latitude: 1, Longitude: 3, Dataset: 1, LOD: 1}
	touchTile(t, roots[0], b)
	touchTile(t, roots[0], ParentTileInfo(missing))
	touchTile(t, roots[0], a)

	got := ResolveCoverage(roots, []TileInfo{b, missing, a, b}, CoverageOptions{})
	want := []Coverage{
		{Root: roots[0], Tile: b},
		{Root: roots[0], Tile: a},
		{Root: roots[0], Tile: ParentTileInfo(missing)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("coverage mismatch (-want +got):\n%s", diff)
	}
}

func TestVersionChain(t *testing.T) {
	base := t.TempDir()
	v1 := filepath.Join(base, "v1")
	v2 := filepath.Join(base, "v2")
	v3 := filepath.Join(base, "v3")
	for _, d := range []string{v1, v2, v3} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := WriteVersion(v3, "../v2", "third"); err != nil {
		t.Fatal(err)
	}
	if err := WriteVersion(v2, "../v1", ""); err != nil {
		t.Fatal(err)
	}

	chain, err := VersionChain(v3)
	if err != nil {
		t.Fatalf("VersionChain: %v", err)
	}
	if diff := cmp.Diff([]string{v3, v2, v1}, chain); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}

	v, err := ReadVersion(v3)
	if err != nil {
		t.Fatal(err)
	}
	if v.Previous == nil || v.Previous.Name != "../v2" || v.Comment != "third" {
		t.Errorf("ReadVersion = %+v", v)
	}

	// Close the loop.
	if err := WriteVersion(v1, "../v3", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := VersionChain(v3); !errors.Is(err, ErrVersionCycle) {
		t.Errorf("VersionChain on cycle: err = %v, want ErrVersionCycle", err)
	}
}

func TestCoverageForBounds(t *testing.T) {
	roots := makeChain(t, 1)
	cell := TileInfo{Latitude: 10, Longitude: 20, Dataset: 1, Selector1: 1, Selector2: 1, LOD: 0}
	touchTile(t, roots[0], cell)

	got, err := CoverageForBounds(roots, Bounds{South: 10.1, North: 10.2, West: 20.1, East: 20.2}, 1, 1, 1, 2, CoverageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	want := []Coverage{{Root: roots[0], Tile: cell}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("coverage mismatch (-want +got):\n%s", diff)
	}
	if p := got[0].Path(".tif"); filepath.Base(p) != "N10E020_D001_S001_T001_L00_U0_R0.tif" {
		t.Errorf("Path = %s", p)
	}
}
