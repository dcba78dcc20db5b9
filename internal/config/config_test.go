package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pspoerri/cdbtiles/internal/cdb"
	"github.com/pspoerri/cdbtiles/internal/cog"
	"github.com/pspoerri/cdbtiles/internal/raster"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeTIFF(t *testing.T, path string, x0, y0 float64) {
	t.Helper()
	vals := make([]float64, 8*8)
	for i := range vals {
		vals[i] = 500
	}
	img := &cog.Image{
		Width: 8, Height: 8, Values: vals,
		Transform: raster.NorthUp(x0, y0, 0.01, 0.01),
		EPSG:      4326,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := cog.WriteFile(path, img, cog.WriteOptions{Deflate: true}); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cdbtiles.yaml")
	writeFile(t, path, `
roots: [db]
sources:
  - path: dem/*.tif
    priority: 2
  - path: /abs/srtm.tif
strategy: linear
force: true
cache_size_mb: 64
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Roots[0] != filepath.Join(dir, "db") {
		t.Errorf("root = %q", cfg.Roots[0])
	}
	if cfg.Sources[0].Path != filepath.Join(dir, "dem/*.tif") || cfg.Sources[0].Priority != 2 {
		t.Errorf("source 0 = %+v", cfg.Sources[0])
	}
	if cfg.Sources[1].Path != "/abs/srtm.tif" {
		t.Errorf("absolute source rewritten to %q", cfg.Sources[1].Path)
	}
	if cfg.Strategy != "linear" || !cfg.Force || cfg.CacheSizeMB != 64 {
		t.Errorf("cfg = %+v", cfg)
	}
	// Untouched fields keep their defaults.
	if cfg.Concurrency != Default().Concurrency || cfg.Format != "tif" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", "colour: red\n", "colour"},
		{"bad strategy", "strategy: cubic\n", "cubic"},
		{"bad format", "format: jpeg\n", "jpeg"},
		{"bad cache", "cache_size_mb: -1\n", "cache_size_mb"},
		{"bad epsg", "reference_epsg: 32632\n", "32632"},
		{"empty source", "sources:\n  - priority: 1\n", "without path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			writeFile(t, path, tt.content)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load err = %v, want mention of %q", err, tt.want)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}

func TestSourcePathsGlob(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.tif", "b.tif", "c.txt"} {
		writeFile(t, filepath.Join(dir, n), "x")
	}
	cfg := Default()
	cfg.Sources = []Source{
		{Path: filepath.Join(dir, "*.tif|1"), Priority: 3},
		{Path: filepath.Join(dir, "plain.tif")},
	}
	got, err := cfg.SourcePaths()
	if err != nil {
		t.Fatal(err)
	}
	want := []Source{
		{Path: filepath.Join(dir, "a.tif") + "|1", Priority: 3},
		{Path: filepath.Join(dir, "b.tif") + "|1", Priority: 3},
		{Path: filepath.Join(dir, "plain.tif")},
	}
	if len(got) != len(want) {
		t.Fatalf("SourcePaths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("source %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	cfg.Sources = []Source{{Path: filepath.Join(dir, "*.png")}}
	if _, err := cfg.SourcePaths(); err == nil {
		t.Error("glob without matches succeeded")
	}
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	writeTIFF(t, filepath.Join(dir, "dem", "a.tif"), 7, 47)
	writeTIFF(t, filepath.Join(dir, "dem", "b.tif"), 7.08, 47)
	writeFile(t, filepath.Join(dir, "dem", "broken.tif"), "not a tiff")

	cfg := Default()
	cfg.Sources = []Source{{Path: filepath.Join(dir, "dem", "*.tif"), Priority: 1}}
	m, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	defer m.Close()
	if n := len(m.Sources()); n != 2 {
		t.Errorf("%d sources registered, want 2", n)
	}
	if m.IndexStale() {
		t.Error("index stale after Registry")
	}
	if posts := m.PostsForPoint(7.03, 46.97); len(posts) != 4 {
		t.Errorf("PostsForPoint returned %d posts, want 4", len(posts))
	}

	cfg.Sources = []Source{{Path: filepath.Join(dir, "dem", "broken.tif")}}
	if _, err := cfg.Registry(); err == nil {
		t.Error("Registry with no usable source succeeded")
	}
}

func TestResolveRoots(t *testing.T) {
	base := t.TempDir()
	v1, v2 := filepath.Join(base, "v1"), filepath.Join(base, "v2")
	for _, d := range []string{v1, v2} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := cdb.WriteVersion(v2, "../v1", ""); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if _, err := cfg.ResolveRoots(); err == nil {
		t.Error("ResolveRoots without roots succeeded")
	}
	cfg.Roots = []string{v2}
	roots, err := cfg.ResolveRoots()
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 2 || roots[0] != v2 || roots[1] != v1 {
		t.Errorf("roots = %v, want [%s %s]", roots, v2, v1)
	}

	cfg.Roots = []string{v1, v2}
	if roots, _ := cfg.ResolveRoots(); len(roots) != 2 || roots[0] != v1 {
		t.Errorf("explicit roots reordered: %v", roots)
	}
}
