package raster

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pspoerri/cdbtiles/internal/blockcache"
	"github.com/pspoerri/cdbtiles/internal/coord"
)

func TestGeoTransformInvert(t *testing.T) {
	tests := []struct {
		name string
		gt   GeoTransform
	}{
		{"north up", NorthUp(7, 47, 0.01, 0.01)},
		{"rotated", GeoTransform{100, 2, 0.5, 200, 0.3, -2}},
		{"south up", GeoTransform{0, 1, 0, 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := tt.gt.Invert()
			require.NoError(t, err)
			for _, p := range [][2]float64{{0, 0}, {3.5, 2.25}, {100, 7}} {
				x, y := tt.gt.Apply(p[0], p[1])
				c, r := inv.Apply(x, y)
				if math.Abs(c-p[0]) > 1e-9 || math.Abs(r-p[1]) > 1e-9 {
					t.Errorf("round trip (%v,%v) -> (%v,%v) -> (%v,%v)", p[0], p[1], x, y, c, r)
				}
			}
		})
	}

	if _, err := (GeoTransform{0, 1, 1, 0, 1, 1}).Invert(); err == nil {
		t.Error("expected error for singular transform")
	}
}

func TestDataTypeElements(t *testing.T) {
	for _, dt := range []DataType{Byte, Int16, UInt16, Int32, UInt32, Float32, Float64} {
		for _, bo := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
			buf := make([]byte, 3*dt.Size())
			dt.PutElement(buf, 2, bo, 100)
			if got := dt.Element(buf, 2, bo); got != 100 {
				t.Errorf("%v %v: element = %v, want 100", dt, bo, got)
			}
		}
	}
	buf := make([]byte, 2)
	Int16.PutElement(buf, 0, binary.BigEndian, -32767)
	if got := Int16.Element(buf, 0, binary.BigEndian); got != -32767 {
		t.Errorf("negative Int16 = %v", got)
	}
}

func TestSplitTable(t *testing.T) {
	tests := []struct{ in, path, table string }{
		{"a.tif", "a.tif", ""},
		{"dem.gpkg|heights", "dem.gpkg", "heights"},
		{"/x|y/z.gpkg|t", "/x|y/z.gpkg", "t"},
	}
	for _, tt := range tests {
		p, tb := SplitTable(tt.in)
		if p != tt.path || tb != tt.table {
			t.Errorf("SplitTable(%q) = %q, %q; want %q, %q", tt.in, p, tb, tt.path, tt.table)
		}
	}
}

func TestGeometryLocate(t *testing.T) {
	g := Geometry{Width: 10, Height: 7, Bands: 1, BlockWidth: 4, BlockHeight: 3, DataType: Float32}
	if g.BlocksAcross() != 3 || g.BlocksDown() != 3 {
		t.Fatalf("blocks = %dx%d, want 3x3", g.BlocksAcross(), g.BlocksDown())
	}
	block, elem := g.Locate(9, 6)
	if block != 8 || elem != 1 {
		t.Errorf("Locate(9,6) = %d, %d; want 8, 1", block, elem)
	}
	block, elem = g.Locate(5, 4)
	if block != 4 || elem != 5 {
		t.Errorf("Locate(5,4) = %d, %d; want 4, 5", block, elem)
	}
}

// grid describes a w x h float32 WGS84 dataset in 2x2 blocks with its
// north-west corner at (x0, y0).
func grid(t *testing.T, w, h int, x0, y0, spacing float64) Geometry {
	t.Helper()
	return Geometry{
		Width: w, Height: h, Bands: 1,
		BlockWidth: 2, BlockHeight: 2,
		DataType:  Float32,
		Transform: NorthUp(x0, y0, spacing, spacing),
		EPSG:      4326,
		NoData:    -9999, HasNoData: true,
	}
}

func values(w, h int, f func(c, r int) float64) []float64 {
	v := make([]float64, w*h)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			v[r*w+c] = f(c, r)
		}
	}
	return v
}

func memOpener(t *testing.T, geom Geometry, vals []float64) Opener {
	return func(string) (Dataset, error) {
		return NewMemDataset(geom, vals)
	}
}

func TestSourcePostsForPoint(t *testing.T) {
	geom := grid(t, 4, 4, 10, 20, 1)
	vals := values(4, 4, func(c, r int) float64 { return float64(10*r + c) })
	vals[2*4+2] = -9999 // nodata at (2,2)

	cache := blockcache.New(1 << 20)
	src, err := OpenSource(1, "mem", 0, memOpener(t, geom, vals), cache, SourceOptions{})
	require.NoError(t, err)
	require.False(t, src.IsOpen(), "handle should be released after registration")

	// Between post centers (1.5, 1.5) and (2.5, 2.5) in pixel space.
	posts := src.PostsForPoint(11.7, 18.2)
	require.Len(t, posts, 3, "nodata corner must be skipped")

	want := map[[2]int]float64{{1, 1}: 11, {2, 1}: 12, {1, 2}: 21}
	for i := range posts {
		p := &posts[i]
		v, err := p.Value()
		require.NoError(t, err)
		if want[[2]int{p.Col, p.Row}] != v {
			t.Errorf("post (%d,%d) = %v, want %v", p.Col, p.Row, v, want[[2]int{p.Col, p.Row}])
		}
		wx, wy := 10+float64(p.Col)+0.5, 20-float64(p.Row)-0.5
		if math.Abs(p.X-wx) > 1e-9 || math.Abs(p.Y-wy) > 1e-9 {
			t.Errorf("post (%d,%d) at (%v,%v), want (%v,%v)", p.Col, p.Row, p.X, p.Y, wx, wy)
		}
	}
	if src.IsOpen() {
		t.Error("handle left open after query")
	}

	// Outside the grid.
	if posts := src.PostsForPoint(0, 0); len(posts) != 0 {
		t.Errorf("posts outside grid = %v", posts)
	}
	// Near the corner only one post is in range.
	if posts := src.PostsForPoint(10.2, 19.8); len(posts) != 1 || posts[0].Col != 0 || posts[0].Row != 0 {
		t.Errorf("corner posts = %+v", posts)
	}
}

func TestSourceUsesBlockCache(t *testing.T) {
	geom := grid(t, 4, 4, 0, 4, 1)
	vals := values(4, 4, func(c, r int) float64 { return 1 })
	ds, err := NewMemDataset(geom, vals)
	require.NoError(t, err)

	cache := blockcache.New(1 << 20)
	src, err := NewSource(3, "mem", 0, ds, cache, SourceOptions{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := src.Value(0, 0)
		require.NoError(t, err)
		_, err = src.Value(1, 1)
		require.NoError(t, err)
	}
	if ds.Reads() != 1 {
		t.Errorf("block read %d times, want 1", ds.Reads())
	}
	if cache.OwnerEntries(3) != 1 {
		t.Errorf("cache entries = %d, want 1", cache.OwnerEntries(3))
	}

	require.NoError(t, src.Close())
	if cache.OwnerEntries(3) != 0 {
		t.Error("Close did not purge cached blocks")
	}
	if _, err := src.Value(0, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Value after Close: err = %v, want ErrClosed", err)
	}
}

func TestDataPostLoadsOnFirstUse(t *testing.T) {
	geom := grid(t, 4, 4, 0, 4, 1)
	vals := values(4, 4, func(c, r int) float64 { return float64(c + 10*r) })
	ds, err := NewMemDataset(geom, vals)
	require.NoError(t, err)
	src, err := NewSource(1, "mem", 0, ds, blockcache.New(1<<20), SourceOptions{})
	require.NoError(t, err)
	defer src.Close()

	p := NewDataPost(src, 2, 3, 2.5, 0.5)
	require.Zero(t, ds.Reads())
	for i := 0; i < 3; i++ {
		v, err := p.Value()
		require.NoError(t, err)
		require.Equal(t, 32.0, v)
	}
	require.Equal(t, 1, ds.Reads())

	ds.BlockError = func(band, index int) error { return errors.New("corrupt block") }
	bad := NewDataPost(src, 0, 0, 0.5, 3.5)
	_, err = bad.Value()
	require.ErrorIs(t, err, ErrDecode)
	ds.BlockError = nil
	_, err = bad.Value()
	require.ErrorIs(t, err, ErrDecode, "a failed read is remembered")
}

func TestSourceAcquireRelease(t *testing.T) {
	geom := grid(t, 2, 2, 0, 2, 1)
	vals := values(2, 2, func(c, r int) float64 { return 5 })
	src, err := OpenSource(1, "mem", 0, memOpener(t, geom, vals), blockcache.New(1<<10), SourceOptions{})
	require.NoError(t, err)

	require.NoError(t, src.Acquire())
	require.NoError(t, src.Acquire())
	for i := 0; i < 3; i++ {
		_, err := src.Value(i%2, 0)
		require.NoError(t, err)
	}
	src.Release()
	require.True(t, src.IsOpen())
	src.Release()
	require.False(t, src.IsOpen())
	// One open during registration and one for the pinned reads.
	if src.Opens() != 2 {
		t.Errorf("opens = %d, want 2", src.Opens())
	}

	kept, err := OpenSource(2, "mem", 0, memOpener(t, geom, vals), blockcache.New(1<<10), SourceOptions{KeepOpen: true})
	require.NoError(t, err)
	_, err = kept.Value(0, 0)
	require.NoError(t, err)
	if !kept.IsOpen() || kept.Opens() != 1 {
		t.Errorf("KeepOpen source: open=%v opens=%d", kept.IsOpen(), kept.Opens())
	}
}

func TestSourceDecodeErrorIsDeferred(t *testing.T) {
	geom := grid(t, 4, 4, 0, 4, 1)
	vals := values(4, 4, func(c, r int) float64 { return 1 })
	ds, err := NewMemDataset(geom, vals)
	require.NoError(t, err)
	boom := errors.New("corrupt block")
	ds.BlockError = func(band, index int) error {
		if index == 0 {
			return boom
		}
		return nil
	}
	src, err := NewSource(1, "mem", 0, ds, blockcache.New(1<<10), SourceOptions{})
	require.NoError(t, err)

	// Posts (1,1) (2,1) (1,2) (2,2): (1,1) lives in the failing block 0.
	posts := src.PostsForPoint(2, 2)
	require.Len(t, posts, 4)
	var failed int
	for i := range posts {
		if _, err := posts[i].Value(); err != nil {
			require.ErrorIs(t, err, ErrDecode)
			require.ErrorIs(t, err, boom)
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed posts = %d, want 1", failed)
	}
}

func TestOpenSourceRejectsInvalid(t *testing.T) {
	cache := blockcache.New(1 << 10)
	tests := []struct {
		name string
		open Opener
	}{
		{"open error", func(string) (Dataset, error) { return nil, errors.New("no such file") }},
		{"empty grid", func(string) (Dataset, error) {
			return &MemDataset{geom: Geometry{Bands: 1, BlockWidth: 1, BlockHeight: 1, DataType: Float32, Transform: NorthUp(0, 0, 1, 1)}}, nil
		}},
		{"unsupported crs", func(string) (Dataset, error) {
			g := grid(t, 2, 2, 0, 0, 1)
			g.EPSG = 32632
			return NewMemDataset(g, values(2, 2, func(c, r int) float64 { return 0 }))
		}},
		{"block larger than cache", func(string) (Dataset, error) {
			g := grid(t, 64, 64, 0, 0, 1)
			g.BlockWidth, g.BlockHeight = 64, 64
			return NewMemDataset(g, values(64, 64, func(c, r int) float64 { return 0 }))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenSource(1, tt.name, 0, tt.open, cache, SourceOptions{})
			require.ErrorIs(t, err, ErrInvalidSource)
		})
	}
}

func TestSourceReprojectedBounds(t *testing.T) {
	// A 10 km LV95 grid reported in WGS84.
	geom := Geometry{
		Width: 10, Height: 10, Bands: 1, BlockWidth: 10, BlockHeight: 1,
		DataType: Float32, EPSG: 2056,
		Transform: NorthUp(2_600_000, 1_200_000, 1000, 1000),
	}
	ds, err := NewMemDataset(geom, values(10, 10, func(c, r int) float64 { return float64(c) }))
	require.NoError(t, err)
	src, err := NewSource(1, "lv95", 0, ds, blockcache.New(1<<10), SourceOptions{Reference: coord.ForEPSG(4326)})
	require.NoError(t, err)

	b := src.Bounds()
	if b.Min.X() < 7.4 || b.Max.X() > 7.6 || b.Min.Y() < 46.8 || b.Max.Y() > 47.0 {
		t.Errorf("WGS84 bounds = %v", b)
	}
	if math.Abs(src.PostSpacing()-1000) > 1e-6 {
		t.Errorf("post spacing = %v, want 1000", src.PostSpacing())
	}

	lon, lat := coord.ForEPSG(2056).ToWGS84(2_604_250, 1_195_750)
	posts := src.PostsForPoint(lon, lat)
	require.Len(t, posts, 4)
	for i := range posts {
		v, err := posts[i].Value()
		require.NoError(t, err)
		if v != float64(posts[i].Col) {
			t.Errorf("post %d value %v", i, v)
		}
	}
}
