package raster

import (
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"

	"github.com/pspoerri/cdbtiles/internal/blockcache"
	"github.com/pspoerri/cdbtiles/internal/coord"
)

// ElevationBand is the band sampled for elevation.
const ElevationBand = 1

// SourceOptions configures a Source.
type SourceOptions struct {
	// Reference is the application frame posts are reported in. Nil is WGS84.
	Reference coord.Projection
	// KeepOpen keeps the decode handle open between uses.
	KeepOpen bool
}

// Source is one raster file registered for sampling. Its decode handle is
// opened lazily and closed again when no reader holds a reference, unless
// KeepOpen is set.
type Source struct {
	ID       blockcache.Owner
	Name     string
	Priority int

	geom      Geometry
	transform GeoTransform
	inverse   GeoTransform
	native    coord.Projection
	reference coord.Projection
	bounds    orb.Bound // native CRS
	refBounds orb.Bound // reference frame
	spacing   float64   // meters per post

	cache    *blockcache.Cache
	opener   Opener
	keepOpen bool

	mu     sync.Mutex
	ds     Dataset
	refs   int
	opens  int
	closed bool
}

// OpenSource opens name once to validate it and derive its geometry. The
// handle is released again unless opts.KeepOpen is set.
func OpenSource(id blockcache.Owner, name string, priority int, open Opener, cache *blockcache.Cache, opts SourceOptions) (*Source, error) {
	if open == nil {
		return nil, fmt.Errorf("%w: %s: no opener", ErrInvalidSource, name)
	}
	ds, err := open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSource, name, err)
	}
	s, err := newSource(id, name, priority, ds, cache, opts)
	if err != nil {
		ds.Close()
		return nil, err
	}
	s.opener = open
	s.opens = 1
	if !s.keepOpen {
		s.closeHandle()
	}
	return s, nil
}

// NewSource wraps an already open dataset. Without an opener the handle can
// not be reopened, so it stays open until Close.
func NewSource(id blockcache.Owner, name string, priority int, ds Dataset, cache *blockcache.Cache, opts SourceOptions) (*Source, error) {
	opts.KeepOpen = true
	s, err := newSource(id, name, priority, ds, cache, opts)
	if err != nil {
		return nil, err
	}
	s.opens = 1
	return s, nil
}

func newSource(id blockcache.Owner, name string, priority int, ds Dataset, cache *blockcache.Cache, opts SourceOptions) (*Source, error) {
	geom := ds.Geometry()
	if err := geom.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if cache == nil {
		return nil, fmt.Errorf("%w: %s: no block cache", ErrInvalidSource, name)
	}
	if int64(geom.BlockBytes()) > cache.MaxSize() {
		return nil, fmt.Errorf("%w: %s: block of %d bytes: %w", ErrInvalidSource, name, geom.BlockBytes(), blockcache.ErrEntryTooLarge)
	}

	native := opts.Reference
	if geom.EPSG != 0 {
		native = coord.ForEPSG(geom.EPSG)
		if native == nil {
			return nil, fmt.Errorf("%w: %s: unsupported EPSG:%d", ErrInvalidSource, name, geom.EPSG)
		}
	}
	inv, _ := geom.Transform.Invert() // validated above

	s := &Source{
		ID:        id,
		Name:      name,
		Priority:  priority,
		geom:      geom,
		transform: geom.Transform,
		inverse:   inv,
		native:    native,
		reference: opts.Reference,
		cache:     cache,
		keepOpen:  opts.KeepOpen,
		ds:        ds,
	}
	s.bounds = s.nativeBounds()
	s.refBounds = s.referenceBounds()

	_, lat := coord.Transform(s.native, nil, s.bounds.Center().X(), s.bounds.Center().Y())
	s.spacing = coord.PixelSizeInGroundMeters(geom.Transform.PostSpacing(), coord.EPSGOf(native), lat)
	return s, nil
}

func (s *Source) nativeBounds() orb.Bound {
	w, h := float64(s.geom.Width), float64(s.geom.Height)
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, c := range [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		x, y := s.transform.Apply(c[0], c[1])
		b = b.Extend(orb.Point{x, y})
	}
	return b
}

// referenceBounds samples the grid outline, since reprojection bends edges.
func (s *Source) referenceBounds() orb.Bound {
	if coord.Same(s.native, s.reference) {
		return s.bounds
	}
	const steps = 8
	w, h := float64(s.geom.Width), float64(s.geom.Height)
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for i := 0; i <= steps; i++ {
		f := float64(i) / steps
		for _, c := range [][2]float64{{f * w, 0}, {f * w, h}, {0, f * h}, {w, f * h}} {
			nx, ny := s.transform.Apply(c[0], c[1])
			x, y := coord.Transform(s.native, s.reference, nx, ny)
			b = b.Extend(orb.Point{x, y})
		}
	}
	return b
}

// Geometry returns the grid geometry.
func (s *Source) Geometry() Geometry { return s.geom }

// Bounds returns the extent in the reference frame.
func (s *Source) Bounds() orb.Bound { return s.refBounds }

// NativeBounds returns the extent in the source's own CRS.
func (s *Source) NativeBounds() orb.Bound { return s.bounds }

// PostSpacing returns the nominal distance between posts in meters.
func (s *Source) PostSpacing() float64 { return s.spacing }

// NoData returns the nodata sentinel, if any.
func (s *Source) NoData() (float64, bool) { return s.geom.NoData, s.geom.HasNoData }

// IsNoData reports whether v is the nodata sentinel. NaN is always nodata.
func (s *Source) IsNoData(v float64) bool {
	return math.IsNaN(v) || (s.geom.HasNoData && v == s.geom.NoData)
}

// Epsilon is one post spacing in reference-frame units, the tolerance used
// when testing a point against the source bounds.
func (s *Source) Epsilon() float64 {
	dx := s.refBounds.Max.X() - s.refBounds.Min.X()
	return dx / float64(s.geom.Width)
}

// Acquire opens the decode handle if needed and pins it until Release.
func (s *Source) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return err
	}
	s.refs++
	return nil
}

// Release drops a reference taken by Acquire.
func (s *Source) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs > 0 {
		s.refs--
	}
	s.idleLocked()
}

// IsOpen reports whether the decode handle is currently open.
func (s *Source) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds != nil
}

// Opens returns how many times the decode handle was opened.
func (s *Source) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func (s *Source) openLocked() error {
	if s.closed {
		return fmt.Errorf("%s: %w", s.Name, ErrClosed)
	}
	if s.ds != nil {
		return nil
	}
	ds, err := s.opener(s.Name)
	if err != nil {
		return fmt.Errorf("%w: reopening %s: %v", ErrDecode, s.Name, err)
	}
	s.ds = ds
	s.opens++
	return nil
}

func (s *Source) idleLocked() {
	if s.refs == 0 && !s.keepOpen {
		s.closeHandle()
	}
}

func (s *Source) closeHandle() {
	if s.ds != nil {
		s.ds.Close()
		s.ds = nil
	}
}

// Close releases the decode handle for good and drops the source's blocks
// from the cache.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.ds != nil {
		err = s.ds.Close()
		s.ds = nil
	}
	s.cache.Purge(s.ID)
	return err
}

// Value returns the raw value of the post at (col, row) of band 1.
func (s *Source) Value(col, row int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valueLocked(col, row)
}

func (s *Source) valueLocked(col, row int) (float64, error) {
	g := s.geom
	if col < 0 || col >= g.Width || row < 0 || row >= g.Height {
		return 0, fmt.Errorf("post (%d,%d) outside %s", col, row, s.Name)
	}
	if err := s.openLocked(); err != nil {
		return 0, err
	}
	defer s.idleLocked()

	block, elem := g.Locate(col, row)
	size := g.BlockBytes()
	offset := int64(block) * int64(size)

	e, err := s.cache.Get(s.ID, offset, size)
	if err != nil {
		return 0, fmt.Errorf("%w: %s block %d: %w", ErrDecode, s.Name, block, err)
	}
	if !e.Loaded {
		data, err := s.ds.ReadBlock(ElevationBand, block)
		if err != nil {
			return 0, fmt.Errorf("%w: %s block %d: %w", ErrDecode, s.Name, block, err)
		}
		if len(data) != size {
			return 0, fmt.Errorf("%w: %s block %d: %d bytes, want %d", ErrDecode, s.Name, block, len(data), size)
		}
		e.Data = data
		e.Loaded = true
	}
	return g.DataType.Element(e.Data, elem, g.Order()), nil
}

// PostsForPoint returns the up to four grid posts surrounding (x, y), given
// in the reference frame. Posts outside the grid or holding nodata are
// skipped. A post whose value cannot be read is still returned and reports
// the read error from Value.
func (s *Source) PostsForPoint(x, y float64) []DataPost {
	nx, ny := coord.Transform(s.reference, s.native, x, y)
	fc, fr := s.inverse.Apply(nx, ny)
	if math.IsNaN(fc) || math.IsNaN(fr) {
		return nil
	}
	// Posts sit at pixel centers.
	c0 := int(math.Floor(fc - 0.5))
	r0 := int(math.Floor(fr - 0.5))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return nil
	}
	s.refs++
	defer func() {
		s.refs--
		s.idleLocked()
	}()

	var posts []DataPost
	for _, c := range [4][2]int{{c0, r0}, {c0 + 1, r0}, {c0, r0 + 1}, {c0 + 1, r0 + 1}} {
		col, row := c[0], c[1]
		if col < 0 || col >= s.geom.Width || row < 0 || row >= s.geom.Height {
			continue
		}
		v, err := s.valueLocked(col, row)
		if err == nil && s.IsNoData(v) {
			continue
		}
		px, py := s.transform.Apply(float64(col)+0.5, float64(row)+0.5)
		px, py = coord.Transform(s.native, s.reference, px, py)
		posts = append(posts, DataPost{
			X: px, Y: py,
			Col: col, Row: row,
			Source: s,
			value:  v,
			err:    err,
			loaded: true,
		})
	}
	return posts
}
