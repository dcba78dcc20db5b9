// Package registry owns the raster sources used for elevation sampling, the
// block cache they share, and the spatial index over their bounds.
package registry

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/pspoerri/cdbtiles/internal/blockcache"
	"github.com/pspoerri/cdbtiles/internal/bsp"
	"github.com/pspoerri/cdbtiles/internal/coord"
	"github.com/pspoerri/cdbtiles/internal/raster"
)

// DefaultCacheBytes is the block cache capacity used when none is configured.
const DefaultCacheBytes = 256 << 20

// ErrIndexStale is returned by Ready when sources were registered after the
// last GenerateIndex.
var ErrIndexStale = errors.New("spatial index is stale")

// Options configures a Manager.
type Options struct {
	CacheBytes int64
	Opener     raster.Opener
	// Reference is the frame query points and posts are expressed in. Nil
	// means WGS84 longitude/latitude.
	Reference coord.Projection
	KeepOpen  bool
	Verbose   bool
}

// Manager is the source registry. Registration and GenerateIndex are meant
// to finish before concurrent queries start; queries may then run from any
// number of goroutines.
type Manager struct {
	opts  Options
	cache *blockcache.Cache

	mu      sync.RWMutex
	sources []*raster.Source
	index   bsp.Index[*raster.Source]
	nextID  blockcache.Owner
	indexed bool // GenerateIndex ran at least once
	closed  bool
}

// New creates an empty registry.
func New(opts Options) *Manager {
	if opts.CacheBytes <= 0 {
		opts.CacheBytes = DefaultCacheBytes
	}
	return &Manager{
		opts:   opts,
		cache:  blockcache.New(opts.CacheBytes),
		nextID: 1,
	}
}

// AddSource opens path with the configured opener and registers it. An
// invalid source is reported and leaves the registry unchanged.
func (m *Manager) AddSource(path string, priority int) (*raster.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("adding %s: %w", path, raster.ErrClosed)
	}
	s, err := raster.OpenSource(m.nextID, path, priority, m.opts.Opener, m.cache, m.sourceOptions())
	if err != nil {
		return nil, err
	}
	m.register(s)
	return s, nil
}

// AddDataset registers an already open dataset. The registry takes
// ownership and closes it on Close.
func (m *Manager) AddDataset(name string, ds raster.Dataset, priority int) (*raster.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("adding %s: %w", name, raster.ErrClosed)
	}
	s, err := raster.NewSource(m.nextID, name, priority, ds, m.cache, m.sourceOptions())
	if err != nil {
		return nil, err
	}
	m.register(s)
	return s, nil
}

func (m *Manager) sourceOptions() raster.SourceOptions {
	return raster.SourceOptions{Reference: m.opts.Reference, KeepOpen: m.opts.KeepOpen}
}

func (m *Manager) register(s *raster.Source) {
	m.nextID++
	m.sources = append(m.sources, s)
	m.index.Add(s.Bounds(), s.Epsilon(), s)
	if m.opts.Verbose {
		g := s.Geometry()
		b := s.Bounds()
		log.Printf("Source %d: %s (priority %d, %dx%d %s, %.2f m/post, bounds [%.6f,%.6f %.6f,%.6f])",
			s.ID, s.Name, s.Priority, g.Width, g.Height, g.DataType, s.PostSpacing(),
			b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y())
	}
}

// GenerateIndex builds the spatial index over the registered sources. Call
// it once after bulk registration; sources added later are only found by a
// linear scan until it is called again.
func (m *Manager) GenerateIndex() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index.Generate()
	m.indexed = true
	if m.opts.Verbose {
		log.Printf("Spatial index: %d sources, depth %d", m.index.Len(), m.index.Depth())
	}
}

// IndexStale reports whether sources were added after the last
// GenerateIndex.
func (m *Manager) IndexStale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexed && !m.index.Generated()
}

// Ready returns ErrIndexStale if the index no longer covers every source.
func (m *Manager) Ready() error {
	if m.IndexStale() {
		return ErrIndexStale
	}
	return nil
}

// Candidates returns the sources whose bounds cover (x, y).
func (m *Manager) Candidates(x, y float64) []*raster.Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index.Query(x, y)
}

// PostsForPoint returns the grid posts surrounding (x, y) from every
// covering source, grouped by source.
func (m *Manager) PostsForPoint(x, y float64) []raster.DataPost {
	var posts []raster.DataPost
	for _, s := range m.Candidates(x, y) {
		posts = append(posts, s.PostsForPoint(x, y)...)
	}
	return posts
}

// Sources returns the registered sources in registration order.
func (m *Manager) Sources() []*raster.Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*raster.Source(nil), m.sources...)
}

// Cache returns the block cache shared by all sources.
func (m *Manager) Cache() *blockcache.Cache { return m.cache }

// Reference returns the frame query points are expressed in.
func (m *Manager) Reference() coord.Projection { return m.opts.Reference }

// Close closes every source. Posts obtained from the registry must not be
// used afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var errs []error
	for _, s := range m.sources {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", s.Name, err))
		}
	}
	if m.opts.Verbose {
		st := m.cache.Stats()
		log.Printf("Block cache: %d hits, %d misses, %d evictions (%.1f%% hit rate)",
			st.Hits, st.Misses, st.Evictions, 100*st.HitRate())
	}
	return errors.Join(errs...)
}
