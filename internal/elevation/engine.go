// Package elevation samples terrain height at arbitrary points from the
// posts of overlapping raster sources.
package elevation

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/maypok86/otter/v2"

	"github.com/pspoerri/cdbtiles/internal/coord"
	"github.com/pspoerri/cdbtiles/internal/raster"
)

var (
	// ErrNoData is returned when no source covers the sample point.
	ErrNoData = errors.New("no elevation data")
	// ErrInsufficientData is returned in force mode when the posts around
	// the sample point do not satisfy the strategy.
	ErrInsufficientData = errors.New("insufficient elevation data")
)

// DefaultFrameCacheSize bounds the number of local frames an engine keeps.
const DefaultFrameCacheSize = 64

// spacingTolerance is the relative slack when comparing post spacings of
// sources at the best priority.
const spacingTolerance = 1e-3

// PostProvider yields the grid posts around a point. *registry.Manager
// implements it.
type PostProvider interface {
	PostsForPoint(x, y float64) []raster.DataPost
}

// Stats counts engine outcomes.
type Stats struct {
	Queries      uint64
	Exact        uint64 // answered by a post at the sample point
	Degraded     uint64 // fell back to nearest
	NoData       uint64
	Insufficient uint64
	Dropped      uint64 // posts dropped after a read error
}

// Engine computes elevations. It keeps per-query scratch state and is not
// safe for concurrent use; create one per goroutine.
type Engine struct {
	provider  PostProvider
	strategy  Strategy
	force     bool
	reference coord.Projection
	frameSize int

	frames *otter.Cache[coord.FrameKey, *coord.LocalFrame]
	work   []sample
	stats  Stats
}

// An Option configures an Engine.
type Option func(*Engine)

// WithReference sets the frame sample points and posts are expressed in.
// It defaults to the provider's Reference method if it has one, else WGS84.
func WithReference(p coord.Projection) Option {
	return func(e *Engine) {
		e.reference = p
	}
}

// WithFrameCacheSize bounds the number of cached local frames.
func WithFrameCacheSize(n int) Option {
	return func(e *Engine) {
		e.frameSize = n
	}
}

// New returns an engine sampling posts from provider. With force set,
// missing posts fail the query instead of degrading to nearest.
func New(provider PostProvider, strategy Strategy, force bool, opts ...Option) *Engine {
	e := &Engine{
		provider:  provider,
		strategy:  strategy,
		force:     force,
		frameSize: DefaultFrameCacheSize,
	}
	if r, ok := provider.(interface{ Reference() coord.Projection }); ok {
		e.reference = r.Reference()
	}
	for _, o := range opts {
		o(e)
	}
	e.frames = otter.Must(&otter.Options[coord.FrameKey, *coord.LocalFrame]{
		MaximumSize: max(e.frameSize, 1),
	})
	return e
}

// Strategy returns the configured strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Stats returns the counters accumulated so far.
func (e *Engine) Stats() Stats { return e.stats }

// Elevation returns the terrain height at (x, y), given in the reference
// frame.
func (e *Engine) Elevation(x, y float64) (float64, error) {
	e.stats.Queries++
	e.work = e.work[:0]

	posts := e.provider.PostsForPoint(x, y)
	if len(posts) == 0 {
		e.stats.NoData++
		return 0, fmt.Errorf("(%g, %g): %w", x, y, ErrNoData)
	}
	posts = arbitrate(posts, e.strategy.desired())

	// Pin the sources so lazy post reads reuse one open handle.
	var pinned []*raster.Source
	for i := range posts {
		s := posts[i].Source
		if slices.Contains(pinned, s) || s.Acquire() != nil {
			continue
		}
		pinned = append(pinned, s)
	}
	defer func() {
		for _, s := range pinned {
			s.Release()
		}
	}()

	lon, lat := coord.Transform(e.reference, nil, x, y)
	frame := e.frame(lon, lat)
	se, sn := frame.Forward(lon, lat)
	for i := range posts {
		p := &posts[i]
		plon, plat := coord.Transform(e.reference, nil, p.X, p.Y)
		pe, pn := frame.Forward(plon, plat)
		de, dn := pe-se, pn-sn
		e.work = append(e.work, sample{
			post:  p,
			exact: p.X == x && p.Y == y,
			e:     de,
			n:     dn,
			d2:    de*de + dn*dn,
		})
	}

	minimum := 1
	if e.force {
		minimum = e.strategy.required()
	}
	for {
		z, failed, err := e.interpolate()
		if err == nil {
			return z, nil
		}
		if failed < 0 {
			return 0, fmt.Errorf("(%g, %g): %w", x, y, err)
		}
		e.stats.Dropped++
		e.work = slices.Delete(e.work, failed, failed+1)
		if len(e.work) < minimum {
			return 0, fmt.Errorf("(%g, %g): %w", x, y, err)
		}
	}
}

func (e *Engine) frame(lon, lat float64) *coord.LocalFrame {
	key := coord.FrameKeyFor(lon, lat)
	if f, ok := e.frames.GetIfPresent(key); ok {
		return f
	}
	f := coord.NewLocalFrame(key.Origin())
	e.frames.Set(key, f)
	return f
}

// arbitrate picks the posts to interpolate. Among the best sources, highest
// priority first then finest post spacing, one that supplies at least
// desired posts on its own is used exclusively, so resolutions are not
// blended. Otherwise every candidate post is kept, letting lower priority
// sources fill the corners missing at a seam.
func arbitrate(posts []raster.DataPost, desired int) []raster.DataPost {
	best := math.MinInt
	for i := range posts {
		best = max(best, posts[i].Source.Priority)
	}
	finest := math.Inf(1)
	for i := range posts {
		if s := posts[i].Source; s.Priority == best {
			finest = math.Min(finest, s.PostSpacing())
		}
	}

	counts := make(map[*raster.Source]int)
	for _, p := range posts {
		s := p.Source
		if s.Priority != best || s.PostSpacing() > finest*(1+spacingTolerance) {
			continue
		}
		counts[s]++
	}

	var exclusive *raster.Source
	for s, n := range counts {
		if n < desired {
			continue
		}
		if exclusive == nil || n > counts[exclusive] || (n == counts[exclusive] && s.ID < exclusive.ID) {
			exclusive = s
		}
	}
	if exclusive == nil {
		return posts
	}
	var only []raster.DataPost
	for _, p := range posts {
		if p.Source == exclusive {
			only = append(only, p)
		}
	}
	return only
}
