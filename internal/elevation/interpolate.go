package elevation

import (
	"fmt"

	"github.com/pspoerri/cdbtiles/internal/raster"
)

// sample is a candidate post offset from the sample point in the local
// frame, in meters.
type sample struct {
	post  *raster.DataPost
	exact bool
	e, n  float64
	d2    float64
}

type bucket int

const (
	bucketN bucket = iota
	bucketNE
	bucketE
	bucketSE
	bucketS
	bucketSW
	bucketW
	bucketNW
	numBuckets
)

// neighborhood holds the nearest sample in each direction.
type neighborhood [numBuckets]*sample

// bucketsFor returns the buckets a point at offset (e, n) falls into. Points
// on an axis also fill both adjacent corners.
func bucketsFor(e, n float64) []bucket {
	switch {
	case e > 0 && n > 0:
		return []bucket{bucketNE}
	case e < 0 && n > 0:
		return []bucket{bucketNW}
	case e > 0 && n < 0:
		return []bucket{bucketSE}
	case e < 0 && n < 0:
		return []bucket{bucketSW}
	case e == 0 && n > 0:
		return []bucket{bucketN, bucketNE, bucketNW}
	case e == 0 && n < 0:
		return []bucket{bucketS, bucketSE, bucketSW}
	case n == 0 && e > 0:
		return []bucket{bucketE, bucketNE, bucketSE}
	case n == 0 && e < 0:
		return []bucket{bucketW, bucketNW, bucketSW}
	}
	// Coincident with the sample point.
	return []bucket{bucketN, bucketNE, bucketE, bucketSE, bucketS, bucketSW, bucketW, bucketNW}
}

func classify(work []sample) neighborhood {
	var nb neighborhood
	for i := range work {
		s := &work[i]
		for _, b := range bucketsFor(s.e, s.n) {
			if nb[b] == nil || s.d2 < nb[b].d2 {
				nb[b] = s
			}
		}
	}
	return nb
}

// nearest returns the index of the closest sample, the first on ties.
func nearest(work []sample) int {
	best := 0
	for i := range work {
		if work[i].d2 < work[best].d2 {
			best = i
		}
	}
	return best
}

// partner picks the second point for linear sampling. Corners on the far
// side of the sample point from p0 along either axis are preferred, the
// closest winning and the last checked of NW, NE, SE, SW breaking ties.
// Otherwise the second nearest sample is used.
func partner(work []sample, nb neighborhood, p0 *sample) *sample {
	var best *sample
	for _, b := range []bucket{bucketNW, bucketNE, bucketSE, bucketSW} {
		q := nb[b]
		if q == nil || q == p0 {
			continue
		}
		if p0.e*q.e >= 0 && p0.n*q.n >= 0 {
			continue
		}
		if best == nil || q.d2 <= best.d2 {
			best = q
		}
	}
	if best != nil {
		return best
	}
	for i := range work {
		q := &work[i]
		if q == p0 {
			continue
		}
		if best == nil || q.d2 < best.d2 {
			best = q
		}
	}
	return best
}

// lerp projects the sample point onto the line a-b and interpolates the
// values there, clamped to the segment.
func lerp(a, b *sample, za, zb float64) float64 {
	de, dn := b.e-a.e, b.n-a.n
	l2 := de*de + dn*dn
	if l2 == 0 {
		return za
	}
	t := (-a.e*de - a.n*dn) / l2
	t = min(max(t, 0), 1)
	return za + t*(zb-za)
}

// bilinear evaluates z = a00 + a10*nx + a01*ny + a11*nx*ny with nx, ny the
// fractional position of the sample point between the corners.
func bilinear(sw, se, nw, ne *sample, zsw, zse, znw, zne float64) float64 {
	var nx, ny float64
	if d := se.e - sw.e; d != 0 {
		nx = -sw.e / d
	}
	if d := nw.n - sw.n; d != 0 {
		ny = -sw.n / d
	}
	a00 := zsw
	a10 := zse - zsw
	a01 := znw - zsw
	a11 := zsw - zse - znw + zne
	return a00 + a10*nx + a01*ny + a11*nx*ny
}

// interpolate evaluates the strategy over e.work. A post whose value can
// not be read is reported by its index in e.work so the caller can drop it
// and retry; failed is -1 for other errors.
func (e *Engine) interpolate() (z float64, failed int, err error) {
	work := e.work
	if len(work) == 0 {
		return 0, -1, ErrNoData
	}
	index := func(s *sample) int {
		for i := range work {
			if &work[i] == s {
				return i
			}
		}
		return -1
	}

	for i := range work {
		if !work[i].exact {
			continue
		}
		v, err := work[i].post.Value()
		if err != nil {
			return 0, i, err
		}
		e.stats.Exact++
		return v, -1, nil
	}

	nb := classify(work)
	p0 := &work[nearest(work)]

	switch e.strategy {
	case Bilinear:
		sw, se, nw, ne := nb[bucketSW], nb[bucketSE], nb[bucketNW], nb[bucketNE]
		if sw != nil && se != nil && nw != nil && ne != nil {
			var zs [4]float64
			for k, s := range []*sample{sw, se, nw, ne} {
				v, err := s.post.Value()
				if err != nil {
					return 0, index(s), err
				}
				zs[k] = v
			}
			return bilinear(sw, se, nw, ne, zs[0], zs[1], zs[2], zs[3]), -1, nil
		}
		if e.force {
			e.stats.Insufficient++
			return 0, -1, fmt.Errorf("%w: %s needs 4 corners", ErrInsufficientData, e.strategy)
		}
	case Linear, Planar, TIN:
		if p1 := partner(work, nb, p0); p1 != nil {
			z0, err := p0.post.Value()
			if err != nil {
				return 0, index(p0), err
			}
			z1, err := p1.post.Value()
			if err != nil {
				return 0, index(p1), err
			}
			return lerp(p0, p1, z0, z1), -1, nil
		}
		if e.force {
			e.stats.Insufficient++
			return 0, -1, fmt.Errorf("%w: %s needs 2 posts", ErrInsufficientData, e.strategy)
		}
	}

	v, err := p0.post.Value()
	if err != nil {
		return 0, index(p0), err
	}
	if e.strategy != Nearest {
		e.stats.Degraded++
	}
	return v, -1, nil
}
