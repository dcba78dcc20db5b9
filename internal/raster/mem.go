package raster

import (
	"fmt"
	"math"
	"sync"
)

// MemDataset is a dataset held in memory, one value slice per band.
type MemDataset struct {
	geom   Geometry
	bands  [][]float64
	mu     sync.Mutex
	closed bool
	reads  int

	// BlockError, if set, is consulted before every block read.
	BlockError func(band, index int) error
}

// NewMemDataset creates a dataset over row-major band values. Zero block
// dimensions default to the full grid width and one row.
func NewMemDataset(geom Geometry, bands ...[]float64) (*MemDataset, error) {
	if geom.Bands == 0 {
		geom.Bands = len(bands)
	}
	if geom.BlockWidth == 0 {
		geom.BlockWidth = geom.Width
	}
	if geom.BlockHeight == 0 {
		geom.BlockHeight = 1
	}
	if geom.DataType == Unknown {
		geom.DataType = Float32
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if len(bands) != geom.Bands {
		return nil, fmt.Errorf("%w: %d bands declared, %d given", ErrInvalidSource, geom.Bands, len(bands))
	}
	for i, b := range bands {
		if len(b) != geom.Width*geom.Height {
			return nil, fmt.Errorf("%w: band %d has %d values, want %d", ErrInvalidSource, i+1, len(b), geom.Width*geom.Height)
		}
	}
	return &MemDataset{geom: geom, bands: bands}, nil
}

func (m *MemDataset) Geometry() Geometry { return m.geom }

func (m *MemDataset) ReadBlock(band, index int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if band < 1 || band > len(m.bands) {
		return nil, fmt.Errorf("band %d out of range", band)
	}
	g := m.geom
	if index < 0 || index >= g.BlocksAcross()*g.BlocksDown() {
		return nil, fmt.Errorf("block %d out of range", index)
	}
	if m.BlockError != nil {
		if err := m.BlockError(band, index); err != nil {
			return nil, err
		}
	}
	m.reads++

	buf := make([]byte, g.BlockBytes())
	bo := g.Order()
	bc, br := index%g.BlocksAcross(), index/g.BlocksAcross()
	values := m.bands[band-1]
	for y := 0; y < g.BlockHeight; y++ {
		row := br*g.BlockHeight + y
		if row >= g.Height {
			break
		}
		for x := 0; x < g.BlockWidth; x++ {
			col := bc*g.BlockWidth + x
			if col >= g.Width {
				break
			}
			g.DataType.PutElement(buf, y*g.BlockWidth+x, bo, values[row*g.Width+col])
		}
	}
	return buf, nil
}

func (m *MemDataset) Statistics(band int) (float64, float64, error) {
	if band < 1 || band > len(m.bands) {
		return 0, 0, fmt.Errorf("band %d out of range", band)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range m.bands[band-1] {
		if math.IsNaN(v) || (m.geom.HasNoData && v == m.geom.NoData) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("band %d: %w", band, ErrNoData)
	}
	return lo, hi, nil
}

func (m *MemDataset) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Reads returns the number of blocks read so far.
func (m *MemDataset) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}
