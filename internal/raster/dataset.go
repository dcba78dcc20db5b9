// Package raster defines the decode collaborator used by raster sources, the
// sources themselves and the grid posts they yield.
package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSource is returned for datasets that cannot be opened or whose
	// geometry is unusable.
	ErrInvalidSource = errors.New("invalid raster source")
	// ErrDecode wraps failures to read or decode a block.
	ErrDecode = errors.New("raster decode failed")
	// ErrNoData is returned when a post holds the nodata sentinel.
	ErrNoData = errors.New("post holds nodata")
	// ErrClosed is returned by sources that were closed for good.
	ErrClosed = errors.New("raster source closed")
)

// Geometry describes a raster grid and its block layout.
type Geometry struct {
	Width, Height           int
	Bands                   int
	BlockWidth, BlockHeight int
	DataType                DataType
	// ByteOrder of block buffers; nil means little endian.
	ByteOrder binary.ByteOrder
	Transform GeoTransform
	// EPSG code of the native CRS; 0 means the registry's reference frame.
	EPSG      int
	NoData    float64
	HasNoData bool
}

// BlocksAcross returns the number of block columns.
func (g Geometry) BlocksAcross() int {
	return (g.Width + g.BlockWidth - 1) / g.BlockWidth
}

// BlocksDown returns the number of block rows.
func (g Geometry) BlocksDown() int {
	return (g.Height + g.BlockHeight - 1) / g.BlockHeight
}

// BlockBytes is the size of one decoded block buffer. Edge blocks are padded
// to the full block size.
func (g Geometry) BlockBytes() int {
	return g.BlockWidth * g.BlockHeight * g.DataType.Size()
}

// Locate returns the block holding (col, row) and the element index inside it.
func (g Geometry) Locate(col, row int) (block, element int) {
	bc, br := col/g.BlockWidth, row/g.BlockHeight
	block = br*g.BlocksAcross() + bc
	element = (row-br*g.BlockHeight)*g.BlockWidth + (col - bc*g.BlockWidth)
	return
}

// Order returns the byte order of block buffers.
func (g Geometry) Order() binary.ByteOrder {
	if g.ByteOrder == nil {
		return binary.LittleEndian
	}
	return g.ByteOrder
}

// Validate checks that the geometry describes a readable grid.
func (g Geometry) Validate() error {
	switch {
	case g.Width <= 0 || g.Height <= 0:
		return fmt.Errorf("%w: empty grid %dx%d", ErrInvalidSource, g.Width, g.Height)
	case g.Bands <= 0:
		return fmt.Errorf("%w: no bands", ErrInvalidSource)
	case g.BlockWidth <= 0 || g.BlockHeight <= 0:
		return fmt.Errorf("%w: invalid block size %dx%d", ErrInvalidSource, g.BlockWidth, g.BlockHeight)
	case g.DataType.Size() == 0:
		return fmt.Errorf("%w: unsupported data type %v", ErrInvalidSource, g.DataType)
	}
	if _, err := g.Transform.Invert(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	return nil
}

// Dataset is an open raster, typically backed by a file.
type Dataset interface {
	Geometry() Geometry
	// ReadBlock returns the decoded block buffer of a 1-based band. The
	// buffer is exactly Geometry().BlockBytes() long.
	ReadBlock(band, index int) ([]byte, error)
	// Statistics returns the minimum and maximum valid value of a band.
	Statistics(band int) (min, max float64, err error)
	Close() error
}

// Opener opens a dataset by name. Names may carry a sub-table, see SplitTable.
type Opener func(name string) (Dataset, error)

// SplitTable splits a "path|table" dataset name.
func SplitTable(name string) (path, table string) {
	if i := strings.LastIndexByte(name, '|'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}
