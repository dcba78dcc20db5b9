// Package cog reads and writes single-band elevation GeoTIFFs, including
// Cloud Optimized GeoTIFFs, as raster datasets.
package cog

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/pspoerri/cdbtiles/internal/raster"
)

// Reader provides block-level access to one image of a GeoTIFF file. The file
// is memory-mapped where supported; reads need no locking.
type Reader struct {
	data   []byte
	mapped bool
	bo     binary.ByteOrder
	ifd    IFD
	level  int
	levels int
	geom   raster.Geometry
	path   string

	statsOnce sync.Once
	statsMin  float64
	statsMax  float64
	statsErr  error
}

var _ raster.Dataset = (*Reader)(nil)

// Open opens a GeoTIFF. The name may select an overview with "path|N",
// N being the IFD index.
func Open(name string) (*Reader, error) {
	path, table := raster.SplitTable(name)
	level := 0
	if table != "" {
		n, err := strconv.Atoi(table)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s: invalid image index %q", path, table)
		}
		level = n
	}

	data, mapped, err := load(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(path, data, level)
	if err != nil {
		if mapped {
			munmapFile(data)
		}
		return nil, err
	}
	r.mapped = mapped
	return r, nil
}

// Opener returns a raster.Opener backed by Open.
func Opener() raster.Opener {
	return func(name string) (raster.Dataset, error) {
		return Open(name)
	}
}

func load(path string) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.Size() == 0 {
		return nil, false, fmt.Errorf("%s: empty file", path)
	}

	if data, err := mmapFile(f.Fd(), int(fi.Size())); err == nil {
		return data, true, nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, false, nil
}

// NewReader parses an in-memory GeoTIFF.
func NewReader(name string, data []byte) (*Reader, error) {
	return newReader(name, data, 0)
}

func newReader(path string, data []byte, level int) (*Reader, error) {
	ifds, bo, err := parseTIFF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(ifds) == 0 {
		return nil, fmt.Errorf("%s: no IFDs found", path)
	}
	if level >= len(ifds) {
		return nil, fmt.Errorf("%s: image %d requested, file has %d", path, level, len(ifds))
	}

	r := &Reader{data: data, bo: bo, ifd: ifds[level], level: level, levels: len(ifds), path: path}
	geom, err := r.geometry(&ifds[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.geom = geom
	return r, nil
}

func (r *Reader) geometry(full *IFD) (raster.Geometry, error) {
	ifd := &r.ifd
	dt, err := sampleType(ifd.SampleFormat, ifd.BitsPerSample)
	if err != nil {
		return raster.Geometry{}, err
	}
	switch ifd.Compression {
	case compressionNone, compressionLZW, compressionDeflate, compressionAdobe:
	default:
		return raster.Geometry{}, fmt.Errorf("unsupported compression: %d", ifd.Compression)
	}

	gk := parseGeoKeys(full.GeoKeys)
	gt, ok := geoTransform(full, gk)
	epsg := gk.EPSG
	if !ok {
		p := findTFW(r.path)
		if p == "" {
			return raster.Geometry{}, fmt.Errorf("no georeferencing (GeoTIFF tags or world file)")
		}
		tfw, err := parseTFW(p)
		if err != nil {
			return raster.Geometry{}, err
		}
		gt = tfw.Transform()
		if epsg == 0 {
			epsg = inferEPSG(gt, full.Width, full.Height)
		}
	}
	if r.level > 0 {
		gt = scaleTransform(gt, full.Width, full.Height, ifd.Width, ifd.Height)
	}

	nodata, hasNoData := full.noData()
	return raster.Geometry{
		Width:       int(ifd.Width),
		Height:      int(ifd.Height),
		Bands:       int(ifd.SamplesPerPixel),
		BlockWidth:  int(ifd.BlockWidth),
		BlockHeight: int(ifd.BlockHeight),
		DataType:    dt,
		ByteOrder:   r.bo,
		Transform:   gt,
		EPSG:        epsg,
		NoData:      nodata,
		HasNoData:   hasNoData,
	}, nil
}

func sampleType(format, bits uint16) (raster.DataType, error) {
	switch {
	case format == sampleUint && bits == 8:
		return raster.Byte, nil
	case format == sampleUint && bits == 16:
		return raster.UInt16, nil
	case format == sampleInt && bits == 16:
		return raster.Int16, nil
	case format == sampleUint && bits == 32:
		return raster.UInt32, nil
	case format == sampleInt && bits == 32:
		return raster.Int32, nil
	case format == sampleFloat && bits == 32:
		return raster.Float32, nil
	case format == sampleFloat && bits == 64:
		return raster.Float64, nil
	}
	return raster.Unknown, fmt.Errorf("unsupported sample format %d with %d bits", format, bits)
}

// Close releases the file mapping.
func (r *Reader) Close() error {
	if r.mapped && r.data != nil {
		err := munmapFile(r.data)
		r.data = nil
		return err
	}
	r.data = nil
	return nil
}

// Path returns the file path.
func (r *Reader) Path() string { return r.path }

// Geometry implements raster.Dataset.
func (r *Reader) Geometry() raster.Geometry { return r.geom }

// Levels returns the number of images (full resolution plus overviews).
func (r *Reader) Levels() int { return r.levels }

// Level returns the index of the image this reader serves.
func (r *Reader) Level() int { return r.level }

// ReadBlock implements raster.Dataset. The returned buffer holds one band of
// the block, padded to the full block size, in the file's byte order.
func (r *Reader) ReadBlock(band, index int) ([]byte, error) {
	ifd := &r.ifd
	g := r.geom
	if r.data == nil {
		return nil, raster.ErrClosed
	}
	if band < 1 || band > g.Bands {
		return nil, fmt.Errorf("band %d out of range (have %d)", band, g.Bands)
	}
	nblocks := ifd.BlocksAcross() * ifd.BlocksDown()
	if index < 0 || index >= nblocks {
		return nil, fmt.Errorf("block %d out of range (have %d)", index, nblocks)
	}

	spp := int(ifd.SamplesPerPixel)
	chunky := ifd.PlanarConfig != 2 && spp > 1
	slot := index
	if !chunky && spp > 1 {
		slot = (band-1)*nblocks + index
	}
	if slot >= len(ifd.BlockOffsets) {
		return nil, fmt.Errorf("block %d missing from offset table", slot)
	}

	out := make([]byte, g.BlockBytes())
	offset, size := ifd.BlockOffsets[slot], ifd.BlockByteCounts[slot]
	if size == 0 {
		// Sparse block.
		if g.HasNoData {
			for i := 0; i < g.BlockWidth*g.BlockHeight; i++ {
				g.DataType.PutElement(out, i, r.bo, g.NoData)
			}
		}
		return out, nil
	}
	end := offset + size
	if end > uint64(len(r.data)) {
		return nil, fmt.Errorf("block data [%d:%d] exceeds file size %d", offset, end, len(r.data))
	}

	raw, err := r.decompress(r.data[offset:end])
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", index, err)
	}

	samples := 1
	if chunky {
		samples = spp
	}
	rows := g.BlockHeight
	if !ifd.Tiled {
		// The last strip may be short.
		if rem := g.Height - (index/ifd.BlocksAcross())*g.BlockHeight; rem < rows {
			rows = rem
		}
	}
	esize := g.DataType.Size()
	rowBytes := g.BlockWidth * samples * esize
	if len(raw) < rows*rowBytes {
		return nil, fmt.Errorf("block %d: decoded %d bytes, want %d", index, len(raw), rows*rowBytes)
	}
	raw = raw[:rows*rowBytes]

	if err := unpredict(raw, ifd.Predictor, rowBytes, samples, esize, r.bo); err != nil {
		return nil, fmt.Errorf("block %d: %w", index, err)
	}

	if !chunky {
		copy(out, raw)
		if rows < g.BlockHeight && g.HasNoData {
			for i := rows * g.BlockWidth; i < g.BlockWidth*g.BlockHeight; i++ {
				g.DataType.PutElement(out, i, r.bo, g.NoData)
			}
		}
		return out, nil
	}
	for i := 0; i < rows*g.BlockWidth; i++ {
		src := (i*samples + band - 1) * esize
		copy(out[i*esize:(i+1)*esize], raw[src:src+esize])
	}
	return out, nil
}

func (r *Reader) decompress(data []byte) ([]byte, error) {
	switch r.ifd.Compression {
	case compressionNone:
		// Copy: the mapping is read-only and predictors decode in place.
		return append([]byte(nil), data...), nil
	case compressionLZW:
		return decompressTIFFLZW(data, r.geom.BlockBytes()*int(r.ifd.SamplesPerPixel))
	case compressionDeflate, compressionAdobe:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %d", r.ifd.Compression)
	}
}

// Statistics implements raster.Dataset by scanning every block once.
func (r *Reader) Statistics(band int) (float64, float64, error) {
	if band != 1 {
		return r.scan(band)
	}
	r.statsOnce.Do(func() {
		r.statsMin, r.statsMax, r.statsErr = r.scan(1)
	})
	return r.statsMin, r.statsMax, r.statsErr
}

func (r *Reader) scan(band int) (float64, float64, error) {
	g := r.geom
	vals, err := r.ReadValues(band)
	if err != nil {
		return 0, 0, err
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) || (g.HasNoData && v == g.NoData) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("band %d: %w", band, raster.ErrNoData)
	}
	return lo, hi, nil
}

// ReadValues decodes a whole band into row-major values.
func (r *Reader) ReadValues(band int) ([]float64, error) {
	g := r.geom
	out := make([]float64, g.Width*g.Height)
	for by := 0; by < g.BlocksDown(); by++ {
		for bx := 0; bx < g.BlocksAcross(); bx++ {
			buf, err := r.ReadBlock(band, by*g.BlocksAcross()+bx)
			if err != nil {
				return nil, err
			}
			for y := 0; y < g.BlockHeight && by*g.BlockHeight+y < g.Height; y++ {
				row := by*g.BlockHeight + y
				for x := 0; x < g.BlockWidth && bx*g.BlockWidth+x < g.Width; x++ {
					out[row*g.Width+bx*g.BlockWidth+x] = g.DataType.Element(buf, y*g.BlockWidth+x, r.bo)
				}
			}
		}
	}
	return out, nil
}
