package cog

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// TIFF tag IDs.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfig        = 284
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoDoubleParams     = 34736
	tagGeoASCIIParams      = 34737
	tagGDALNoData          = 42113
)

// TIFF field types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndef     = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
	dtLong8     = 16
	dtSLong8    = 17
	dtIFD8      = 18
)

// Compression schemes.
const (
	compressionNone    = 1
	compressionLZW     = 5
	compressionDeflate = 8
	compressionAdobe   = 32946
)

// Predictors.
const (
	predictorNone       = 1
	predictorHorizontal = 2
	predictorFloat      = 3
)

// Sample formats.
const (
	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

// IFD is one parsed TIFF image file directory. Tiled and stripped layouts
// are both described as blocks: a strip is a block as wide as the image.
type IFD struct {
	Width, Height   uint32
	BlockWidth      uint32
	BlockHeight     uint32
	Tiled           bool
	BitsPerSample   uint16
	SampleFormat    uint16
	SamplesPerPixel uint16
	Compression     uint16
	Predictor       uint16
	PlanarConfig    uint16
	BlockOffsets    []uint64
	BlockByteCounts []uint64

	ModelTiepoint       []float64
	ModelPixelScale     []float64
	ModelTransformation []float64
	GeoKeys             []uint16
	NoData              string
}

// BlocksAcross returns the number of block columns.
func (ifd *IFD) BlocksAcross() int {
	return int((ifd.Width + ifd.BlockWidth - 1) / ifd.BlockWidth)
}

// BlocksDown returns the number of block rows.
func (ifd *IFD) BlocksDown() int {
	return int((ifd.Height + ifd.BlockHeight - 1) / ifd.BlockHeight)
}

// noData parses the GDAL_NODATA tag.
func (ifd *IFD) noData() (float64, bool) {
	s := strings.TrimSpace(strings.TrimRight(ifd.NoData, "\x00"))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if strings.EqualFold(s, "nan") {
			return math.NaN(), true
		}
		return 0, false
	}
	return v, true
}

// tiffEntry is a raw TIFF directory entry.
type tiffEntry struct {
	Tag      uint16
	DataType uint16
	Count    uint64
	Value    []byte // raw value bytes, resolved when stored out of line
}

// parseTIFF reads all IFDs from a TIFF file.
func parseTIFF(r io.ReadSeeker) ([]IFD, binary.ByteOrder, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, nil, fmt.Errorf("reading TIFF header: %w", err)
	}

	var bo binary.ByteOrder
	switch string(header[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, nil, fmt.Errorf("invalid TIFF byte order: %x", header[0:2])
	}

	magic := bo.Uint16(header[2:4])
	bigTIFF := magic == 43
	if magic != 42 && magic != 43 {
		return nil, nil, fmt.Errorf("invalid TIFF magic: %d", magic)
	}

	var offset uint64
	if bigTIFF {
		// Bytes 4-7 hold the offset size and padding; the first IFD offset follows.
		var rest [8]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return nil, nil, fmt.Errorf("reading BigTIFF header: %w", err)
		}
		offset = bo.Uint64(rest[:])
	} else {
		offset = uint64(bo.Uint32(header[4:8]))
	}

	var ifds []IFD
	seen := make(map[uint64]bool)
	for offset != 0 {
		if seen[offset] {
			return nil, nil, fmt.Errorf("IFD chain loops at offset %d", offset)
		}
		seen[offset] = true

		ifd, next, err := parseOneIFD(r, bo, offset, bigTIFF)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing IFD at offset %d: %w", offset, err)
		}
		ifds = append(ifds, ifd)
		offset = next
	}
	return ifds, bo, nil
}

func parseOneIFD(r io.ReadSeeker, bo binary.ByteOrder, offset uint64, bigTIFF bool) (IFD, uint64, error) {
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return IFD{}, 0, err
	}

	countSize, entrySize, offsetSize := 2, 12, 4
	if bigTIFF {
		countSize, entrySize, offsetSize = 8, 20, 8
	}

	buf := make([]byte, countSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return IFD{}, 0, err
	}
	n := readUint(buf, bo)

	raw := make([]byte, int(n)*entrySize+offsetSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return IFD{}, 0, err
	}

	entries := make([]tiffEntry, n)
	for i := range entries {
		entries[i] = parseTiffEntry(raw[i*entrySize:(i+1)*entrySize], bo, bigTIFF)
	}
	next := readUint(raw[int(n)*entrySize:], bo)

	for i := range entries {
		if err := resolveEntry(r, bo, &entries[i], bigTIFF); err != nil {
			return IFD{}, 0, fmt.Errorf("resolving tag %d: %w", entries[i].Tag, err)
		}
	}

	ifd, err := buildIFD(entries, bo)
	return ifd, next, err
}

func readUint(b []byte, bo binary.ByteOrder) uint64 {
	switch len(b) {
	case 2:
		return uint64(bo.Uint16(b))
	case 4:
		return uint64(bo.Uint32(b))
	default:
		return bo.Uint64(b)
	}
}

func parseTiffEntry(buf []byte, bo binary.ByteOrder, bigTIFF bool) tiffEntry {
	e := tiffEntry{Tag: bo.Uint16(buf[0:2]), DataType: bo.Uint16(buf[2:4])}
	if bigTIFF {
		e.Count = bo.Uint64(buf[4:12])
		e.Value = append([]byte(nil), buf[12:20]...)
	} else {
		e.Count = uint64(bo.Uint32(buf[4:8]))
		e.Value = append([]byte(nil), buf[8:12]...)
	}
	return e
}

func dataTypeSize(dt uint16) int {
	switch dt {
	case dtByte, dtASCII, dtSByte, dtUndef:
		return 1
	case dtShort, dtSShort:
		return 2
	case dtLong, dtSLong, dtFloat:
		return 4
	case dtRational, dtSRational, dtDouble, dtLong8, dtSLong8, dtIFD8:
		return 8
	default:
		return 1
	}
}

// resolveEntry reads the data of an entry stored out of line.
func resolveEntry(r io.ReadSeeker, bo binary.ByteOrder, e *tiffEntry, bigTIFF bool) error {
	total := int(e.Count) * dataTypeSize(e.DataType)
	if total <= len(e.Value) {
		return nil
	}

	if _, err := r.Seek(int64(readUint(e.Value, bo)), io.SeekStart); err != nil {
		return err
	}
	data := make([]byte, total)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}
	e.Value = data
	return nil
}

func buildIFD(entries []tiffEntry, bo binary.ByteOrder) (IFD, error) {
	ifd := IFD{
		SamplesPerPixel: 1,
		PlanarConfig:    1,
		Compression:     compressionNone,
		Predictor:       predictorNone,
		SampleFormat:    sampleUint,
		BitsPerSample:   1,
	}
	var rowsPerStrip uint32
	var stripOffsets, stripCounts []uint64

	for _, e := range entries {
		switch e.Tag {
		case tagImageWidth:
			ifd.Width = uint32(entryUint(e, bo, 0))
		case tagImageLength:
			ifd.Height = uint32(entryUint(e, bo, 0))
		case tagBitsPerSample:
			ifd.BitsPerSample = uint16(entryUint(e, bo, 0))
		case tagSampleFormat:
			ifd.SampleFormat = uint16(entryUint(e, bo, 0))
		case tagSamplesPerPixel:
			ifd.SamplesPerPixel = uint16(entryUint(e, bo, 0))
		case tagCompression:
			ifd.Compression = uint16(entryUint(e, bo, 0))
		case tagPredictor:
			ifd.Predictor = uint16(entryUint(e, bo, 0))
		case tagPlanarConfig:
			ifd.PlanarConfig = uint16(entryUint(e, bo, 0))
		case tagRowsPerStrip:
			rowsPerStrip = uint32(entryUint(e, bo, 0))
		case tagStripOffsets:
			stripOffsets = entryUints(e, bo)
		case tagStripByteCounts:
			stripCounts = entryUints(e, bo)
		case tagTileWidth:
			ifd.BlockWidth = uint32(entryUint(e, bo, 0))
			ifd.Tiled = true
		case tagTileLength:
			ifd.BlockHeight = uint32(entryUint(e, bo, 0))
		case tagTileOffsets:
			ifd.BlockOffsets = entryUints(e, bo)
		case tagTileByteCounts:
			ifd.BlockByteCounts = entryUints(e, bo)
		case tagModelTiepoint:
			ifd.ModelTiepoint = entryFloats(e, bo)
		case tagModelPixelScale:
			ifd.ModelPixelScale = entryFloats(e, bo)
		case tagModelTransformation:
			ifd.ModelTransformation = entryFloats(e, bo)
		case tagGeoKeyDirectory:
			ifd.GeoKeys = entryShorts(e, bo)
		case tagGDALNoData:
			ifd.NoData = string(e.Value[:e.Count])
		}
	}

	if !ifd.Tiled {
		ifd.BlockWidth = ifd.Width
		ifd.BlockHeight = rowsPerStrip
		if rowsPerStrip == 0 || rowsPerStrip > ifd.Height {
			ifd.BlockHeight = ifd.Height
		}
		ifd.BlockOffsets = stripOffsets
		ifd.BlockByteCounts = stripCounts
	}
	if ifd.Width == 0 || ifd.Height == 0 || ifd.BlockWidth == 0 || ifd.BlockHeight == 0 {
		return ifd, fmt.Errorf("missing image or block dimensions")
	}
	if len(ifd.BlockOffsets) != len(ifd.BlockByteCounts) {
		return ifd, fmt.Errorf("%d block offsets but %d byte counts", len(ifd.BlockOffsets), len(ifd.BlockByteCounts))
	}
	return ifd, nil
}

func entryUint(e tiffEntry, bo binary.ByteOrder, i int) uint64 {
	switch e.DataType {
	case dtShort, dtSShort:
		return uint64(bo.Uint16(e.Value[i*2:]))
	case dtLong, dtSLong:
		return uint64(bo.Uint32(e.Value[i*4:]))
	case dtLong8, dtSLong8, dtIFD8:
		return bo.Uint64(e.Value[i*8:])
	default:
		return uint64(e.Value[i])
	}
}

func entryUints(e tiffEntry, bo binary.ByteOrder) []uint64 {
	out := make([]uint64, e.Count)
	for i := range out {
		out[i] = entryUint(e, bo, i)
	}
	return out
}

func entryShorts(e tiffEntry, bo binary.ByteOrder) []uint16 {
	out := make([]uint16, e.Count)
	for i := range out {
		out[i] = uint16(entryUint(e, bo, i))
	}
	return out
}

func entryFloats(e tiffEntry, bo binary.ByteOrder) []float64 {
	out := make([]float64, e.Count)
	for i := range out {
		switch e.DataType {
		case dtDouble:
			out[i] = math.Float64frombits(bo.Uint64(e.Value[i*8:]))
		case dtFloat:
			out[i] = float64(math.Float32frombits(bo.Uint32(e.Value[i*4:])))
		}
	}
	return out
}
