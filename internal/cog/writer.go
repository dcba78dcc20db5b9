package cog

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/pspoerri/cdbtiles/internal/raster"
)

// Image is a single-band grid to write as a GeoTIFF.
type Image struct {
	Width, Height int
	// DataType of the stored samples; Unknown means Float32.
	DataType  raster.DataType
	Values    []float64 // row-major, Width*Height
	Transform raster.GeoTransform
	EPSG      int
	NoData    float64
	HasNoData bool
}

// WriteOptions controls the layout of a written GeoTIFF.
type WriteOptions struct {
	Deflate   bool
	Predictor int // 1 none, 2 horizontal, 3 floating point
	// TileSize > 0 writes square tiles; otherwise the image is stored in strips.
	TileSize     int
	RowsPerStrip int
	BigEndian    bool
}

type field struct {
	tag  uint16
	typ  uint16
	n    uint32
	data []byte
}

// WriteFile writes img to path.
func WriteFile(path string, img *Image, opts WriteOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err := Write(bw, img, opts); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return bw.Flush()
}

// Write encodes img as a classic (32-bit offset) GeoTIFF.
func Write(w io.Writer, img *Image, opts WriteOptions) error {
	dt := img.DataType
	if dt == raster.Unknown {
		dt = raster.Float32
	}
	if img.Width <= 0 || img.Height <= 0 || len(img.Values) != img.Width*img.Height {
		return fmt.Errorf("image %dx%d with %d values", img.Width, img.Height, len(img.Values))
	}
	var bo binary.ByteOrder = binary.LittleEndian
	if opts.BigEndian {
		bo = binary.BigEndian
	}
	predictor := uint16(opts.Predictor)
	if predictor == 0 {
		predictor = predictorNone
	}
	if predictor == predictorFloat && dt != raster.Float32 && dt != raster.Float64 {
		return fmt.Errorf("floating point predictor with %v samples", dt)
	}

	esize := dt.Size()
	bw, bh := img.Width, opts.RowsPerStrip
	tiled := opts.TileSize > 0
	if tiled {
		bw, bh = opts.TileSize, opts.TileSize
	} else {
		if bh <= 0 {
			bh = max(1, 8192/(img.Width*esize))
		}
		bh = min(bh, img.Height)
	}

	across := (img.Width + bw - 1) / bw
	down := (img.Height + bh - 1) / bh
	fill := 0.0
	if img.HasNoData {
		fill = img.NoData
	}

	var body bytes.Buffer
	offsets := make([]uint32, 0, across*down)
	counts := make([]uint32, 0, across*down)
	for by := 0; by < down; by++ {
		for bx := 0; bx < across; bx++ {
			rows := bh
			if !tiled {
				rows = min(bh, img.Height-by*bh)
			}
			buf := make([]byte, bw*rows*esize)
			for y := 0; y < rows; y++ {
				for x := 0; x < bw; x++ {
					v := fill
					c, r := bx*bw+x, by*bh+y
					if c < img.Width && r < img.Height {
						v = img.Values[r*img.Width+c]
					}
					dt.PutElement(buf, y*bw+x, bo, v)
				}
			}
			if err := predict(buf, predictor, bw*esize, 1, esize, bo); err != nil {
				return err
			}
			if opts.Deflate {
				var z bytes.Buffer
				zw := zlib.NewWriter(&z)
				if _, err := zw.Write(buf); err != nil {
					return err
				}
				if err := zw.Close(); err != nil {
					return err
				}
				buf = z.Bytes()
			}
			offsets = append(offsets, uint32(8+body.Len()))
			counts = append(counts, uint32(len(buf)))
			body.Write(buf)
			if body.Len()%2 == 1 {
				body.WriteByte(0)
			}
		}
	}
	if body.Len() > math.MaxUint32-(1<<20) {
		return fmt.Errorf("image too large for classic TIFF")
	}

	format := uint16(sampleUint)
	switch dt {
	case raster.Int16, raster.Int32:
		format = sampleInt
	case raster.Float32, raster.Float64:
		format = sampleFloat
	}
	compression := uint16(compressionNone)
	if opts.Deflate {
		compression = compressionDeflate
	}

	fields := []field{
		shortField(bo, tagImageWidth, uint16(img.Width)),
		shortField(bo, tagImageLength, uint16(img.Height)),
		shortField(bo, tagBitsPerSample, uint16(esize*8)),
		shortField(bo, tagCompression, compression),
		shortField(bo, tagPhotometric, 1),
		shortField(bo, tagSamplesPerPixel, 1),
		shortField(bo, tagPlanarConfig, 1),
		shortField(bo, tagPredictor, predictor),
		shortField(bo, tagSampleFormat, format),
	}
	if img.Width > math.MaxUint16 || img.Height > math.MaxUint16 {
		fields[0] = longField(bo, tagImageWidth, uint32(img.Width))
		fields[1] = longField(bo, tagImageLength, uint32(img.Height))
	}
	if tiled {
		fields = append(fields,
			longField(bo, tagTileWidth, uint32(bw)),
			longField(bo, tagTileLength, uint32(bh)),
			longField(bo, tagTileOffsets, offsets...),
			longField(bo, tagTileByteCounts, counts...),
		)
	} else {
		fields = append(fields,
			longField(bo, tagRowsPerStrip, uint32(bh)),
			longField(bo, tagStripOffsets, offsets...),
			longField(bo, tagStripByteCounts, counts...),
		)
	}
	fields = append(fields, geoFields(bo, img)...)
	if img.HasNoData {
		s := strconv.FormatFloat(img.NoData, 'g', -1, 64) + "\x00"
		fields = append(fields, field{tag: tagGDALNoData, typ: dtASCII, n: uint32(len(s)), data: []byte(s)})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].tag < fields[j].tag })

	ifdOffset := uint32(8 + body.Len())
	header := make([]byte, 8)
	if opts.BigEndian {
		copy(header, "MM")
	} else {
		copy(header, "II")
	}
	bo.PutUint16(header[2:], 42)
	bo.PutUint32(header[4:], ifdOffset)

	dir, extra := encodeIFD(bo, fields, ifdOffset)
	for _, part := range [][]byte{header, body.Bytes(), dir, extra} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

func geoFields(bo binary.ByteOrder, img *Image) []field {
	gt := img.Transform
	var fields []field
	if gt.Rotated() {
		fields = append(fields, doubleField(bo, tagModelTransformation,
			gt[1], gt[2], 0, gt[0],
			gt[4], gt[5], 0, gt[3],
			0, 0, 0, 0,
			0, 0, 0, 1))
	} else {
		fields = append(fields,
			doubleField(bo, tagModelPixelScale, gt[1], -gt[5], 0),
			doubleField(bo, tagModelTiepoint, 0, 0, 0, gt[0], gt[3], 0))
	}
	if img.EPSG == 0 {
		return fields
	}
	modelType, crsKey := uint16(1), uint16(gkProjectedType)
	if img.EPSG == 4326 {
		modelType, crsKey = 2, gkGeographicType
	}
	fields = append(fields, shortField(bo, tagGeoKeyDirectory,
		1, 1, 0, 3,
		gkModelType, 0, 1, modelType,
		gkRasterType, 0, 1, rasterPixelIsArea,
		crsKey, 0, 1, uint16(img.EPSG)))
	return fields
}

func shortField(bo binary.ByteOrder, tag uint16, vals ...uint16) field {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		bo.PutUint16(data[2*i:], v)
	}
	return field{tag: tag, typ: dtShort, n: uint32(len(vals)), data: data}
}

func longField(bo binary.ByteOrder, tag uint16, vals ...uint32) field {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		bo.PutUint32(data[4*i:], v)
	}
	return field{tag: tag, typ: dtLong, n: uint32(len(vals)), data: data}
}

func doubleField(bo binary.ByteOrder, tag uint16, vals ...float64) field {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		bo.PutUint64(data[8*i:], math.Float64bits(v))
	}
	return field{tag: tag, typ: dtDouble, n: uint32(len(vals)), data: data}
}

// encodeIFD lays out a directory at offset followed by the values that do
// not fit inline.
func encodeIFD(bo binary.ByteOrder, fields []field, offset uint32) (dir, extra []byte) {
	dir = make([]byte, 2+12*len(fields)+4)
	bo.PutUint16(dir, uint16(len(fields)))
	extraOffset := offset + uint32(len(dir))

	for i, f := range fields {
		e := dir[2+12*i:]
		bo.PutUint16(e[0:], f.tag)
		bo.PutUint16(e[2:], f.typ)
		bo.PutUint32(e[4:], f.n)
		if len(f.data) <= 4 {
			copy(e[8:12], f.data)
			continue
		}
		bo.PutUint32(e[8:], extraOffset+uint32(len(extra)))
		extra = append(extra, f.data...)
		if len(extra)%2 == 1 {
			extra = append(extra, 0)
		}
	}
	// Next IFD offset stays zero.
	return dir, extra
}
