package cog

import (
	"encoding/binary"
	"fmt"
)

// unpredict reverses a TIFF predictor in place. buf holds whole rows of
// rowBytes bytes, each pixel having samples elements of esize bytes.
func unpredict(buf []byte, predictor uint16, rowBytes, samples, esize int, bo binary.ByteOrder) error {
	switch predictor {
	case 0, predictorNone:
		return nil
	case predictorHorizontal:
		for row := 0; row+rowBytes <= len(buf); row += rowBytes {
			accumulate(buf[row:row+rowBytes], samples, esize, bo)
		}
		return nil
	case predictorFloat:
		tmp := make([]byte, rowBytes)
		for row := 0; row+rowBytes <= len(buf); row += rowBytes {
			floatAccumulate(buf[row:row+rowBytes], tmp, samples, esize, bo)
		}
		return nil
	default:
		return fmt.Errorf("unsupported predictor %d", predictor)
	}
}

// accumulate undoes horizontal differencing on one row of integers.
func accumulate(row []byte, samples, esize int, bo binary.ByteOrder) {
	stride := samples * esize
	switch esize {
	case 1:
		for i := stride; i < len(row); i++ {
			row[i] += row[i-stride]
		}
	case 2:
		for i := stride; i+2 <= len(row); i += 2 {
			bo.PutUint16(row[i:], bo.Uint16(row[i:])+bo.Uint16(row[i-stride:]))
		}
	case 4:
		for i := stride; i+4 <= len(row); i += 4 {
			bo.PutUint32(row[i:], bo.Uint32(row[i:])+bo.Uint32(row[i-stride:]))
		}
	case 8:
		for i := stride; i+8 <= len(row); i += 8 {
			bo.PutUint64(row[i:], bo.Uint64(row[i:])+bo.Uint64(row[i-stride:]))
		}
	}
}

// floatAccumulate undoes the floating point predictor on one row: bytes are
// differenced across the row, then stored as byte planes from the most
// significant byte down.
func floatAccumulate(row, tmp []byte, samples, esize int, bo binary.ByteOrder) {
	for i := samples; i < len(row); i++ {
		row[i] += row[i-samples]
	}
	copy(tmp, row)

	n := len(row) / esize
	big := bo == binary.BigEndian
	for j := 0; j < n; j++ {
		for k := 0; k < esize; k++ {
			plane := k // byte k of a big endian value
			if !big {
				plane = esize - 1 - k
			}
			row[j*esize+k] = tmp[plane*n+j]
		}
	}
}

// predict applies a predictor in place; the inverse of unpredict.
func predict(buf []byte, predictor uint16, rowBytes, samples, esize int, bo binary.ByteOrder) error {
	switch predictor {
	case 0, predictorNone:
		return nil
	case predictorHorizontal:
		for row := 0; row+rowBytes <= len(buf); row += rowBytes {
			difference(buf[row:row+rowBytes], samples, esize, bo)
		}
		return nil
	case predictorFloat:
		tmp := make([]byte, rowBytes)
		for row := 0; row+rowBytes <= len(buf); row += rowBytes {
			floatDifference(buf[row:row+rowBytes], tmp, samples, esize, bo)
		}
		return nil
	default:
		return fmt.Errorf("unsupported predictor %d", predictor)
	}
}

func difference(row []byte, samples, esize int, bo binary.ByteOrder) {
	stride := samples * esize
	switch esize {
	case 1:
		for i := len(row) - 1; i >= stride; i-- {
			row[i] -= row[i-stride]
		}
	case 2:
		for i := len(row) - 2; i >= stride; i -= 2 {
			bo.PutUint16(row[i:], bo.Uint16(row[i:])-bo.Uint16(row[i-stride:]))
		}
	case 4:
		for i := len(row) - 4; i >= stride; i -= 4 {
			bo.PutUint32(row[i:], bo.Uint32(row[i:])-bo.Uint32(row[i-stride:]))
		}
	case 8:
		for i := len(row) - 8; i >= stride; i -= 8 {
			bo.PutUint64(row[i:], bo.Uint64(row[i:])-bo.Uint64(row[i-stride:]))
		}
	}
}

func floatDifference(row, tmp []byte, samples, esize int, bo binary.ByteOrder) {
	n := len(row) / esize
	big := bo == binary.BigEndian
	for j := 0; j < n; j++ {
		for k := 0; k < esize; k++ {
			plane := k
			if !big {
				plane = esize - 1 - k
			}
			tmp[plane*n+j] = row[j*esize+k]
		}
	}
	copy(row, tmp)
	for i := len(row) - 1; i >= samples; i-- {
		row[i] -= row[i-samples]
	}
}
