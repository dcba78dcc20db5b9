package cog

import (
	"errors"
	"fmt"
)

// TIFF flavour of LZW: MSB-first codes of 9 to 12 bits, and the code width
// grows one code early compared to GIF (compress/lzw can't decode it).
const (
	lzwClearCode = 256
	lzwEOICode   = 257
	lzwFirstCode = 258
	lzwMaxWidth  = 12
	lzwTableSize = 1 << lzwMaxWidth
)

// lzwTable stores every string as its prefix code plus one suffix byte.
type lzwTable struct {
	prefix [lzwTableSize]uint16
	suffix [lzwTableSize]byte
	head   [lzwTableSize]byte // first byte of the string
	length [lzwTableSize]uint16
}

func newLZWTable() *lzwTable {
	t := &lzwTable{}
	for i := 0; i < 256; i++ {
		t.suffix[i] = byte(i)
		t.head[i] = byte(i)
		t.length[i] = 1
	}
	return t
}

// expand appends the string of code to out.
func (t *lzwTable) expand(out []byte, code int) []byte {
	n := int(t.length[code])
	start := len(out)
	for i := 0; i < n; i++ {
		out = append(out, 0)
	}
	for i := start + n - 1; i >= start; i-- {
		out[i] = t.suffix[code]
		code = int(t.prefix[code])
	}
	return out
}

// bitReader reads MSB-first codes.
type bitReader struct {
	src []byte
	pos int // in bits
}

func (r *bitReader) read(width int) (int, bool) {
	if r.pos+width > len(r.src)*8 {
		return 0, false
	}
	i := r.pos >> 3
	var w uint32
	for k := 0; k < 3; k++ {
		w <<= 8
		if i+k < len(r.src) {
			w |= uint32(r.src[i+k])
		}
	}
	shift := 24 - r.pos&7 - width
	r.pos += width
	return int(w>>shift) & (1<<width - 1), true
}

// decompressTIFFLZW decodes a TIFF LZW block. sizeHint is the expected
// decoded size; decoding stops once it is reached. Truncated streams
// without an end code return what was decoded.
func decompressTIFFLZW(data []byte, sizeHint int) ([]byte, error) {
	out, err := decodeLZW(data, sizeHint)
	if err != nil {
		return nil, fmt.Errorf("lzw: %w", err)
	}
	return out, nil
}

func decodeLZW(data []byte, sizeHint int) ([]byte, error) {
	t := newLZWTable()
	r := bitReader{src: data}
	out := make([]byte, 0, max(sizeHint, 0))

	width, next, prev := 9, lzwFirstCode, -1
	for first := true; sizeHint <= 0 || len(out) < sizeHint; first = false {
		code, ok := r.read(width)
		if !ok {
			break
		}
		if first && code != lzwClearCode {
			return nil, errors.New("first code is not clear code")
		}
		switch {
		case code == lzwEOICode:
			return out, nil
		case code == lzwClearCode:
			width, next, prev = 9, lzwFirstCode, -1
			continue
		case prev < 0:
			if code > 255 {
				return nil, fmt.Errorf("code %d after clear is not a literal", code)
			}
			out = append(out, byte(code))
			prev = code
			continue
		}

		var head byte
		switch {
		case code < next:
			out = t.expand(out, code)
			head = t.head[code]
		case code == next:
			// The string being defined: prev's string plus its own first byte.
			out = t.expand(out, prev)
			head = t.head[prev]
			out = append(out, head)
		default:
			return nil, fmt.Errorf("invalid code %d (table has %d)", code, next)
		}

		if next < lzwTableSize {
			t.prefix[next] = uint16(prev)
			t.suffix[next] = head
			t.head[next] = t.head[prev]
			t.length[next] = t.length[prev] + 1
			next++
		}
		if next+1 >= 1<<width && width < lzwMaxWidth {
			width++
		}
		prev = code
	}
	return out, nil
}
