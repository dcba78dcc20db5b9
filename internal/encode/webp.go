package encode

import (
	"bytes"
	"fmt"

	"github.com/gen2brain/webp"
)

// WebPEncoder encodes tiles as lossless Terrarium WebP using a pure-Go
// (WASM-based) encoder. Lossy WebP would corrupt the packed elevations.
type WebPEncoder struct{}

func (e *WebPEncoder) Encode(g *Grid) ([]byte, error) {
	var buf bytes.Buffer
	opts := webp.Options{
		Lossless: true,
	}
	if err := webp.Encode(&buf, TerrariumImage(g), opts); err != nil {
		return nil, fmt.Errorf("webp: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *WebPEncoder) Format() string        { return "webp" }
func (e *WebPEncoder) FileExtension() string { return ".webp" }
