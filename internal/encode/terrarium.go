package encode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
)

var nan = math.NaN()

// TerrariumEncoder encodes tiles as Terrarium-format PNG.
type TerrariumEncoder struct{}

func (e *TerrariumEncoder) Encode(g *Grid) ([]byte, error) {
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, TerrariumImage(g)); err != nil {
		return nil, fmt.Errorf("png: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *TerrariumEncoder) Format() string        { return "terrarium" }
func (e *TerrariumEncoder) FileExtension() string { return ".png" }

// TerrariumImage renders a grid as Terrarium RGB, posts without data
// becoming transparent.
func TerrariumImage(g *Grid) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := ElevationToTerrarium(g.Values[y*g.Width+x])
			img.SetNRGBA(x, y, color.NRGBA(c))
		}
	}
	return img
}

// terrariumGrid reads elevations back out of a Terrarium image.
func terrariumGrid(img image.Image) *Grid {
	b := img.Bounds()
	g := &Grid{Width: b.Dx(), Height: b.Dy(), Values: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			g.Values[y*g.Width+x] = TerrariumToElevation(color.RGBA(c))
		}
	}
	return g
}

// ElevationToTerrarium converts a float64 elevation value to Terrarium RGB.
// Terrarium formula: elevation = (R * 256 + G + B / 256) - 32768
// Range: approximately -32768 to +32767.996 meters.
func ElevationToTerrarium(elevation float64) color.RGBA {
	if math.IsNaN(elevation) || math.IsInf(elevation, 0) {
		return color.RGBA{0, 0, 0, 0} // nodata → transparent
	}

	value := min(max(elevation+32768.0, 0), 65535.996)

	rVal := min(int(value/256), 255)
	remainder := value - float64(rVal)*256.0
	gVal := min(max(int(remainder), 0), 255)
	bVal := min(max(int((remainder-float64(gVal))*256.0), 0), 255)

	return color.RGBA{R: uint8(rVal), G: uint8(gVal), B: uint8(bVal), A: 255}
}

// TerrariumToElevation converts Terrarium RGB values back to elevation.
// Returns NaN if the pixel is transparent (nodata).
func TerrariumToElevation(c color.RGBA) float64 {
	if c.A == 0 {
		return math.NaN()
	}
	return float64(c.R)*256.0 + float64(c.G) + float64(c.B)/256.0 - 32768.0
}
