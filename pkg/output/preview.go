package output

import (
	"io"
	"math"
	"os"

	"github.com/df07/go-grrt/pkg/renderer"
	"github.com/gogpu/gg"
	"github.com/lucasb-eyer/go-colorful"
)

// inferno control points, dark to bright.
var infernoHex = []string{"#000004", "#420a68", "#932667", "#dd513a", "#fca50a", "#fcffa4"}

// Colormap maps [0, 1] onto a perceptual palette by blending its control
// points in CIE-L*C*h.
type Colormap struct {
	stops []colorful.Color
}

// Inferno returns the default preview palette.
func Inferno() Colormap {
	stops := make([]colorful.Color, len(infernoHex))
	for i, h := range infernoHex {
		stops[i], _ = colorful.Hex(h)
	}
	return Colormap{stops: stops}
}

// At returns the colour at t, clamped to [0, 1].
func (m Colormap) At(t float64) colorful.Color {
	t = math.Max(0, math.Min(1, t))
	segments := len(m.stops) - 1
	pos := t * float64(segments)
	i := int(pos)
	if i >= segments {
		return m.stops[segments]
	}
	f := pos - float64(i)
	if f == 0 {
		return m.stops[i]
	}
	return m.stops[i].BlendHcl(m.stops[i+1], f).Clamped()
}

// Normalize returns per-pixel positions in [0, 1]. Pixels with no emission
// map to -1. Luminosity spans many decades and is scaled logarithmically.
func Normalize(img *renderer.Image, observable string) []float64 {
	values := img.Values()
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range values {
		if v <= 0 || math.IsNaN(v) {
			values[i] = math.NaN()
			continue
		}
		if observable == Luminosity {
			v = math.Log10(v)
			values[i] = v
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = -1
		case hi > lo:
			out[i] = (v - lo) / (hi - lo)
		default:
			out[i] = 1
		}
	}
	return out
}

// Preview rasterizes the image with β increasing upwards. Pixels without
// emission are black.
func Preview(img *renderer.Image, observable string, cmap Colormap) *gg.Context {
	n := img.Size
	dc := gg.NewContext(n, n)
	dc.ClearWithColor(gg.RGB(0, 0, 0))

	pos := Normalize(img, observable)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			t := pos[row*n+col]
			if t < 0 {
				continue
			}
			c := cmap.At(t)
			dc.SetPixel(col, n-1-row, gg.RGB(c.R, c.G, c.B))
		}
	}
	return dc
}

// WritePNG writes a colour-mapped preview of the image.
func WritePNG(path string, img *renderer.Image, observable string) error {
	dc := Preview(img, observable, Inferno())
	defer dc.Close()
	return atomicWrite(path, func(f *os.File) error {
		return dc.EncodePNG(f)
	})
}

// EncodePNG writes a colour-mapped preview to w.
func EncodePNG(w io.Writer, img *renderer.Image, observable string) error {
	dc := Preview(img, observable, Inferno())
	defer dc.Close()
	return dc.EncodePNG(w)
}
