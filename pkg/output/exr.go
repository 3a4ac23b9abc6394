package output

import (
	"io"
	"os"

	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/renderer"
	"github.com/mrjoshuak/go-openexr/exr"
)

// EXR channels: the observable at full float precision and the termination
// status of each pixel's geodesic.
const (
	ChannelValue  = "Y"
	ChannelStatus = "status"
)

// WriteEXR writes the image as a scanline EXR with β increasing upwards.
func WriteEXR(path string, img *renderer.Image) error {
	return atomicWrite(path, func(f *os.File) error {
		return EncodeEXR(f, img)
	})
}

// EncodeEXR encodes the image to w.
func EncodeEXR(w io.WriteSeeker, img *renderer.Image) error {
	n := img.Size
	h := exr.NewScanlineHeader(n, n)
	h.SetCompression(exr.CompressionZIP)

	channels := exr.NewChannelList()
	channels.Add(exr.Channel{Name: ChannelValue, Type: exr.PixelTypeFloat, XSampling: 1, YSampling: 1})
	channels.Add(exr.Channel{Name: ChannelStatus, Type: exr.PixelTypeFloat, XSampling: 1, YSampling: 1})
	h.SetChannels(channels)

	values := make([]float32, n*n)
	status := make([]float32, n*n)
	for row := 0; row < n; row++ {
		y := n - 1 - row
		for col := 0; col < n; col++ {
			p := img.At(row, col)
			values[y*n+col] = float32(p.Value)
			status[y*n+col] = statusCode(p)
		}
	}

	fb := exr.NewFrameBuffer()
	fb.Set(ChannelValue, exr.NewSliceFromFloat32(values, n, n))
	fb.Set(ChannelStatus, exr.NewSliceFromFloat32(status, n, n))

	sw, err := exr.NewScanlineWriter(w, h)
	if err != nil {
		return err
	}
	sw.SetFrameBuffer(fb)
	if err := sw.WritePixels(int(h.DataWindow().Min.Y), int(h.DataWindow().Max.Y)); err != nil {
		return err
	}
	return sw.Close()
}

// statusCode is the Status ordinal, negated for diverged rays.
func statusCode(p core.PixelResult) float32 {
	if p.Flags.Has(core.FlagDiverged) {
		return -float32(p.Status)
	}
	return float32(p.Status)
}
