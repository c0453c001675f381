package imagepkg

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
	"time"

	"github.com/kettek/apng"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.NRGBA{R: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0xff}
	green = color.NRGBA{G: 0xff, A: 0xff}
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// topBand is transparent except for an opaque band over the top quarter.
func topBand(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h/4; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

// animatedGIF builds a w x h GIF whose frame i has an opaque band of
// colors[i] over its top quarter and is transparent elsewhere.
func animatedGIF(t *testing.T, w, h int, colors []color.NRGBA, delays []int, loop int) []byte {
	t.Helper()
	pal := color.Palette{color.RGBA{}}
	for _, c := range colors {
		pal = append(pal, c)
	}
	g := &gif.GIF{LoopCount: loop, Config: image.Config{ColorModel: pal, Width: w, Height: h}}
	for i := range colors {
		f := image.NewPaletted(image.Rect(0, 0, w, h), pal)
		for y := 0; y < h/4; y++ {
			for x := 0; x < w; x++ {
				f.SetColorIndex(x, y, uint8(i+1))
			}
		}
		g.Image = append(g.Image, f)
		g.Delay = append(g.Delay, delays[i])
		g.Disposal = append(g.Disposal, gif.DisposalBackground)
	}
	buf := new(bytes.Buffer)
	require.NoError(t, gif.EncodeAll(buf, g))
	return buf.Bytes()
}

// animatedAPNG is the APNG counterpart of animatedGIF: frame i is a full
// canvas with a colors[i] band over its top quarter.
func animatedAPNG(t *testing.T, w, h int, colors []color.NRGBA, delays []time.Duration, loop uint) []byte {
	t.Helper()
	a := apng.APNG{LoopCount: loop}
	for i, c := range colors {
		a.Frames = append(a.Frames, apng.Frame{
			Image:            topBand(w, h, c),
			DelayNumerator:   uint16(delays[i] / time.Millisecond),
			DelayDenominator: 1000,
			DisposeOp:        apng.DISPOSE_OP_NONE,
			BlendOp:          apng.BLEND_OP_SOURCE,
		})
	}
	buf := new(bytes.Buffer)
	require.NoError(t, apng.Encode(buf, a))
	return buf.Bytes()
}
