package imagepkg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/kettek/apng"
)

const (
	ContentTypePNG  = "image/png"
	ContentTypeAPNG = "image/apng"
)

// Output is the finished raster: either *Static or *Animation.
type Output interface {
	ContentType() string
	isOutput()
}

type Static struct {
	Image *image.NRGBA
}

func (*Static) ContentType() string { return ContentTypePNG }

func (*Static) isOutput() {}

type Animation struct {
	Frames    []*image.NRGBA
	Delays    []time.Duration
	LoopCount int // number of plays, 0 loops forever
}

func (*Animation) ContentType() string { return ContentTypeAPNG }

func (*Animation) isOutput() {}

// Encode serializes out as PNG or animated PNG. Both are lossless.
func Encode(out Output) ([]byte, error) {
	buf := new(bytes.Buffer)
	switch o := out.(type) {
	case *Static:
		if o.Image == nil {
			return nil, errors.New("nothing to encode")
		}
		if err := imaging.Encode(buf, o.Image, imaging.PNG); err != nil {
			return nil, err
		}
	case *Animation:
		if err := encodeAPNG(buf, o); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported output %T", out)
	}
	return buf.Bytes(), nil
}

func encodeAPNG(buf *bytes.Buffer, a *Animation) error {
	if len(a.Frames) == 0 {
		return errors.New("animation has no frames")
	}
	if len(a.Delays) != len(a.Frames) {
		return fmt.Errorf("%d delays for %d frames", len(a.Delays), len(a.Frames))
	}
	if a.LoopCount < 0 {
		return fmt.Errorf("negative loop count %d", a.LoopCount)
	}

	b := a.Frames[0].Bounds()
	out := apng.APNG{
		Frames:    make([]apng.Frame, len(a.Frames)),
		LoopCount: uint(a.LoopCount),
	}
	for i, f := range a.Frames {
		if f.Bounds() != b {
			return fmt.Errorf("frame %d: bounds %v, want %v", i, f.Bounds(), b)
		}
		num, den := delayFraction(a.Delays[i])
		// every frame is a full canvas and replaces the previous one
		out.Frames[i] = apng.Frame{
			Image:            f,
			DelayNumerator:   num,
			DelayDenominator: den,
			DisposeOp:        apng.DISPOSE_OP_NONE,
			BlendOp:          apng.BLEND_OP_SOURCE,
		}
	}
	return apng.Encode(buf, out)
}

// delayFraction expresses d in milliseconds, falling back to centiseconds
// when the millisecond count does not fit the 16-bit numerator.
func delayFraction(d time.Duration) (num, den uint16) {
	ms := math.Round(float64(d) / float64(time.Millisecond))
	if ms <= math.MaxUint16 {
		return uint16(max(ms, 1)), 1000
	}
	cs := math.Round(float64(d) / float64(10*time.Millisecond))
	return uint16(min(cs, math.MaxUint16)), 100
}
