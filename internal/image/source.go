package imagepkg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/kettek/apng"
)

type disposal int

const (
	disposeNone disposal = iota
	disposeBackground
	disposePrevious
)

// sourceFrame is one encoded frame and where it lands on the logical screen.
type sourceFrame struct {
	img     image.Image
	rect    image.Rectangle
	over    bool // blend over the previous state instead of replacing it
	dispose disposal
}

// Source is a decoded upstream asset. A Source with more than one frame is
// animated.
type Source struct {
	MIME      string
	Width     int
	Height    int
	Delays    []time.Duration // one per frame, zero when the source has none
	LoopCount int             // number of plays, 0 loops forever

	still  image.Image
	frames []sourceFrame
}

func (s *Source) FrameCount() int {
	if len(s.frames) > 0 {
		return len(s.frames)
	}
	return 1
}

func (s *Source) Animated() bool {
	return s.FrameCount() > 1
}

// DecodeSource sniffs and decodes data. GIF and APNG keep every frame; other
// formats decode to a single frame.
func DecodeSource(data []byte) (*Source, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("not an image: %s", mt.String())
	}

	var (
		s   *Source
		err error
	)
	switch {
	case mt.Is("image/gif"):
		s, err = decodeGIF(data)
	case mt.Is("image/vnd.mozilla.apng"):
		s, err = decodeAPNG(data)
	case mt.Is("image/png"):
		// plain PNGs carry no animation chunks but decode the same way
		if s, err = decodeAPNG(data); err != nil {
			s, err = decodeStill(data)
		}
	default:
		s, err = decodeStill(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", mt.String(), err)
	}
	s.MIME = mt.String()

	// a single frame is placed on the logical screen once, up front
	if len(s.frames) == 1 {
		frames, err := s.Frames()
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", mt.String(), err)
		}
		s.still = frames[0]
		s.frames = nil
	}
	return s, nil
}

func decodeStill(data []byte) (*Source, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &Source{Width: b.Dx(), Height: b.Dy(), Delays: []time.Duration{0}, still: img}, nil
}

func decodeGIF(data []byte) (*Source, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, errors.New("gif has no frames")
	}

	s := &Source{
		Width:  g.Config.Width,
		Height: g.Config.Height,
		Delays: make([]time.Duration, len(g.Image)),
		frames: make([]sourceFrame, len(g.Image)),
	}
	// GIF counts extra loops and uses -1 for "play once"
	switch {
	case g.LoopCount < 0:
		s.LoopCount = 1
	case g.LoopCount > 0:
		s.LoopCount = g.LoopCount + 1
	}

	var screen image.Rectangle
	for i, f := range g.Image {
		screen = screen.Union(f.Bounds())
		if i < len(g.Delay) {
			s.Delays[i] = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		d := disposeNone
		if i < len(g.Disposal) {
			switch g.Disposal[i] {
			case gif.DisposalBackground:
				d = disposeBackground
			case gif.DisposalPrevious:
				d = disposePrevious
			}
		}
		s.frames[i] = sourceFrame{img: f, rect: f.Bounds(), over: true, dispose: d}
	}
	if s.Width == 0 || s.Height == 0 {
		s.Width, s.Height = screen.Max.X, screen.Max.Y
	}
	return s, nil
}

func decodeAPNG(data []byte) (*Source, error) {
	a, err := apng.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	// the default image is not shown when it sits outside the animation
	frames := make([]apng.Frame, 0, len(a.Frames))
	for _, f := range a.Frames {
		if !f.IsDefault {
			frames = append(frames, f)
		}
	}
	if len(frames) == 0 {
		frames = a.Frames
	}
	if len(frames) == 0 {
		return nil, errors.New("png has no frames")
	}

	s := &Source{
		LoopCount: int(a.LoopCount),
		Delays:    make([]time.Duration, len(frames)),
		frames:    make([]sourceFrame, len(frames)),
	}
	var screen image.Rectangle
	for i, f := range frames {
		b := f.Image.Bounds()
		rect := image.Rect(f.XOffset, f.YOffset, f.XOffset+b.Dx(), f.YOffset+b.Dy())
		screen = screen.Union(rect)

		d := disposeNone
		switch f.DisposeOp {
		case apng.DISPOSE_OP_BACKGROUND:
			d = disposeBackground
		case apng.DISPOSE_OP_PREVIOUS:
			d = disposePrevious
		}
		s.frames[i] = sourceFrame{img: f.Image, rect: rect, over: f.BlendOp == apng.BLEND_OP_OVER, dispose: d}
		s.Delays[i] = apngDelay(f.DelayNumerator, f.DelayDenominator)
	}
	// the default image defines the canvas
	b := a.Frames[0].Image.Bounds()
	s.Width, s.Height = b.Dx(), b.Dy()
	if s.Width == 0 || s.Height == 0 {
		s.Width, s.Height = screen.Max.X, screen.Max.Y
	}
	return s, nil
}

// apngDelay converts num/den seconds; a zero denominator means 1/100 s.
func apngDelay(num, den uint16) time.Duration {
	if den == 0 {
		den = 100
	}
	return time.Duration(num) * time.Second / time.Duration(den)
}

// Image returns the still image of a single-frame source, or the first frame
// of an animated one.
func (s *Source) Image() image.Image {
	if s.still != nil {
		return s.still
	}
	return s.frames[0].img
}

// Frames returns every frame as a full Width x Height image, with
// sub-rectangles, blending and disposal already applied.
func (s *Source) Frames() ([]image.Image, error) {
	if len(s.frames) == 0 {
		return []image.Image{s.still}, nil
	}

	screen := image.Rect(0, 0, s.Width, s.Height)
	if screen.Empty() {
		return nil, errors.New("empty logical screen")
	}
	acc := image.NewNRGBA(screen)
	out := make([]image.Image, 0, len(s.frames))

	for i, f := range s.frames {
		if f.img == nil || f.rect.Empty() || !f.rect.In(screen) {
			return nil, fmt.Errorf("frame %d: bounds %v outside %v", i, f.rect, screen)
		}

		var saved *image.NRGBA
		if f.dispose == disposePrevious {
			saved = imaging.Clone(acc)
		}

		op := draw.Src
		if f.over {
			op = draw.Over
		}
		draw.Draw(acc, f.rect, f.img, f.img.Bounds().Min, op)
		out = append(out, imaging.Clone(acc))

		switch f.dispose {
		case disposeBackground:
			draw.Draw(acc, f.rect, image.Transparent, image.Point{}, draw.Src)
		case disposePrevious:
			acc = saved
		}
	}
	return out, nil
}
