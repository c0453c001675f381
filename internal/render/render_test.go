package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/kettek/apng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youruser/pfpapp/internal/apperror"
	imagepkg "github.com/youruser/pfpapp/internal/image"
	"github.com/youruser/pfpapp/internal/pfp"
	"github.com/youruser/pfpapp/internal/util"
)

// MockFetcher serves canned bodies by URL; unknown URLs are a 404.
type MockFetcher struct {
	mu     sync.Mutex
	Bodies map[string][]byte
	Calls  []string
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, url)
	if b, ok := m.Bodies[url]; ok {
		return b, nil
	}
	return nil, &util.StatusError{URL: url, StatusCode: 404}
}

var assets = pfp.Assets{
	CDNBase:          "https://cdn.test",
	DefaultAvatarURL: "https://cdn.test/embed/avatars/0.png",
}

func avatarPNG(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func decorationGIF(t *testing.T, frames int, delay int) []byte {
	t.Helper()
	pal := color.Palette{color.RGBA{}, color.RGBA{B: 0xff, A: 0xff}, color.RGBA{G: 0xff, A: 0xff}}
	g := &gif.GIF{Config: image.Config{ColorModel: pal, Width: 32, Height: 32}}
	for i := 0; i < frames; i++ {
		f := image.NewPaletted(image.Rect(0, 0, 32, 32), pal)
		for x := 0; x < 32; x++ {
			f.SetColorIndex(x, 0, uint8(1+i%2))
			f.SetColorIndex(x, 1, uint8(1+i%2))
		}
		g.Image = append(g.Image, f)
		g.Delay = append(g.Delay, delay)
		g.Disposal = append(g.Disposal, gif.DisposalBackground)
	}
	buf := new(bytes.Buffer)
	require.NoError(t, gif.EncodeAll(buf, g))
	return buf.Bytes()
}

func resolve(t *testing.T, p pfp.Params) pfp.RenderRequest {
	t.Helper()
	req, err := pfp.Resolve(p, assets)
	require.NoError(t, err)
	return req
}

func newRenderer(f imagepkg.Fetcher) *Renderer {
	return NewRenderer(f, 80*time.Millisecond, time.Hour)
}

func TestRenderStatic(t *testing.T) {
	avatarURL := pfp.AvatarURL(assets.CDNBase, "u1", "h1", 512)
	f := &MockFetcher{Bodies: map[string][]byte{avatarURL: avatarPNG(t, color.NRGBA{R: 0xff, A: 0xff})}}

	res, err := newRenderer(f).Render(context.Background(), resolve(t, pfp.Params{UserID: "u1", AvatarHash: "h1", Size: "512"}))
	require.NoError(t, err)

	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, time.Hour, res.MaxAge)
	assert.Equal(t, 1, res.Frames)

	img, err := png.Decode(bytes.NewReader(res.Body))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 512, 512), img.Bounds())

	c := color.NRGBAModel.Convert(img.At(256, 256)).(color.NRGBA)
	assert.Equal(t, uint8(0xff), c.A)
	assert.Equal(t, uint8(0xff), c.R)
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a)
}

func TestRenderMissingAvatar(t *testing.T) {
	f := &MockFetcher{}
	_, err := newRenderer(f).Render(context.Background(), pfp.RenderRequest{CanvasSize: 512, DecorationURL: "https://cdn.test/d.png"})

	assert.True(t, errors.Is(err, apperror.ErrMissingAvatar))
	assert.Empty(t, f.Calls, "nothing may be fetched")
}

func TestRenderAvatarUnavailable(t *testing.T) {
	f := &MockFetcher{}
	_, err := newRenderer(f).Render(context.Background(), resolve(t, pfp.Params{UserID: "u1", AvatarHash: "h1"}))

	assert.True(t, errors.Is(err, apperror.ErrAvatarUnavailable))
	var statusErr *util.StatusError
	assert.True(t, errors.As(err, &statusErr))
}

func TestRenderAvatarUndecodable(t *testing.T) {
	req := resolve(t, pfp.Params{UserID: "u1", AvatarHash: "h1"})
	f := &MockFetcher{Bodies: map[string][]byte{req.AvatarURL: []byte("definitely not an image")}}

	_, err := newRenderer(f).Render(context.Background(), req)
	assert.True(t, errors.Is(err, apperror.ErrRenderFailed))
}

func TestRenderDecorationDegradesGracefully(t *testing.T) {
	plain := resolve(t, pfp.Params{UserID: "u1", AvatarHash: "h1", Size: "256"})
	decorated := resolve(t, pfp.Params{UserID: "u1", AvatarHash: "h1", Size: "256", DecorationID: "bad-id"})
	avatar := avatarPNG(t, color.NRGBA{G: 0x80, A: 0xff})

	f := &MockFetcher{Bodies: map[string][]byte{plain.AvatarURL: avatar}}
	want, err := newRenderer(f).Render(context.Background(), plain)
	require.NoError(t, err)

	t.Run("fetch failure", func(t *testing.T) {
		got, err := newRenderer(f).Render(context.Background(), decorated)
		require.NoError(t, err)
		assert.Equal(t, want.ContentType, got.ContentType)
		assert.Equal(t, want.Body, got.Body)
	})

	t.Run("undecodable body", func(t *testing.T) {
		g := &MockFetcher{Bodies: map[string][]byte{
			plain.AvatarURL:         avatar,
			decorated.DecorationURL: []byte("<html>oops</html>"),
		}}
		got, err := newRenderer(g).Render(context.Background(), decorated)
		require.NoError(t, err)
		assert.Equal(t, want.Body, got.Body)
	})
}

func TestRenderStaticDecoration(t *testing.T) {
	req := resolve(t, pfp.Params{UserID: "u1", AvatarHash: "h1", Size: "128", DecorationID: "d1"})

	deco := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 4; y++ {
			deco.SetNRGBA(x, y, color.NRGBA{B: 0xff, A: 0xff})
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, deco))

	f := &MockFetcher{Bodies: map[string][]byte{
		req.AvatarURL:     avatarPNG(t, color.NRGBA{R: 0xff, A: 0xff}),
		req.DecorationURL: buf.Bytes(),
	}}
	res, err := newRenderer(f).Render(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.ContentType)

	img, err := png.Decode(bytes.NewReader(res.Body))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{B: 0xff, A: 0xff}, color.NRGBAModel.Convert(img.At(3, 2)))
	assert.Equal(t, uint8(0xff), color.NRGBAModel.Convert(img.At(64, 64)).(color.NRGBA).R)
	assert.ElementsMatch(t, []string{req.AvatarURL, req.DecorationURL}, f.Calls)
}

func decorationAPNG(t *testing.T, frames int, delay time.Duration) []byte {
	t.Helper()
	a := apng.APNG{}
	for i := 0; i < frames; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
		c := color.NRGBA{B: 0xff, A: 0xff}
		if i%2 == 1 {
			c = color.NRGBA{G: 0xff, A: 0xff}
		}
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, 0, c)
			img.SetNRGBA(x, 1, c)
		}
		a.Frames = append(a.Frames, apng.Frame{
			Image:            img,
			DelayNumerator:   uint16(delay / time.Millisecond),
			DelayDenominator: 1000,
			BlendOp:          apng.BLEND_OP_SOURCE,
		})
	}
	buf := new(bytes.Buffer)
	require.NoError(t, apng.Encode(buf, a))
	return buf.Bytes()
}

func frameDelays(a apng.APNG) []time.Duration {
	out := make([]time.Duration, len(a.Frames))
	for i, f := range a.Frames {
		den := f.DelayDenominator
		if den == 0 {
			den = 100
		}
		out[i] = time.Duration(f.DelayNumerator) * time.Second / time.Duration(den)
	}
	return out
}

func TestRenderAnimatedDecoration(t *testing.T) {
	tests := []struct {
		name string
		deco func(t *testing.T) []byte
	}{
		{"gif", func(t *testing.T) []byte { return decorationGIF(t, 5, 8) }},
		{"apng", func(t *testing.T) []byte { return decorationAPNG(t, 5, 80*time.Millisecond) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := resolve(t, pfp.Params{UserID: "u1", AvatarHash: "h1", Size: "128", DecorationID: "anim"})
			f := &MockFetcher{Bodies: map[string][]byte{
				req.AvatarURL:     avatarPNG(t, color.NRGBA{R: 0xff, A: 0xff}),
				req.DecorationURL: tt.deco(t),
			}}

			res, err := newRenderer(f).Render(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, "image/apng", res.ContentType)
			assert.Equal(t, 5, res.Frames)

			a, err := apng.DecodeAll(bytes.NewReader(res.Body))
			require.NoError(t, err)
			require.Len(t, a.Frames, 5)
			assert.Equal(t, []time.Duration{80 * time.Millisecond, 80 * time.Millisecond, 80 * time.Millisecond, 80 * time.Millisecond, 80 * time.Millisecond}, frameDelays(a))
			assert.Equal(t, uint(0), a.LoopCount)
			assert.Equal(t, 128, a.Frames[0].Image.Bounds().Dx())

			center := a.Frames[0].Image.At(64, 64)
			for i, frame := range a.Frames {
				assert.Equal(t, center, frame.Image.At(64, 64), "avatar differs in frame %d", i)
			}
			assert.NotEqual(t, a.Frames[0].Image.At(10, 1), a.Frames[1].Image.At(10, 1), "decoration should alternate")
		})
	}
}

func TestRenderAnimatedAvatarMatchesStatic(t *testing.T) {
	plain := resolve(t, pfp.Params{UserID: "u1", AvatarHash: "h1", Size: "128"})
	decorated := resolve(t, pfp.Params{UserID: "u1", AvatarHash: "h1", Size: "128", DecorationID: "anim"})

	// a gradient avatar exercises colors no fixed palette holds
	avatar := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			avatar.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 0x5a, A: 0xff})
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, avatar))

	f := &MockFetcher{Bodies: map[string][]byte{
		plain.AvatarURL:         buf.Bytes(),
		decorated.DecorationURL: decorationGIF(t, 3, 8),
	}}
	r := newRenderer(f)

	still, err := r.Render(context.Background(), plain)
	require.NoError(t, err)
	want, err := png.Decode(bytes.NewReader(still.Body))
	require.NoError(t, err)

	anim, err := r.Render(context.Background(), decorated)
	require.NoError(t, err)
	a, err := apng.DecodeAll(bytes.NewReader(anim.Body))
	require.NoError(t, err)
	require.Len(t, a.Frames, 3)

	for i, frame := range a.Frames {
		for _, p := range []image.Point{{64, 64}, {40, 80}, {90, 50}} {
			w := color.NRGBAModel.Convert(want.At(p.X, p.Y)).(color.NRGBA)
			g := color.NRGBAModel.Convert(frame.Image.At(p.X, p.Y)).(color.NRGBA)
			assert.InDelta(t, float64(w.R), float64(g.R), 2, "frame %d at %v", i, p)
			assert.InDelta(t, float64(w.G), float64(g.G), 2, "frame %d at %v", i, p)
			assert.InDelta(t, float64(w.B), float64(g.B), 2, "frame %d at %v", i, p)
			assert.Equal(t, w.A, g.A, "frame %d at %v", i, p)
		}
	}
}

func TestRenderAnimatedDecorationWithoutDelays(t *testing.T) {
	req := resolve(t, pfp.Params{UserID: "u1", AvatarHash: "h1", Size: "128", DecorationID: "anim"})
	f := &MockFetcher{Bodies: map[string][]byte{
		req.AvatarURL:     avatarPNG(t, color.NRGBA{R: 0xff, A: 0xff}),
		req.DecorationURL: decorationGIF(t, 3, 0),
	}}

	res, err := NewRenderer(f, 0, 0).Render(context.Background(), req)
	require.NoError(t, err)

	a, err := apng.DecodeAll(bytes.NewReader(res.Body))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{80 * time.Millisecond, 80 * time.Millisecond, 80 * time.Millisecond}, frameDelays(a))
}
