package render

import (
	"context"
	"image"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/youruser/pfpapp/internal/apperror"
	imagepkg "github.com/youruser/pfpapp/internal/image"
	"github.com/youruser/pfpapp/internal/pfp"
)

// DefaultFrameDelay is used for animation frames whose source carries no
// delay.
const DefaultFrameDelay = 80 * time.Millisecond

// Result is an encoded image ready to be written to a client.
type Result struct {
	Body        []byte
	ContentType string
	MaxAge      time.Duration
	Frames      int
}

type Renderer struct {
	Fetcher           imagepkg.Fetcher
	DefaultFrameDelay time.Duration
	CacheMaxAge       time.Duration
}

func NewRenderer(f imagepkg.Fetcher, defaultFrameDelay, cacheMaxAge time.Duration) *Renderer {
	if defaultFrameDelay <= 0 {
		defaultFrameDelay = DefaultFrameDelay
	}
	return &Renderer{
		Fetcher:           f,
		DefaultFrameDelay: defaultFrameDelay,
		CacheMaxAge:       cacheMaxAge,
	}
}

// Render fetches the avatar and decoration concurrently, composites them and
// encodes the result. Decoration problems degrade to an undecorated image,
// except a failure while expanding an animated decoration.
func (r *Renderer) Render(ctx context.Context, req pfp.RenderRequest) (*Result, error) {
	if req.AvatarURL == "" {
		return nil, apperror.MissingAvatar()
	}

	var (
		avatarData []byte
		deco       *imagepkg.Source
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := r.Fetcher.Fetch(gctx, req.AvatarURL)
		if err != nil {
			return apperror.AvatarUnavailable(err)
		}
		avatarData = b
		return nil
	})
	if req.HasDecoration() {
		g.Go(func() error {
			src, err := r.fetchDecoration(gctx, req.DecorationURL)
			if err != nil {
				log.Ctx(ctx).Warn().Str("module", "render").Str("url", req.DecorationURL).Err(err).Msg("rendering without decoration")
				return nil
			}
			deco = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	avatar, err := imagepkg.DecodeImage(avatarData)
	if err != nil {
		return nil, apperror.RenderFailed("failed to decode avatar", err)
	}

	out, err := r.composite(avatar, deco, req)
	if err != nil {
		return nil, err
	}

	body, err := imagepkg.Encode(out)
	if err != nil {
		return nil, apperror.EncodeFailed(err)
	}

	frames := 1
	if a, ok := out.(*imagepkg.Animation); ok {
		frames = len(a.Frames)
	}
	log.Ctx(ctx).Debug().Str("module", "render").
		Str("content_type", out.ContentType()).
		Int("frames", frames).
		Int("bytes", len(body)).
		Msg("rendered")
	return &Result{
		Body:        body,
		ContentType: out.ContentType(),
		MaxAge:      r.CacheMaxAge,
		Frames:      frames,
	}, nil
}

func (r *Renderer) fetchDecoration(ctx context.Context, url string) (*imagepkg.Source, error) {
	b, err := r.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, apperror.DecorationUnavailable(err)
	}
	src, err := imagepkg.DecodeSource(b)
	if err != nil {
		return nil, apperror.DecorationUnavailable(err)
	}
	return src, nil
}

func (r *Renderer) composite(avatar image.Image, deco *imagepkg.Source, req pfp.RenderRequest) (imagepkg.Output, error) {
	layout := imagepkg.NewLayout(req.CanvasSize, req.AvatarScale, req.VerticalOffset, req.RoundAvatar)

	if deco == nil || !deco.Animated() {
		var d image.Image
		if deco != nil {
			d = deco.Image()
		}
		return &imagepkg.Static{Image: imagepkg.Compose(avatar, d, layout)}, nil
	}

	background := imagepkg.ComposeAvatar(avatar, layout)
	anim, err := imagepkg.Expand(background, deco, r.DefaultFrameDelay)
	if err != nil {
		return nil, apperror.DecorationRenderFailed(err)
	}
	return anim, nil
}
