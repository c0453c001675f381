package pfp

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/youruser/pfpapp/internal/apperror"
)

const (
	DefaultSize = 512
	MinSize     = 128
	MaxSize     = 1024

	DefaultScale = 0.85
	MinScale     = 0.6
	MaxScale     = 1.0
)

// Params are the raw query values, exactly as received.
type Params struct {
	UserID       string
	AvatarHash   string
	DecorationID string
	FallbackURL  string
	Size         string
	Scale        string
	OffsetY      string
	Round        string
}

// Assets describes where upstream images live.
type Assets struct {
	CDNBase               string
	DefaultAvatarURL      string
	DecorationPassthrough bool
}

// RenderRequest is the validated, clamped input of one render.
type RenderRequest struct {
	UserID            string
	AvatarHash        string
	DecorationID      string
	FallbackAvatarURL string

	CanvasSize     int
	AvatarScale    float64
	VerticalOffset int
	RoundAvatar    bool

	AvatarURL     string
	DecorationURL string
}

func (r RenderRequest) HasDecoration() bool {
	return r.DecorationURL != ""
}

// Resolve turns raw parameters into a RenderRequest. Malformed numeric values
// fall back to their defaults; the only error is apperror.ErrMissingAvatar.
func Resolve(p Params, a Assets) (RenderRequest, error) {
	req := RenderRequest{
		UserID:            strings.TrimSpace(p.UserID),
		AvatarHash:        strings.TrimSpace(p.AvatarHash),
		DecorationID:      strings.TrimSpace(p.DecorationID),
		FallbackAvatarURL: strings.TrimSpace(p.FallbackURL),
	}

	size, err := parseInt("size", p.Size, DefaultSize)
	if err != nil {
		logRecovered(err)
	}
	req.CanvasSize = ClampSize(size)

	scale, err := parseFloat("avatarScale", p.Scale, DefaultScale)
	if err != nil {
		logRecovered(err)
	}
	req.AvatarScale = ClampScale(scale)

	dy, err := parseInt("avatarDy", p.OffsetY, 0)
	if err != nil {
		logRecovered(err)
	}
	req.VerticalOffset = ClampOffset(dy, req.CanvasSize)

	req.RoundAvatar = parseRound(p.Round)

	avatarURL, err := avatarURL(req, a)
	if err != nil {
		return RenderRequest{}, err
	}
	req.AvatarURL = avatarURL

	if req.DecorationID != "" {
		req.DecorationURL = DecorationURL(a.CDNBase, req.DecorationID, req.CanvasSize, a.DecorationPassthrough)
	}
	return req, nil
}

func avatarURL(req RenderRequest, a Assets) (string, error) {
	if req.UserID != "" && req.AvatarHash != "" {
		return AvatarURL(a.CDNBase, req.UserID, req.AvatarHash, req.CanvasSize), nil
	}
	if req.FallbackAvatarURL != "" {
		u, err := normalizeHTTPURL(req.FallbackAvatarURL)
		if err == nil {
			return u, nil
		}
		logRecovered(err)
	}
	// The default asset stands in for a user without a custom avatar. A request
	// that names nobody at all has no avatar source.
	if (req.UserID != "" || req.AvatarHash != "") && a.DefaultAvatarURL != "" {
		return a.DefaultAvatarURL, nil
	}
	return "", apperror.MissingAvatar()
}

// AvatarURL addresses a user's avatar at the CDN size matching canvasSize.
func AvatarURL(cdnBase, userID, avatarHash string, canvasSize int) string {
	return fmt.Sprintf("%s/avatars/%s/%s.png?size=%d",
		strings.TrimRight(cdnBase, "/"),
		url.PathEscape(userID),
		url.PathEscape(avatarHash),
		AssetSize(canvasSize))
}

// DecorationURL addresses a decoration preset at the CDN size matching
// canvasSize. passthrough=true asks the CDN for the animated original.
func DecorationURL(cdnBase, decorationID string, canvasSize int, passthrough bool) string {
	return fmt.Sprintf("%s/avatar-decoration-presets/%s.png?size=%d&passthrough=%t",
		strings.TrimRight(cdnBase, "/"),
		url.PathEscape(decorationID),
		AssetSize(canvasSize),
		passthrough)
}

// AssetSize is the smallest power of two >= canvasSize; the CDN only serves
// power-of-two sizes.
func AssetSize(canvasSize int) int {
	n := 1
	for n < canvasSize {
		n <<= 1
	}
	return n
}

func ClampSize(size int) int {
	return clampInt(size, MinSize, MaxSize)
}

// ClampScale bounds scale to [MinScale, MaxScale]; NaN and ±Inf fall back
// to DefaultScale.
func ClampScale(scale float64) float64 {
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return DefaultScale
	}
	return math.Min(math.Max(scale, MinScale), MaxScale)
}

// ClampOffset bounds dy to ±floor(size*0.2).
func ClampOffset(dy, size int) int {
	limit := size / 5
	return clampInt(dy, -limit, limit)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func parseInt(field, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, apperror.InvalidParameter(field, raw, err)
	}
	return v, nil
}

func parseFloat(field, raw string, def float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, apperror.InvalidParameter(field, raw, err)
	}
	return v, nil
}

func parseRound(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw != "0" && !strings.EqualFold(raw, "false")
}

// normalizeHTTPURL accepts only absolute http and https URLs with a host.
func normalizeHTTPURL(s string) (string, error) {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return "", apperror.InvalidParameter("def", s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", apperror.InvalidParameter("def", s, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return "", apperror.InvalidParameter("def", s, fmt.Errorf("missing host"))
	}
	return u.String(), nil
}

func logRecovered(err error) {
	log.Debug().Str("module", "pfp").Err(err).Msg("parameter replaced by default")
}
