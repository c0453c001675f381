package imagepkg

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Layout places a square avatar of side Inner at (X, Y) on a Size x Size
// canvas. X+Inner <= Size and Y+Inner <= Size always hold.
type Layout struct {
	Size  int
	Inner int
	X     int
	Y     int
	Round bool
}

// NewLayout centers the avatar horizontally and shifts it by dy vertically,
// keeping it inside the canvas.
func NewLayout(size int, scale float64, dy int, round bool) Layout {
	inner := int(math.Round(float64(size) * scale))
	if inner > size {
		inner = size
	}
	if inner < 1 {
		inner = 1
	}
	x := int(math.Round(float64(size-inner) / 2))
	if x+inner > size {
		x = size - inner
	}
	y := x + dy
	if y < 0 {
		y = 0
	}
	if y > size-inner {
		y = size - inner
	}
	return Layout{Size: size, Inner: inner, X: x, Y: y, Round: round}
}

// ComposeAvatar draws the avatar, cropped to a square, resized to l.Inner and
// optionally rounded, onto a transparent l.Size canvas.
func ComposeAvatar(avatar image.Image, l Layout) *image.NRGBA {
	a := imaging.Fill(avatar, l.Inner, l.Inner, imaging.Center, imaging.Lanczos)
	if l.Round {
		a = ApplyMask(a, MaskFor(l.Inner))
	}
	canvas := imaging.New(l.Size, l.Size, color.NRGBA{})
	return imaging.Overlay(canvas, a, image.Pt(l.X, l.Y), 1.0)
}

// LayerDecoration stretches deco over the whole canvas and composites it on
// top. canvas is left untouched.
func LayerDecoration(canvas *image.NRGBA, deco image.Image) *image.NRGBA {
	b := canvas.Bounds()
	d := imaging.Resize(deco, b.Dx(), b.Dy(), imaging.Lanczos)
	return imaging.Overlay(canvas, d, b.Min, 1.0)
}

// Compose is the single-frame render: avatar, then an optional decoration.
func Compose(avatar, decoration image.Image, l Layout) *image.NRGBA {
	canvas := ComposeAvatar(avatar, l)
	if decoration != nil {
		canvas = LayerDecoration(canvas, decoration)
	}
	return canvas
}
