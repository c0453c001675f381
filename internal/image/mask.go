package imagepkg

import (
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// masks memoizes circle masks by diameter for the life of the process.
var masks sync.Map // int -> *image.Alpha

// MaskFor returns the circle mask of diameter d. The result is shared and
// must not be modified.
func MaskFor(d int) *image.Alpha {
	if d <= 0 {
		return image.NewAlpha(image.Rectangle{})
	}
	if m, ok := masks.Load(d); ok {
		return m.(*image.Alpha)
	}
	m, _ := masks.LoadOrStore(d, circleMask(d))
	return m.(*image.Alpha)
}

// circleMask is opaque where (x-c)^2 + (y-c)^2 <= r^2 with c = (d-1)/2 and
// r = d/2, transparent elsewhere.
func circleMask(d int) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, d, d))
	c := float64(d-1) / 2
	r := float64(d) / 2
	r2 := r * r
	for y := 0; y < d; y++ {
		dy := float64(y) - c
		row := m.Pix[y*m.Stride : y*m.Stride+d]
		for x := range row {
			dx := float64(x) - c
			if dx*dx+dy*dy <= r2 {
				row[x] = 0xff
			}
		}
	}
	return m
}

// ApplyMask returns a copy of img whose alpha is multiplied by the mask.
// Pixels the mask does not cover become transparent.
func ApplyMask(img image.Image, mask *image.Alpha) *image.NRGBA {
	dst := imaging.Clone(img)
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := uint16(mask.AlphaAt(x, y).A)
			i := dst.PixOffset(x, y) + 3
			dst.Pix[i] = uint8(uint16(dst.Pix[i]) * a / 0xff)
		}
	}
	return dst
}
