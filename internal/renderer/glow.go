package renderer

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// hsvImage holds 8-bit HSV planes with hue in [0, 180) and saturation and
// value in [0, 255].
type hsvImage struct {
	rect    image.Rectangle
	h, s, v []uint8
}

// rgbToHSV8 converts one 8-bit RGB pixel to 8-bit HSV.
func rgbToHSV8(r, g, b uint8) (uint8, uint8, uint8) {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	h, s, v := c.Hsv()

	h8 := int(math.Round(h / 2))
	if h8 >= 180 {
		h8 -= 180
	}
	return uint8(h8), uint8(math.Round(s * 255)), uint8(math.Round(v * 255))
}

// hsv8ToRGB is the inverse of rgbToHSV8.
func hsv8ToRGB(h, s, v uint8) (uint8, uint8, uint8) {
	return colorful.Hsv(float64(h)*2, float64(s)/255, float64(v)/255).Clamped().RGB255()
}

func newHSVImage(img *image.RGBA) *hsvImage {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	out := &hsvImage{
		rect: b,
		h:    make([]uint8, n),
		s:    make([]uint8, n),
		v:    make([]uint8, n),
	}
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			i := y*b.Dx() + x
			out.h[i], out.s[i], out.v[i] = rgbToHSV8(row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return out
}

// render converts the planes back to RGB, adding boost to every value
// that stays within 255 after the addition. Values that would overflow
// are left as they are.
func (p *hsvImage) render(boost int) *image.RGBA {
	dst := image.NewRGBA(p.rect)
	limit := 255 - boost
	w := p.rect.Dx()

	for i := range p.v {
		v := p.v[i]
		if boost > 0 && int(v) <= limit {
			v += uint8(boost)
		}
		r, g, b := hsv8ToRGB(p.h[i], p.s[i], v)
		j := (i/w)*dst.Stride + (i%w)*4
		dst.Pix[j+0] = r
		dst.Pix[j+1] = g
		dst.Pix[j+2] = b
		dst.Pix[j+3] = 0xff
	}
	return dst
}
