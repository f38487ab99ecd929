package renderer

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/linuxmatters/glowbeat/internal/errs"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// LoadImage decodes a PNG, JPEG, GIF, BMP or WebP file.
func LoadImage(filename string) (image.Image, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrIO, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image %s: %w", errs.ErrIO, filename, err)
	}
	return img, nil
}

// toOpaqueRGBA copies the colour channels of img into an opaque RGBA
// image with its origin at (0, 0). Alpha is discarded, not composited, so
// a transparent pixel keeps whatever colour it stores.
func toOpaqueRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			s := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*4]
			d := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()*4]
			copy(d, s)
			for i := 3; i < len(d); i += 4 {
				d[i] = 0xff
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				i := y*dst.Stride + x*4
				dst.Pix[i+0] = c.R
				dst.Pix[i+1] = c.G
				dst.Pix[i+2] = c.B
				dst.Pix[i+3] = 0xff
			}
		}
	}
	return dst
}

// scaleSquare resizes src to a size×size image. Each output pixel blends
// the 2×2 source neighbourhood around its centre with no prefilter, so
// shrinking a large logo keeps its hard mask edges.
func scaleSquare(src *image.RGBA, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	if src.Bounds().Dx() == size && src.Bounds().Dy() == size {
		copy(dst.Pix, src.Pix)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// cloneRGBA returns a deep copy of img.
func cloneRGBA(img *image.RGBA) *image.RGBA {
	dst := &image.RGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(dst.Pix, img.Pix)
	return dst
}
