package renderer

import (
	"fmt"
	"image"
	"sync"

	"github.com/linuxmatters/glowbeat/internal/config"
	"github.com/linuxmatters/glowbeat/internal/errs"
)

// Options selects the per-frame effects.
type Options struct {
	Glow     bool   // Brighten the background by the frame's frequency
	Resize   bool   // Grow the logo as the frequency falls
	Overflow string // config.OverflowReject (default) or config.OverflowClamp
}

// logo is one size of the foreground with its precomputed keep-background mask.
type logo struct {
	img  *image.RGBA
	mask []bool // true where the background shows through
}

// Compositor draws the logo over the background for a given frequency.
// It is safe for concurrent use; every call to Composite returns a new image.
type Compositor struct {
	opts Options

	background *image.RGBA
	hsv        *hsvImage    // background planes, only with Glow
	unboosted  *image.RGBA // background after an HSV round trip, only with Glow

	mu    sync.Mutex
	logos map[int]*logo
}

// NewCompositor prepares background and foreground for repeated compositing.
// The foreground is resized to a BaseLogoSize square; alpha is ignored.
func NewCompositor(background, foreground image.Image, opts Options) (*Compositor, error) {
	if background == nil || foreground == nil {
		return nil, fmt.Errorf("%w: background and foreground are required", errs.ErrInvalidConfig)
	}
	switch opts.Overflow {
	case "":
		opts.Overflow = config.OverflowReject
	case config.OverflowReject, config.OverflowClamp:
	default:
		return nil, fmt.Errorf("%w: unknown overflow policy %q", errs.ErrInvalidConfig, opts.Overflow)
	}
	if background.Bounds().Empty() || foreground.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", errs.ErrDimension)
	}

	c := &Compositor{
		opts:       opts,
		background: toOpaqueRGBA(background),
		logos:      make(map[int]*logo),
	}

	base := scaleSquare(toOpaqueRGBA(foreground), config.BaseLogoSize)
	c.logos[config.BaseLogoSize] = newLogo(base)

	if opts.Glow {
		c.hsv = newHSVImage(c.background)
		c.unboosted = c.hsv.render(0)
	}
	return c, nil
}

func newLogo(img *image.RGBA) *logo {
	b := img.Bounds()
	l := &logo{img: img, mask: make([]bool, b.Dx()*b.Dy())}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := y*img.Stride + x*4
			l.mask[y*b.Dx()+x] = gray(img.Pix[i], img.Pix[i+1], img.Pix[i+2]) > config.MaskThreshold
		}
	}
	return l
}

// gray is the BT.601 luma in 14-bit fixed point, rounded.
func gray(r, g, b uint8) int {
	return (int(r)*4899 + int(g)*9617 + int(b)*1868 + 1<<13) >> 14
}

// LogoSize returns the side of the logo square for freq. Zero and
// negative frequencies behave like 1 Hz.
func LogoSize(freq int) int {
	if freq <= 0 {
		freq = 1
	}
	return config.BaseLogoSize + 2*(config.ResizeNumerator/freq)
}

// Bounds returns the size of every frame.
func (c *Compositor) Bounds() image.Rectangle {
	return c.background.Bounds()
}

// logoFor returns the (cached) logo variant for freq.
func (c *Compositor) logoFor(freq int) *logo {
	size := config.BaseLogoSize
	if c.opts.Resize {
		size = LogoSize(freq)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.logos[size]; ok {
		return l
	}
	l := newLogo(scaleSquare(c.logos[config.BaseLogoSize].img, size))
	c.logos[size] = l
	return l
}

// Composite renders the frame for freqHz.
func (c *Compositor) Composite(freqHz int) (*image.RGBA, error) {
	var frame *image.RGBA
	switch {
	case !c.opts.Glow:
		frame = cloneRGBA(c.background)
	case freqHz <= 0 || freqHz > 255:
		frame = cloneRGBA(c.unboosted)
	default:
		frame = c.hsv.render(freqHz)
	}

	l := c.logoFor(freqHz)
	if err := c.merge(frame, l); err != nil {
		return nil, err
	}
	return frame, nil
}

// merge writes l into the centre of frame wherever its mask is false.
// A logo with an odd side covers 2*(side/2) pixels from its top-left.
func (c *Compositor) merge(frame *image.RGBA, l *logo) error {
	bw, bh := frame.Rect.Dx(), frame.Rect.Dy()
	lw, lh := l.img.Rect.Dx(), l.img.Rect.Dy()
	cx, cy := bw/2, bh/2
	hw, hh := lw/2, lh/2

	roi := image.Rect(cx-hw, cy-hh, cx+hw, cy+hh)
	bounds := image.Rect(0, 0, bw, bh)
	if !roi.In(bounds) {
		if c.opts.Overflow != config.OverflowClamp {
			return fmt.Errorf("%w: %dx%d logo does not fit %dx%d background", errs.ErrDimension, lw, lh, bw, bh)
		}
	}
	clipped := roi.Intersect(bounds)
	if clipped.Empty() {
		return nil
	}

	// Offset from frame coordinates to logo coordinates
	ox, oy := roi.Min.X, roi.Min.Y

	for y := clipped.Min.Y; y < clipped.Max.Y; y++ {
		ly := y - oy
		for x := clipped.Min.X; x < clipped.Max.X; x++ {
			lx := x - ox
			if l.mask[ly*lw+lx] {
				continue
			}
			s := ly*l.img.Stride + lx*4
			d := y*frame.Stride + x*4
			copy(frame.Pix[d:d+3], l.img.Pix[s:s+3])
		}
	}
	return nil
}
