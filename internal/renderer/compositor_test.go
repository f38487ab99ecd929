package renderer

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/linuxmatters/glowbeat/internal/config"
	"github.com/linuxmatters/glowbeat/internal/errs"
)

// uniform returns a w×h image filled with c.
func uniform(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// gradient returns a w×h image whose colours vary by position.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x), uint8(y), uint8(x + y), 255})
		}
	}
	return img
}

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
)

func rgbAt(img *image.RGBA, x, y int) [3]uint8 {
	i := img.PixOffset(x, y)
	return [3]uint8{img.Pix[i], img.Pix[i+1], img.Pix[i+2]}
}

func TestLogoSize(t *testing.T) {
	tests := []struct {
		freq int
		want int
	}{
		{-5, 700},
		{0, 700},
		{1, 700},
		{2, 500},
		{3, 432},
		{100, 304},
		{200, 302},
		{201, 300},
		{20000, 300},
	}

	for _, tt := range tests {
		if got := LogoSize(tt.freq); got != tt.want {
			t.Errorf("LogoSize(%d) = %d, want %d", tt.freq, got, tt.want)
		}
	}
	if LogoSize(0) != LogoSize(1) {
		t.Error("LogoSize(0) should equal LogoSize(1)")
	}
}

// TestWhiteLogoIsInvisible checks that an all-white logo lets the whole
// background through for every effect combination without glow.
func TestWhiteLogoIsInvisible(t *testing.T) {
	bg := gradient(800, 800)
	c, err := NewCompositor(bg, uniform(64, 64, white), Options{Resize: true})
	if err != nil {
		t.Fatalf("NewCompositor() error: %v", err)
	}

	for _, freq := range []int{0, 1, 5, 440, 10000} {
		frame, err := c.Composite(freq)
		if err != nil {
			t.Fatalf("Composite(%d) error: %v", freq, err)
		}
		for i := range bg.Pix {
			if frame.Pix[i] != bg.Pix[i] {
				t.Fatalf("freq %d: byte %d = %d, want background %d", freq, i, frame.Pix[i], bg.Pix[i])
			}
		}
	}
}

func TestBlackLogoCentred(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		x0, y0 int // expected top-left of the logo
	}{
		{"even background", 800, 600, 250, 150},
		{"odd background", 401, 401, 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCompositor(uniform(tt.w, tt.h, white), uniform(10, 10, black), Options{})
			if err != nil {
				t.Fatalf("NewCompositor() error: %v", err)
			}
			frame, err := c.Composite(440)
			if err != nil {
				t.Fatalf("Composite() error: %v", err)
			}

			if frame.Bounds() != image.Rect(0, 0, tt.w, tt.h) {
				t.Fatalf("frame bounds %v, want %dx%d", frame.Bounds(), tt.w, tt.h)
			}

			size := config.BaseLogoSize
			inside := [][2]int{{tt.x0, tt.y0}, {tt.x0 + size - 1, tt.y0 + size - 1}, {tt.w / 2, tt.h / 2}}
			outside := [][2]int{{tt.x0 - 1, tt.y0}, {tt.x0, tt.y0 - 1}, {tt.x0 + size, tt.y0}, {tt.x0, tt.y0 + size}}

			for _, p := range inside {
				if got := rgbAt(frame, p[0], p[1]); got != [3]uint8{0, 0, 0} {
					t.Errorf("pixel %v = %v, want logo black", p, got)
				}
			}
			for _, p := range outside {
				if got := rgbAt(frame, p[0], p[1]); got != [3]uint8{255, 255, 255} {
					t.Errorf("pixel %v = %v, want background white", p, got)
				}
			}
		})
	}
}

// TestOddLogoUsesTopLeft merges a 301px logo directly: the region spans
// 300px and the logo's last row and column are dropped.
// TestScaleSquareNoPrefilter halves a logo of two-pixel stripes. Sampling
// only the 2×2 neighbourhood keeps every stripe pure black or white.
func TestScaleSquareNoPrefilter(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := white
			if x%4 >= 2 {
				c = black
			}
			src.SetRGBA(x, y, c)
		}
	}

	dst := scaleSquare(src, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := rgb(255, 255, 255)
			if x%2 == 1 {
				want = rgb(0, 0, 0)
			}
			if got := rgbAt(dst, x, y); got != want {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestOddLogoUsesTopLeft(t *testing.T) {
	frame := uniform(400, 400, white)
	src := uniform(301, 301, black)
	for i := 0; i < 301; i++ {
		// Marked last row and column must never reach the frame
		src.SetRGBA(300, i, color.RGBA{1, 2, 3, 255})
		src.SetRGBA(i, 300, color.RGBA{1, 2, 3, 255})
	}

	c := &Compositor{opts: Options{Overflow: config.OverflowReject}}
	if err := c.merge(frame, newLogo(src)); err != nil {
		t.Fatalf("merge() error: %v", err)
	}

	if got := rgbAt(frame, 50, 50); got != [3]uint8{0, 0, 0} {
		t.Errorf("top-left = %v, want black", got)
	}
	for _, p := range [][2]int{{349, 349}, {349, 100}, {100, 349}} {
		if got := rgbAt(frame, p[0], p[1]); got != [3]uint8{0, 0, 0} {
			t.Errorf("pixel %v = %v, want black", p, got)
		}
	}
	if got := rgbAt(frame, 350, 350); got != [3]uint8{255, 255, 255} {
		t.Errorf("outside = %v, want white", got)
	}
}

func TestOverflow(t *testing.T) {
	bg := uniform(200, 200, white)

	t.Run("reject", func(t *testing.T) {
		c, err := NewCompositor(bg, uniform(8, 8, black), Options{})
		if err != nil {
			t.Fatalf("NewCompositor() error: %v", err)
		}
		_, err = c.Composite(440)
		if !errors.Is(err, errs.ErrDimension) {
			t.Errorf("got %v, want ErrDimension", err)
		}
	})

	t.Run("clamp", func(t *testing.T) {
		c, err := NewCompositor(bg, uniform(8, 8, black), Options{Overflow: config.OverflowClamp})
		if err != nil {
			t.Fatalf("NewCompositor() error: %v", err)
		}
		frame, err := c.Composite(440)
		if err != nil {
			t.Fatalf("Composite() error: %v", err)
		}
		for _, p := range [][2]int{{0, 0}, {199, 199}, {100, 100}} {
			if got := rgbAt(frame, p[0], p[1]); got != [3]uint8{0, 0, 0} {
				t.Errorf("pixel %v = %v, want logo black", p, got)
			}
		}
	})

	t.Run("clamp keeps logo alignment", func(t *testing.T) {
		// Logo rows carry their own index in red; all stay below the mask threshold
		logo := image.NewRGBA(image.Rect(0, 0, 300, 300))
		for y := 0; y < 300; y++ {
			for x := 0; x < 300; x++ {
				logo.SetRGBA(x, y, color.RGBA{uint8(y % 100), 0, 0, 255})
			}
		}
		c, err := NewCompositor(uniform(400, 200, white), logo, Options{Overflow: config.OverflowClamp})
		if err != nil {
			t.Fatalf("NewCompositor() error: %v", err)
		}
		frame, err := c.Composite(440)
		if err != nil {
			t.Fatalf("Composite() error: %v", err)
		}

		// Region starts at y=-50, so frame row 0 shows logo row 50
		if got := rgbAt(frame, 60, 0); got[0] != 50 {
			t.Errorf("frame (60,0) red = %d, want 50", got[0])
		}
		if got := rgbAt(frame, 49, 0); got != [3]uint8{255, 255, 255} {
			t.Errorf("frame (49,0) = %v, want background", got)
		}
	})

	t.Run("resize overflow", func(t *testing.T) {
		c, err := NewCompositor(uniform(600, 600, white), uniform(8, 8, black), Options{Resize: true})
		if err != nil {
			t.Fatalf("NewCompositor() error: %v", err)
		}
		if _, err := c.Composite(1000); err != nil {
			t.Errorf("300px logo should fit: %v", err)
		}
		if _, err := c.Composite(1); !errors.Is(err, errs.ErrDimension) {
			t.Errorf("700px logo: got %v, want ErrDimension", err)
		}
	})
}

func TestResizeGrowsLogo(t *testing.T) {
	c, err := NewCompositor(uniform(800, 800, white), uniform(300, 300, black), Options{Resize: true})
	if err != nil {
		t.Fatalf("NewCompositor() error: %v", err)
	}
	frame, err := c.Composite(1)
	if err != nil {
		t.Fatalf("Composite() error: %v", err)
	}

	// 700px logo centred at 400
	if got := rgbAt(frame, 50, 50); got != [3]uint8{0, 0, 0} {
		t.Errorf("(50,50) = %v, want logo", got)
	}
	if got := rgbAt(frame, 49, 400); got != [3]uint8{255, 255, 255} {
		t.Errorf("(49,400) = %v, want background", got)
	}
}

func TestGlow(t *testing.T) {
	base := color.RGBA{100, 50, 50, 255}
	bright := color.RGBA{200, 100, 100, 255}
	bg := uniform(400, 400, base)
	bg.SetRGBA(0, 1, bright)

	c, err := NewCompositor(bg, uniform(8, 8, white), Options{Glow: true})
	if err != nil {
		t.Fatalf("NewCompositor() error: %v", err)
	}

	h, s, v := rgbToHSV8(base.R, base.G, base.B)
	hb, sb, vb := rgbToHSV8(bright.R, bright.G, bright.B)

	tests := []struct {
		name   string
		freq   int
		want   [3]uint8
		wantHi [3]uint8
	}{
		{"no boost", 0, rgb(hsv8ToRGB(h, s, v)), rgb(hsv8ToRGB(hb, sb, vb))},
		{"boost 20", 20, rgb(hsv8ToRGB(h, s, v+20)), rgb(hsv8ToRGB(hb, sb, vb+20))},
		{"boost 100 saturates bright pixel", 100, rgb(hsv8ToRGB(h, s, v+100)), rgb(hsv8ToRGB(hb, sb, vb))},
		{"above 255 is no boost", 300, rgb(hsv8ToRGB(h, s, v)), rgb(hsv8ToRGB(hb, sb, vb))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := c.Composite(tt.freq)
			if err != nil {
				t.Fatalf("Composite() error: %v", err)
			}
			if got := rgbAt(frame, 0, 0); got != tt.want {
				t.Errorf("base pixel = %v, want %v", got, tt.want)
			}
			if got := rgbAt(frame, 0, 1); got != tt.wantHi {
				t.Errorf("bright pixel = %v, want %v", got, tt.wantHi)
			}
		})
	}

	// The source background is never modified
	if got := rgbAt(bg, 0, 0); got != [3]uint8{base.R, base.G, base.B} {
		t.Errorf("background mutated: %v", got)
	}
}

func rgb(r, g, b uint8) [3]uint8 { return [3]uint8{r, g, b} }

func TestHSV8(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		h, s, v uint8
	}{
		{255, 0, 0, 0, 255, 255},
		{0, 255, 0, 60, 255, 255},
		{0, 0, 255, 120, 255, 255},
		{255, 255, 255, 0, 0, 255},
		{0, 0, 0, 0, 0, 0},
		{128, 128, 128, 0, 0, 128},
	}

	for _, tt := range tests {
		h, s, v := rgbToHSV8(tt.r, tt.g, tt.b)
		if h != tt.h || s != tt.s || v != tt.v {
			t.Errorf("rgbToHSV8(%d,%d,%d) = (%d,%d,%d), want (%d,%d,%d)", tt.r, tt.g, tt.b, h, s, v, tt.h, tt.s, tt.v)
		}
		r, g, b := hsv8ToRGB(h, s, v)
		if r != tt.r || g != tt.g || b != tt.b {
			t.Errorf("hsv8ToRGB(%d,%d,%d) = (%d,%d,%d), want (%d,%d,%d)", h, s, v, r, g, b, tt.r, tt.g, tt.b)
		}
	}
}

func TestGrayThreshold(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    int
	}{
		{0, 0, 0, 0},
		{255, 255, 255, 255},
		{150, 150, 150, 150},
		{151, 151, 151, 151},
		{255, 0, 0, 76},
		{0, 255, 0, 150},
		{0, 0, 255, 29},
	}

	for _, tt := range tests {
		if got := gray(tt.r, tt.g, tt.b); got != tt.want {
			t.Errorf("gray(%d,%d,%d) = %d, want %d", tt.r, tt.g, tt.b, got, tt.want)
		}
	}

	// Threshold is strict: 150 keeps the logo
	l := newLogo(uniform(2, 1, color.RGBA{150, 150, 150, 255}))
	if l.mask[0] {
		t.Error("gray 150 should keep the logo pixel")
	}
}

// TestFramesAreIndependent checks that every frame is a fresh allocation.
func TestFramesAreIndependent(t *testing.T) {
	c, err := NewCompositor(uniform(400, 400, white), uniform(8, 8, black), Options{Glow: true})
	if err != nil {
		t.Fatalf("NewCompositor() error: %v", err)
	}
	a, _ := c.Composite(0)
	b, _ := c.Composite(0)
	a.Pix[0] = 7
	if b.Pix[0] == 7 {
		t.Error("frames share pixel storage")
	}
	d, _ := c.Composite(0)
	if d.Pix[0] == 7 {
		t.Error("mutating a frame changed later frames")
	}
}

// TestTransparentLogoColour checks alpha is ignored: a fully transparent
// black pixel still covers the background.
func TestTransparentLogoColour(t *testing.T) {
	fg := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(fg.Pix); i += 4 {
		fg.Pix[i+3] = 0
	}

	c, err := NewCompositor(uniform(400, 400, white), fg, Options{})
	if err != nil {
		t.Fatalf("NewCompositor() error: %v", err)
	}
	frame, err := c.Composite(440)
	if err != nil {
		t.Fatalf("Composite() error: %v", err)
	}
	if got := rgbAt(frame, 200, 200); got != [3]uint8{0, 0, 0} {
		t.Errorf("centre = %v, want black", got)
	}
	if frame.Pix[frame.PixOffset(200, 200)+3] != 255 {
		t.Error("frame alpha should be opaque")
	}
}

func TestNewCompositorErrors(t *testing.T) {
	if _, err := NewCompositor(nil, uniform(1, 1, black), Options{}); !errors.Is(err, errs.ErrInvalidConfig) {
		t.Errorf("nil background: got %v", err)
	}
	if _, err := NewCompositor(uniform(1, 1, black), uniform(1, 1, black), Options{Overflow: "wrap"}); !errors.Is(err, errs.ErrInvalidConfig) {
		t.Errorf("bad overflow: got %v", err)
	}
	if _, err := NewCompositor(image.NewRGBA(image.Rect(0, 0, 0, 0)), uniform(1, 1, black), Options{}); !errors.Is(err, errs.ErrDimension) {
		t.Errorf("empty background: got %v", err)
	}
}
