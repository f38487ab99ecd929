package renderer

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/freetype/truetype"
	"github.com/linuxmatters/glowbeat/internal/config"
	"github.com/linuxmatters/glowbeat/internal/errs"
	"golang.org/x/image/font/gofont/gobold"
)

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		title        string
		line1, line2 string
	}{
		{"", "", ""},
		{"   ", "", ""},
		{"Single", "Single", ""},
		{"Two Words", "Two", "Words"},
		{"Linux Matters Episode 42", "Linux Matters", "Episode 42"},
		{"one two three", "one", "two three"},
	}

	for _, tt := range tests {
		l1, l2 := splitTitle(tt.title)
		if l1 != tt.line1 || l2 != tt.line2 {
			t.Errorf("splitTitle(%q) = (%q, %q), want (%q, %q)", tt.title, l1, l2, tt.line1, tt.line2)
		}
	}
}

func TestFindOptimalFontSize(t *testing.T) {
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		t.Fatalf("failed to parse font: %v", err)
	}

	wide := findOptimalFontSize(f, image.Rect(0, 0, 1280, 720), "Short", "Title")
	narrow := findOptimalFontSize(f, image.Rect(0, 0, 400, 720), "Short", "Title")
	t.Logf("font size: wide=%.0f narrow=%.0f", wide, narrow)

	if narrow > wide {
		t.Errorf("narrow frame got a larger font (%.0f) than wide (%.0f)", narrow, wide)
	}
	if wide < 10 {
		t.Errorf("font size %.0f below minimum", wide)
	}
}

func TestGenerateThumbnail(t *testing.T) {
	frame := gradient(640, 360)
	orig := bytes.Clone(frame.Pix)
	dir := t.TempDir()

	t.Run("without title", func(t *testing.T) {
		path := filepath.Join(dir, "plain.png")
		if err := GenerateThumbnail(path, frame, ""); err != nil {
			t.Fatalf("GenerateThumbnail() error: %v", err)
		}
		img := decodePNG(t, path)
		b := frame.Bounds()
		for y := 0; y < b.Dy(); y += 37 {
			for x := 0; x < b.Dx(); x += 41 {
				r, g, bl, _ := img.At(x, y).RGBA()
				want := rgbAt(frame, x, y)
				if uint8(r>>8) != want[0] || uint8(g>>8) != want[1] || uint8(bl>>8) != want[2] {
					t.Fatalf("pixel (%d,%d) differs from frame", x, y)
				}
			}
		}
	})

	t.Run("with title", func(t *testing.T) {
		path := filepath.Join(dir, "titled.png")
		if err := GenerateThumbnail(path, frame, "Glow Beat Test"); err != nil {
			t.Fatalf("GenerateThumbnail() error: %v", err)
		}
		img := decodePNG(t, path)
		if img.Bounds() != frame.Bounds() {
			t.Errorf("thumbnail bounds %v, want %v", img.Bounds(), frame.Bounds())
		}

		changed := 0
		for y := 0; y < frame.Bounds().Dy(); y++ {
			for x := 0; x < frame.Bounds().Dx(); x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				want := rgbAt(frame, x, y)
				if uint8(r>>8) != want[0] || uint8(g>>8) != want[1] || uint8(b>>8) != want[2] {
					changed++
					if y > frame.Bounds().Dy()/2+2 {
						t.Fatalf("text drawn below the centre at (%d,%d)", x, y)
					}
				}
			}
		}
		if changed == 0 {
			t.Error("title was not drawn")
		}
		t.Logf("title changed %d pixels", changed)
	})

	if !bytes.Equal(frame.Pix, orig) {
		t.Error("GenerateThumbnail modified the source frame")
	}
}

func TestGenerateThumbnailBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "thumb.png")
	err := GenerateThumbnail(path, gradient(8, 8), "")
	if !errors.Is(err, errs.ErrIO) {
		t.Errorf("got %v, want ErrIO", err)
	}
}

// TestGenerateThumbnailNoPartial checks that a failed save leaves neither the
// target nor its staging file behind.
func TestGenerateThumbnailNoPartial(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "thumb.png")
	if err := GenerateThumbnail(path, gradient(8, 8), ""); err != nil {
		t.Fatalf("GenerateThumbnail() error: %v", err)
	}
	if _, err := os.Stat(path + config.PartialSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("staging file left after success: %v", err)
	}

	// A directory in the way makes the final rename fail
	blocked := filepath.Join(dir, "blocked.png")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(blocked, "keep"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := GenerateThumbnail(blocked, gradient(8, 8), ""); !errors.Is(err, errs.ErrIO) {
		t.Errorf("got %v, want ErrIO", err)
	}
	if _, err := os.Stat(blocked + config.PartialSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("staging file left after failure: %v", err)
	}
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("failed to decode %s: %v", path, err)
	}
	return img
}
