package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/linuxmatters/glowbeat/internal/config"
	"github.com/linuxmatters/glowbeat/internal/errs"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/math/fixed"
)

var thumbnailTextColor = color.RGBA{R: config.TextColorR, G: config.TextColorG, B: config.TextColorB, A: 255}

// GenerateThumbnail writes frame as a PNG poster with an optional title in
// the top half. The frame itself is not modified.
func GenerateThumbnail(outputPath string, frame *image.RGBA, title string) error {
	img := cloneRGBA(frame)

	if strings.TrimSpace(title) != "" {
		parsedFont, err := truetype.Parse(gobold.TTF)
		if err != nil {
			return fmt.Errorf("failed to parse font: %w", err)
		}

		line1, line2 := splitTitle(title)
		size := findOptimalFontSize(parsedFont, img.Bounds(), line1, line2)

		face := truetype.NewFace(parsedFont, &truetype.Options{Size: size, DPI: 72})
		defer face.Close()

		drawThumbnailText(img, face, size, line1, line2)
	}

	if err := saveThumbnail(img, outputPath); err != nil {
		return fmt.Errorf("%w: failed to save thumbnail: %w", errs.ErrIO, err)
	}
	return nil
}

// splitTitle splits the title into 2 roughly equal lines
func splitTitle(title string) (string, string) {
	words := strings.Fields(title)
	if len(words) == 0 {
		return "", ""
	}
	if len(words) == 1 {
		return words[0], ""
	}

	mid := len(words) / 2
	return strings.Join(words[:mid], " "), strings.Join(words[mid:], " ")
}

// findOptimalFontSize finds the largest font size for which both lines fit
// between the side margins and line 2 ends above the vertical centre.
func findOptimalFontSize(parsedFont *truetype.Font, bounds image.Rectangle, line1, line2 string) float64 {
	centerY := bounds.Dy() / 2
	maxWidth := bounds.Dx() - 2*config.ThumbnailMargin

	for size := float64(config.ThumbnailFontSize); size > 10.0; size -= 2.0 {
		face := truetype.NewFace(parsedFont, &truetype.Options{Size: size, DPI: 72})
		width1, bounds1 := measureText(face, line1)
		width2, bounds2 := measureText(face, line2)
		face.Close()

		if width1 > maxWidth || width2 > maxWidth {
			continue
		}

		lineSpacing := int(size * 0.5)
		height1 := (bounds1.Max.Y - bounds1.Min.Y).Ceil()
		height2 := (bounds2.Max.Y - bounds2.Min.Y).Ceil()

		if config.ThumbnailMargin+height1+lineSpacing+height2 <= centerY {
			return size
		}
	}

	return 10.0
}

// measureText returns the width and bounds of rendered text. Min.Y is
// negative (ascent) and Max.Y positive (descent).
func measureText(face font.Face, text string) (int, fixed.Rectangle26_6) {
	d := &font.Drawer{Face: face}
	bounds, _ := d.BoundString(text)
	return (bounds.Max.X - bounds.Min.X).Ceil(), bounds
}

// drawThumbnailText draws line 1 with its top at the margin and line 2 below it.
func drawThumbnailText(img *image.RGBA, face font.Face, size float64, line1, line2 string) {
	_, bounds1 := measureText(face, line1)
	_, bounds2 := measureText(face, line2)
	height1 := (bounds1.Max.Y - bounds1.Min.Y).Ceil()
	lineSpacing := int(size * 0.5)

	baseline1 := config.ThumbnailMargin - bounds1.Min.Y.Floor()
	baseline2 := config.ThumbnailMargin + height1 + lineSpacing - bounds2.Min.Y.Floor()

	drawCenteredLine(img, face, line1, baseline1)
	drawCenteredLine(img, face, line2, baseline2)
}

func drawCenteredLine(img *image.RGBA, face font.Face, text string, baselineY int) {
	if text == "" {
		return
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(thumbnailTextColor),
		Face: face,
	}
	width, _ := measureText(face, text)
	x := img.Bounds().Min.X + (img.Bounds().Dx()-width)/2

	d.Dot = freetype.Pt(x, baselineY)
	d.DrawString(text)
}

// saveThumbnail encodes img next to outputPath and renames it into place,
// so outputPath never holds a truncated PNG.
func saveThumbnail(img *image.RGBA, outputPath string) (err error) {
	partial := outputPath + config.PartialSuffix
	defer func() {
		if err != nil {
			os.Remove(partial)
		}
	}()

	outFile, err := os.Create(partial)
	if err != nil {
		return err
	}
	if err := png.Encode(outFile, img); err != nil {
		outFile.Close()
		return err
	}
	if err := outFile.Close(); err != nil {
		return err
	}
	return os.Rename(partial, outputPath)
}
