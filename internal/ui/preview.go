package ui

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// PreviewConfig holds configuration for the video preview
type PreviewConfig struct {
	Width  int // Width in terminal cells
	Height int // Height in terminal cells
}

// Preview limits in terminal cells
const (
	previewMaxWidth  = 72
	previewMaxHeight = 20
)

// DefaultPreviewConfig returns a sensible default preview size
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		Width:  previewMaxWidth,
		Height: previewMaxHeight,
	}
}

// PreviewConfigFor fits a frame of the given size into the preview limits.
// Terminal cells are roughly twice as tall as they are wide.
func PreviewConfigFor(width, height int) PreviewConfig {
	if width <= 0 || height <= 0 {
		return DefaultPreviewConfig()
	}
	cfg := PreviewConfig{Height: previewMaxHeight}
	cfg.Width = 2 * previewMaxHeight * width / height
	if cfg.Width > previewMaxWidth {
		cfg.Width = previewMaxWidth
		cfg.Height = max(1, previewMaxWidth*height/(2*width))
	}
	cfg.Width = max(1, cfg.Width)
	return cfg
}

// DownsampleFrame takes a full-resolution RGBA frame and downsamples it to preview size.
// Each terminal cell averages the rectangular region of the source it covers.
func DownsampleFrame(frame *image.RGBA, config PreviewConfig) [][]color.RGBA {
	bounds := frame.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()
	if srcWidth == 0 || srcHeight == 0 || config.Width <= 0 || config.Height <= 0 {
		return nil
	}

	// Frames smaller than the preview get one cell per pixel
	cellWidth := max(1, srcWidth/config.Width)
	cellHeight := max(1, srcHeight/config.Height)
	cols := min(config.Width, srcWidth)
	rows := min(config.Height, srcHeight)

	preview := make([][]color.RGBA, rows)
	for row := 0; row < rows; row++ {
		preview[row] = make([]color.RGBA, cols)
		for col := 0; col < cols; col++ {
			srcX := col * cellWidth
			srcY := row * cellHeight

			var sumR, sumG, sumB uint32
			pixelCount := uint32(0)

			for y := srcY; y < srcY+cellHeight && y < srcHeight; y++ {
				off := frame.PixOffset(bounds.Min.X+srcX, bounds.Min.Y+y)
				for x := srcX; x < srcX+cellWidth && x < srcWidth; x++ {
					sumR += uint32(frame.Pix[off])
					sumG += uint32(frame.Pix[off+1])
					sumB += uint32(frame.Pix[off+2])
					off += 4
					pixelCount++
				}
			}

			if pixelCount > 0 {
				preview[row][col] = color.RGBA{
					R: uint8(sumR / pixelCount),
					G: uint8(sumG / pixelCount),
					B: uint8(sumB / pixelCount),
					A: 255,
				}
			}
		}
	}

	return preview
}

// RenderPreview converts an RGB preview grid to a string using ANSI 24-bit
// background colours, one space per cell.
func RenderPreview(preview [][]color.RGBA) string {
	if len(preview) == 0 {
		return ""
	}

	var b strings.Builder
	border := strings.Repeat("─", len(preview[0]))

	b.WriteString("  Video Preview:\n")
	b.WriteString("  ┌" + border + "┐\n")

	for _, row := range preview {
		b.WriteString("  │")
		for _, pixel := range row {
			fmt.Fprintf(&b, "\x1b[48;2;%d;%d;%dm \x1b[0m", pixel.R, pixel.G, pixel.B)
		}
		b.WriteString("│\n")
	}

	b.WriteString("  └" + border + "┘\n")
	return b.String()
}
