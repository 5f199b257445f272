// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mnist

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"
	"github.com/gomlx/exceptions"
)

// intensityRamp maps increasing pixel intensities to characters, so the render is readable even
// when the terminal has no color support.
const intensityRamp = " .:-=+*#%@"

// ToImage converts a flattened normalized image back to a grayscale image.Image.
func ToImage(pixels []float32) *image.Gray {
	if len(pixels) != NumPixels {
		exceptions.Panicf("mnist.ToImage: expected %d pixels, got %d", NumPixels, len(pixels))
	}
	img := image.NewGray(image.Rect(0, 0, Width, Height))
	for ii, v := range pixels {
		v = min(max(v, 0), 1)
		img.Pix[ii] = uint8(v*255 + 0.5)
	}
	return img
}

// Render draws the image for a terminal, one character per pixel of a copy resized to half the height,
// since terminal cells are roughly twice as tall as they are wide.
func Render(pixels []float32) string {
	resized := imaging.Resize(ToImage(pixels), Width, Height/2, imaging.Box)
	bounds := resized.Bounds()
	var sb strings.Builder
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray := color.GrayModel.Convert(resized.At(x, y)).(color.Gray).Y
			sb.WriteString(renderPixel(gray))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func renderPixel(gray uint8) string {
	char := intensityRamp[int(gray)*(len(intensityRamp)-1)/255]
	if gray == 0 {
		return string(char)
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", gray, gray, gray)))
	return style.Render(string(char))
}
