// Package visualization renders assembled detector images to grayscale
// image files for offline inspection. It is file output only; interactive
// display lives outside this module.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"geoassembler/pkg/geometry"
)

// Render converts one assembled frame into a 16-bit grayscale image.
// Covered pixels are scaled linearly between the frame's minimum and
// maximum; the NaN sentinel renders as black.
func Render(a *geometry.Assembled, frame int) (image.Image, error) {
	if frame < 0 || frame >= a.Frames() {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", frame, a.Frames())
	}
	h, w := a.Dims()
	_, minV, maxV, _ := a.FrameStats(frame)

	scale := 0.0
	if !math.IsNaN(minV) && maxV > minV {
		scale = 65535.0 / (maxV - minV)
	}

	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := a.At(frame, y, x)
			if math.IsNaN(v) {
				continue
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16((v - minV) * scale)})
		}
	}
	return img, nil
}

// Save writes an image as a JPEG file.
func Save(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSequence renders and saves every assembled frame into outputDir,
// one JPEG per frame.
func SaveSequence(a *geometry.Assembled, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for f := 0; f < a.Frames(); f++ {
		img, err := Render(a, f)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("frame_%03d.jpg", f))
		if err := Save(img, filename); err != nil {
			return err
		}
	}

	return nil
}
