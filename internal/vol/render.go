// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package vol

import (
	"bufio"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"os"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/tiff"
)

// Write one frame of the volume to 16-bit grayscale TIFF, normalizing
// sample values from [min, max] to the full gray range
func (v *Volume) WriteFrameTIFF16ToFile(frameIdx int, fileName string, min, max float32) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	return v.WriteFrameTIFF16(frameIdx, writer, min, max)
}

// Write one frame of the volume to 16-bit grayscale TIFF, normalizing
// sample values from [min, max] to the full gray range
func (v *Volume) WriteFrameTIFF16(frameIdx int, writer io.Writer, min, max float32) error {
	height, width := v.FrameDims()
	frame := v.Frame(frameIdx)

	img := image.NewGray16(image.Rectangle{image.Point{0, 0}, image.Point{width, height}})
	scale := float32(1.0)
	if max != min {
		scale = 1.0 / (max - min)
	}
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			g := (frame[yoffset+x] - min) * scale
			// replace NaNs with zeros for export, else output breaks
			if math.IsNaN(float64(g)) || g < 0 {
				g = 0
			}
			if g > 1 {
				g = 1
			}
			img.SetGray16(x, y, color.Gray16{uint16(g * 65535)})
		}
	}

	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Write one frame of the volume to a false-color heatmap JPEG, mapping
// sample values from [min, max] onto a blue-to-red gradient
func (v *Volume) WriteFrameHeatmapJPGToFile(frameIdx int, fileName string, min, max float32, quality int) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	return v.WriteFrameHeatmapJPG(frameIdx, writer, min, max, quality)
}

// Write one frame of the volume to a false-color heatmap JPEG, mapping
// sample values from [min, max] onto a blue-to-red gradient
func (v *Volume) WriteFrameHeatmapJPG(frameIdx int, writer io.Writer, min, max float32, quality int) error {
	height, width := v.FrameDims()
	frame := v.Frame(frameIdx)

	img := image.NewRGBA(image.Rectangle{image.Point{0, 0}, image.Point{width, height}})
	scale := float32(1.0)
	if max != min {
		scale = 1.0 / (max - min)
	}
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			t := (frame[yoffset+x] - min) * scale
			// replace NaNs with zeros for export, else JPG output breaks
			if math.IsNaN(float64(t)) || t < 0 {
				t = 0
			}
			if t > 1 {
				t = 1
			}
			// blue for low values via green to red for high values
			c := colorful.Hsv(240*float64(1-t), 1, 1)
			r, g, b := c.RGB255()
			img.SetRGBA(x, y, color.RGBA{r, g, b, 255})
		}
	}

	return jpeg.Encode(writer, img, &jpeg.Options{Quality: quality})
}
