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

package spot

import (
	"fmt"
	"io"
	"runtime"

	"gonum.org/v1/gonum/stat"

	"github.com/mlnoga/firefly/internal/vol"
)

// Suffix appended to the volume name by the correlation map
const SuffixCorrMap = "_CorrMap"

// Computes the per-pixel split-half correlation map, a recording quality
// metric. Considers an even-length prefix of the frame axis, dropping the
// last frame if the count is odd, splits every pixel's trace into two
// contiguous halves, and computes the Pearson correlation coefficient
// between the halves. Stable recordings score close to one, noise and
// flickering artifacts score lower. Returns a new (height, width) volume
// of correlation values in [-1, 1]
func CorrMap(v *vol.Volume, logWriter io.Writer) (*vol.Volume, error) {
	frames := v.NumFrames()
	if frames < 2 {
		return nil, fmt.Errorf("%d: split-half correlation needs at least 2 frames, have %d", v.ID, frames)
	}
	half := (frames - frames%2) / 2
	frameSize := v.FrameSize()
	fmt.Fprintf(logWriter, "%d: Computing split-half correlation of %d+%d frames per pixel...\n",
		v.ID, half, half)

	data := make([]float32, frameSize)

	// split pixels into batches, limit parallelism to NumCPUs()
	numBatches := 8 * runtime.NumCPU()
	batchSize := (frameSize + numBatches - 1) / numBatches
	sem := make(chan bool, runtime.NumCPU())
	for lower := 0; lower < frameSize; lower += batchSize {
		upper := lower + batchSize
		if upper > frameSize {
			upper = frameSize
		}

		sem <- true
		go func(lower, upper int) {
			a := make([]float64, half)
			b := make([]float64, half)
			for p := lower; p < upper; p++ {
				for f := 0; f < half; f++ {
					a[f] = float64(v.Data[f*frameSize+p])
					b[f] = float64(v.Data[(f+half)*frameSize+p])
				}
				data[p] = float32(stat.Correlation(a, b, nil))
			}
			<-sem
		}(lower, upper)
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}

	spatial := v.Axes
	if _, _, ok := v.Axis(vol.AxisFrame); ok {
		spatial = v.Axes[1:]
	}
	res := vol.NewVolume(v.Name+SuffixCorrMap, spatial, -32, data)
	res.ID = v.ID
	return res, nil
}
