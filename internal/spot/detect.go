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
	"math"
	"runtime"

	"github.com/mlnoga/firefly/internal/stats"
	"github.com/mlnoga/firefly/internal/vol"
)

// Suffix appended to the volume name by the bright spot corrector
const SuffixDeSpotted = "_DeSpotted"

// Detects bright spot artifacts on the time-mean frame with overlapping
// square tiles. A window x window tile is anchored at every (height, width)
// position whose indices are multiples of step; anchors whose tile would
// extend past the frame are discarded. Within each tile, samples are
// z-scored against the tile's own mean and standard deviation, and every
// sample whose z-score strictly exceeds the threshold receives one vote in
// the returned (height, width) mask. Overlapping tiles accumulate votes,
// so with step < window a mask value is the number of tiles that flagged
// the location.
//
// A non-positive or NaN threshold selects the adaptive per-tile threshold,
// the negative of the lowest z-score in the tile. Tiles with zero variance
// never flag anything
func DetectWindowed(v *vol.Volume, threshold float32, window, step int, logWriter io.Writer) (*vol.Mask, error) {
	if window <= 0 || step <= 0 {
		return nil, fmt.Errorf("%d: invalid spot detection window %d step %d", v.ID, window, step)
	}
	if len(v.Axes) < 2 {
		return nil, fmt.Errorf("%d: volume %s has no spatial axes", v.ID, v.DimensionsToString())
	}
	adaptive := threshold <= 0 || math.IsNaN(float64(threshold))
	if adaptive {
		fmt.Fprintf(logWriter, "%d: Detecting bright spots on mean of %s with window %d step %d and adaptive threshold...\n",
			v.ID, v.DimensionsToString(), window, step)
	} else {
		fmt.Fprintf(logWriter, "%d: Detecting bright spots on mean of %s with window %d step %d threshold %.2f...\n",
			v.ID, v.DimensionsToString(), window, step, threshold)
	}

	mean := v.MeanFrame()
	height, width := mean.FrameDims()
	mask := vol.NewMask(v.Name+"_Spots", mean.Axes)

	buf := make([]float32, window*window)
	tiles := 0
	for ah := 0; ah+window <= height; ah += step {
		for aw := 0; aw+window <= width; aw += step {
			for i := 0; i < window; i++ {
				copy(buf[i*window:(i+1)*window], mean.Data[(ah+i)*width+aw:(ah+i)*width+aw+window])
			}
			tileMean, tileStdDev := stats.MeanStdDev(buf)
			if tileStdDev <= 0 {
				continue // constant tile, z-scores undefined
			}
			tiles++

			thr := threshold
			if adaptive {
				min := buf[0]
				for _, b := range buf {
					if b < min {
						min = b
					}
				}
				thr = (tileMean - min) / tileStdDev
			}

			invStdDev := 1.0 / tileStdDev
			for i := 0; i < window; i++ {
				row := (ah+i)*width + aw
				for j := 0; j < window; j++ {
					z := (mean.Data[row+j] - tileMean) * invStdDev
					if z > thr {
						mask.Data[row+j]++
					}
				}
			}
		}
	}

	flagged := 0
	for _, m := range mask.Data {
		if m > 0 {
			flagged++
		}
	}
	fmt.Fprintf(logWriter, "%d: Processed %d tiles, flagged %d locations with up to %d votes\n",
		v.ID, tiles, flagged, mask.MaxValue())
	return mask, nil
}

// Detects bright spot artifacts independently per frame, flagging every
// sample strictly greater than the frame's quantile-rank value under the
// lower interpolation rule. Frames are processed concurrently with up to
// maxThreads goroutines. Returns a (frame, height, width) mask with one
// vote per flagged sample
func DetectPerFrame(v *vol.Volume, quantile float32, maxThreads int, logWriter io.Writer) (*vol.Mask, error) {
	if quantile < 0 || quantile > 1 {
		return nil, fmt.Errorf("%d: invalid spot detection quantile %.3f, must be in [0,1]", v.ID, quantile)
	}
	if maxThreads <= 0 {
		maxThreads = runtime.NumCPU()
	}
	frames, frameSize := v.NumFrames(), v.FrameSize()
	fmt.Fprintf(logWriter, "%d: Detecting bright spots above quantile %.2f independently in %d frames...\n",
		v.ID, quantile, frames)

	mask := vol.NewMask(v.Name+"_Spots", v.Axes)

	sem := make(chan bool, maxThreads)
	for f := 0; f < frames; f++ {
		sem <- true
		go func(f int) {
			frame := v.Frame(f)
			buf := make([]float32, frameSize)
			copy(buf, frame)
			q := stats.QuantileLower(buf, quantile)

			out := mask.Data[f*frameSize : (f+1)*frameSize]
			for i, d := range frame {
				if d > q {
					out[i] = 1
				}
			}
			<-sem
		}(f)
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}

	flagged := 0
	for _, m := range mask.Data {
		if m > 0 {
			flagged++
		}
	}
	fmt.Fprintf(logWriter, "%d: Flagged %d of %d samples\n", v.ID, flagged, len(mask.Data))
	return mask, nil
}
