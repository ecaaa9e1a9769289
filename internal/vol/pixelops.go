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
	"fmt"
	"math"
	"runtime"

	"github.com/mlnoga/firefly/internal/stats"
)

// A pixel function. Operates in-place. For parallelization across CPUs
type PixelFunction func(data []float32, params interface{})

// Apply given pixel function to the volume. Uses thread parallelism across
// all available CPUs. Operates in-place
func (v *Volume) ApplyPixelFunction(pf PixelFunction, args interface{}) {
	data := v.Data

	// split into 8*NumCPU() work packages, limit parallelism to NumCPUs()
	numBatches := 8 * runtime.NumCPU()
	batchSize := (len(data) + numBatches - 1) / numBatches
	sem := make(chan bool, runtime.NumCPU())
	for lower := 0; lower < len(data); lower += batchSize {
		upper := lower + batchSize
		if upper > len(data) {
			upper = len(data)
		}

		sem <- true
		go func(data []float32) {
			pf(data, args)
			<-sem
		}(data[lower:upper])
	}

	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}
}

// A frame function. Receives the frame's positional index and its samples
// as a subslice of the volume data. Operates in-place on disjoint frames
type FrameFunction func(frameIdx int, frame []float32)

// Apply given frame function to every frame of the volume, running up to
// maxThreads frames concurrently. Frames are disjoint, so no locking is
// needed. Operates in-place
func (v *Volume) ForEachFrame(maxThreads int, ff FrameFunction) {
	if maxThreads <= 0 {
		maxThreads = runtime.NumCPU()
	}
	frames := v.NumFrames()
	sem := make(chan bool, maxThreads)
	for i := 0; i < frames; i++ {
		sem <- true
		go func(i int) {
			ff(i, v.Frame(i))
			<-sem
		}(i)
	}

	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}
}

// Returns the time-mean frame: samples averaged across the frame axis,
// as a new volume over the remaining spatial axes
func (v *Volume) MeanFrame() *Volume {
	frames, fs := v.NumFrames(), v.FrameSize()
	sums := make([]float64, fs)
	for f := 0; f < frames; f++ {
		frame := v.Frame(f)
		for i, d := range frame {
			sums[i] += float64(d)
		}
	}
	data := make([]float32, fs)
	scale := 1.0 / float64(frames)
	for i, s := range sums {
		data[i] = float32(s * scale)
	}

	spatial := v.Axes
	if _, ax, ok := v.Axis(AxisFrame); ok && ax.Len() > 0 {
		spatial = v.Axes[1:]
	}
	res := NewVolume(v.Name+"_Mean", spatial, -32, data)
	res.ID = v.ID
	return res
}

// Returns the mean profile over the frame axis and the given spatial axis:
// one value per coordinate of the surviving spatial axis
func (v *Volume) MeanProfile(reduceAxis string) ([]float32, *Axis, error) {
	ri, _, ok := v.Axis(reduceAxis)
	if !ok || reduceAxis == AxisFrame {
		return nil, nil, fmt.Errorf("no spatial axis %q to reduce over, volume has %s",
			reduceAxis, v.DimensionsToString())
	}
	si := 1
	if ri == 1 {
		si = 2
	}
	if _, _, ok := v.Axis(AxisFrame); !ok {
		si = 1 - ri // two spatial axes only
	}
	surviving := &v.Axes[si]
	strides := v.Strides()

	sums := make([]float64, surviving.Len())
	counts := float64(len(v.Data) / surviving.Len())
	for i, d := range v.Data {
		s := (i / strides[si]) % surviving.Len()
		sums[s] += float64(d)
	}
	profile := make([]float32, len(sums))
	for i, s := range sums {
		profile[i] = float32(s / counts)
	}
	return profile, surviving, nil
}

type pfScaleOffsetArgs struct {
	Scale  float32
	Offset float32
}

// Pixel function to apply a scale and an offset. 2nd parameter must be a
// pfScaleOffsetArgs. Operates in-place
func pfScaleOffset(data []float32, params interface{}) {
	scale, offset := params.(pfScaleOffsetArgs).Scale, params.(pfScaleOffsetArgs).Offset
	for i, d := range data {
		data[i] = d*scale + offset
	}
}

// Applies x = x*scale + offset to all samples, in place. Statistics are
// invalidated and recomputed on next access
func (v *Volume) ApplyScaleOffset(scale, offset float32) {
	v.ApplyPixelFunction(pfScaleOffset, pfScaleOffsetArgs{Scale: scale, Offset: offset})
	v.Stats.Clear()
}

// Linearly rescales all samples to the interval [lo, hi], in place. A
// constant volume maps to lo everywhere. Statistics are updated without a
// rescan, as the transform is linear
func (v *Volume) Rescale(lo, hi float32) {
	min, max, mean := v.Stats.Min(), v.Stats.Max(), v.Stats.Mean()
	if min == max {
		v.ApplyPixelFunction(pfScaleOffset, pfScaleOffsetArgs{Scale: 0, Offset: lo})
		v.Stats = stats.NewStatsWithMMM(v.Data, v.statsWidth(), lo, lo, lo)
		return
	}
	scale := (hi - lo) / (max - min)
	offset := lo - min*scale
	v.ApplyPixelFunction(pfScaleOffset, pfScaleOffsetArgs{Scale: scale, Offset: offset})
	v.Stats = stats.NewStatsWithMMM(v.Data, v.statsWidth(), lo, hi, mean*scale+offset)
}

// Casts the volume to the given at-rest sample encoding. Casting to 8-bit
// rounds and clamps every sample to [0,255], in place. Rounding happens even
// if the volume is nominally 8-bit already, as transforms leave fractional samples
func (v *Volume) CastTo(bitpix int32) {
	if bitpix == 8 {
		v.ApplyPixelFunction(func(data []float32, _ interface{}) {
			for i, d := range data {
				r := float32(math.Floor(float64(d) + 0.5))
				if r < 0 {
					r = 0
				} else if r > 255 {
					r = 255
				}
				data[i] = r
			}
		}, nil)
		v.Stats.Clear()
	}
	v.Bitpix = bitpix
}

func (v *Volume) statsWidth() int32 {
	if len(v.Axes) == 0 {
		return 1
	}
	return int32(v.Axes[len(v.Axes)-1].Len())
}
