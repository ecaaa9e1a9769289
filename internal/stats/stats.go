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

package stats

import (
	"fmt"
	"math"

	"github.com/mlnoga/firefly/internal/qsort"
	"github.com/valyala/fastrand"
)

// Enumerated type for location and scale estimator modes
type LSEstimatorMode int

const (
	LSEMeanStdDev LSEstimatorMode = iota
	LSEMedianMAD
	LSEHistogram
)

// Global mode selection for location and scale estimation
var LSEstimator LSEstimatorMode = LSEMedianMAD

// Number of random samples drawn for approximate location/scale estimates
const numLSSamples = 128 * 1024

// Lazily evaluated statistics on a sample array. Zero-cost to attach to a
// volume; each indicator is computed on first use and cached until Clear
type Stats struct {
	data  []float32 // the underlying data array
	width int32     // width of a data row, for noise estimation

	basicValid bool // min, max, mean and stdDev are cached
	min        float32
	max        float32
	mean       float32
	stdDev     float32

	locScaleValid bool // location and scale are cached
	location      float32
	scale         float32

	noiseValid bool // noise is cached
	noise      float32
}

// Creates statistics on the given data array, deferring all calculations
func NewStats(data []float32, width int32) *Stats {
	return &Stats{data: data, width: width}
}

// Creates statistics with known min, max and mean, e.g. after a linear
// transformation of data with known statistics. StdDev and the robust
// indicators remain lazy
func NewStatsWithMMM(data []float32, width int32, min, max, mean float32) *Stats {
	s := &Stats{data: data, width: width}
	s.basicValid = true
	s.min, s.max, s.mean = min, max, mean
	s.stdDev = -1 // recomputed on demand
	return s
}

// Invalidates all cached indicators after the underlying data changed
func (s *Stats) Clear() {
	s.basicValid, s.locScaleValid, s.noiseValid = false, false, false
}

func (s *Stats) Min() float32 {
	if !s.basicValid {
		s.calcBasic()
	}
	return s.min
}

func (s *Stats) Max() float32 {
	if !s.basicValid {
		s.calcBasic()
	}
	return s.max
}

func (s *Stats) Mean() float32 {
	if !s.basicValid {
		s.calcBasic()
	}
	return s.mean
}

func (s *Stats) StdDev() float32 {
	if !s.basicValid || s.stdDev < 0 {
		_, stdDev := MeanStdDev(s.data)
		if !s.basicValid {
			s.calcBasic()
		}
		s.stdDev = stdDev
	}
	return s.stdDev
}

// Returns the location indicator per the selected estimator mode
func (s *Stats) Location() float32 {
	if !s.locScaleValid {
		s.calcLocScale()
	}
	return s.location
}

// Returns the scale indicator per the selected estimator mode
func (s *Stats) Scale() float32 {
	if !s.locScaleValid {
		s.calcLocScale()
	}
	return s.scale
}

// Returns the gaussian noise estimate for the data interpreted as rows of
// the given width.
// From J. Immerkær, “Fast Noise Variance Estimation”, Computer Vision and
// Image Understanding, Vol. 64, No. 2, pp. 300-302, Sep. 1996.
func (s *Stats) Noise() float32 {
	if !s.noiseValid {
		s.noise = EstimateNoise(s.data, s.width)
		s.noiseValid = true
	}
	return s.noise
}

func (s *Stats) String() string {
	return fmt.Sprintf("Min %.6g Max %.6g Mean %.6g StdDev %.6g Location %.6g Scale %.6g",
		s.Min(), s.Max(), s.Mean(), s.StdDev(), s.Location(), s.Scale())
}

func (s *Stats) calcBasic() {
	s.min, s.mean, s.max = calcMinMeanMax(s.data)
	variance := calcVariance(s.data, s.mean)
	s.stdDev = float32(math.Sqrt(float64(variance)))
	s.basicValid = true
}

func (s *Stats) calcLocScale() {
	switch LSEstimator {
	case LSEMeanStdDev:
		s.location, s.scale = s.Mean(), s.StdDev()
	case LSEMedianMAD:
		s.location, s.scale = MedianMAD(s.data)
	case LSEHistogram:
		min, max := s.Min(), s.Max()
		if min == max {
			s.location, s.scale = min, 0
		} else {
			bins := make([]int32, 4096)
			Histogram(s.data, min, max, bins)
			mode, stdDev, err := GetModeStdDevFromHistogram(bins, min, max)
			if err != nil {
				s.location, s.scale = s.Mean(), s.StdDev()
			} else {
				s.location, s.scale = mode, stdDev
			}
		}
	}
	s.locScaleValid = true
}

// Calculate mean and standard deviation of the given data
func MeanStdDev(xs []float32) (mean, stdDev float32) {
	m := float64(0)
	for _, x := range xs {
		m += float64(x)
	}
	m /= float64(len(xs))
	v := float64(0)
	for _, x := range xs {
		diff := float64(x) - m
		v += diff * diff
	}
	v /= float64(len(xs))
	return float32(m), float32(math.Sqrt(v))
}

func calcMinMeanMax(data []float32) (min, mean, max float32) {
	mmin, mmean, mmax := data[0], float64(0), data[0]
	for _, v := range data {
		if v < mmin {
			mmin = v
		}
		if v > mmax {
			mmax = v
		}
		mmean += float64(v)
	}
	return mmin, float32(mmean / float64(len(data))), mmax
}

func calcVariance(data []float32, mean float32) float64 {
	variance := float64(0)
	for _, v := range data {
		diff := float64(v - mean)
		variance += diff * diff
	}
	return variance / float64(len(data))
}

// Returns the q-quantile of the data for q in [0,1] using the lower
// interpolation rule: when the quantile rank falls between two sorted
// samples, the lower sample is returned, never an interpolated value.
// Partially reorders the data
func QuantileLower(data []float32, q float32) float32 {
	if q < 0 {
		q = 0
	} else if q > 1 {
		q = 1
	}
	k := int(math.Floor(float64(q) * float64(len(data)-1)))
	return qsort.QSelectFloat32(data, k+1)
}

// Returns median and median absolute deviation, the latter normalized to the
// standard deviation of a gaussian. Exact for small arrays, estimated from a
// random subsample for large ones. Does not modify the data
func MedianMAD(data []float32) (median, mad float32) {
	if len(data) <= numLSSamples {
		tmp := make([]float32, len(data))
		copy(tmp, data)
		median = qsort.QSelectMedianFloat32(tmp)
		for i, d := range data {
			tmp[i] = float32(math.Abs(float64(d - median)))
		}
		mad = qsort.QSelectMedianFloat32(tmp) * 1.4826
		return median, mad
	}
	samples := make([]float32, numLSSamples)
	median = FastApproxMedian(data, samples)
	mad = FastApproxMAD(data, median, samples)
	return median, mad
}

// Calculates fast approximate median of the (presumably large) data by
// randomly subsampling len(samples) values and taking the median of that.
// Uses the provided samples array as scratchpad
func FastApproxMedian(data []float32, samples []float32) float32 {
	max := uint32(len(data))
	rng := fastrand.RNG{}
	for i := range samples {
		index := rng.Uint32n(max)
		samples[i] = data[index]
	}
	return qsort.QSelectMedianFloat32(samples)
}

// Calculates fast approximate median of absolute differences by randomly
// subsampling len(samples) values, normalized to the standard deviation of
// a gaussian. Uses the provided samples array as scratchpad
func FastApproxMAD(data []float32, location float32, samples []float32) float32 {
	max := uint32(len(data))
	rng := fastrand.RNG{}
	for i := range samples {
		index := rng.Uint32n(max)
		samples[i] = float32(math.Abs(float64(data[index] - location)))
	}
	return qsort.QSelectMedianFloat32(samples) * 1.4826 // normalize to gaussian std dev
}

// Weights for noise estimation
var enWeights = []float32{
	1, -2, 1,
	-2, 4, -2,
	1, -2, 1,
}

// Estimate the level of gaussian noise on a natural image given as rows of
// the given width.
// From J. Immerkær, “Fast Noise Variance Estimation”, Computer Vision and
// Image Understanding, Vol. 64, No. 2, pp. 300-302, Sep. 1996.
func EstimateNoise(data []float32, width int32) float32 {
	enOffsets := []int32{
		-width - 1, -width, -width + 1,
		-1, 0, 1,
		width - 1, width, width + 1,
	}

	height := int32(len(data)) / width
	if width < 3 || height < 3 {
		return 0
	}
	sum := float32(0)
	for y := int32(1); y < height-1; y++ {
		rowSum := float32(0)
		for x := int32(1); x < width-1; x++ {
			i := y*width + x
			conv := float32(0)
			for j, o := range enOffsets {
				conv += data[i+o] * enWeights[j]
			}
			rowSum += float32(math.Abs(float64(conv)))
		}
		sum += rowSum
	}
	factor := float32(math.Sqrt(0.5*math.Pi)) / (6 * float32(width-2) * float32(height-2))
	return sum * factor
}
