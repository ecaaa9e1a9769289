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
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

func TestMeanStdDev(t *testing.T) {
	mean, stdDev := MeanStdDev([]float32{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Errorf("mean=%f; want 5", mean)
	}
	if stdDev != 2 {
		t.Errorf("stdDev=%f; want 2", stdDev)
	}
}

func TestQuantileLower(t *testing.T) {
	tests := []struct {
		data []float32
		q    float32
		want float32
	}{
		{[]float32{1, 2, 3, 4}, 0.5, 2}, // lower of the two bracketing samples
		{[]float32{1, 2, 3, 4}, 0, 1},
		{[]float32{1, 2, 3, 4}, 1, 4},
		{[]float32{4, 3, 2, 1}, 0.5, 2}, // order must not matter
		{[]float32{1, 2, 3, 4, 5}, 0.5, 3},
		{[]float32{7}, 0.95, 7},
		{[]float32{1, 2, 3, 4}, 0.95, 3}, // rank 2.85 floors to sample 3
	}
	for _, tc := range tests {
		data := append([]float32(nil), tc.data...)
		if got := QuantileLower(data, tc.q); got != tc.want {
			t.Errorf("QuantileLower(%v, %f)=%f; want %f", tc.data, tc.q, got, tc.want)
		}
	}
}

func TestMedianMAD(t *testing.T) {
	median, mad := MedianMAD([]float32{1, 2, 3, 4, 5})
	if median != 3 {
		t.Errorf("median=%f; want 3", median)
	}
	if want := float32(1 * 1.4826); math.Abs(float64(mad-want)) > 1e-6 {
		t.Errorf("mad=%f; want %f", mad, want)
	}
}

func TestStatsLazy(t *testing.T) {
	data := []float32{1, 2, 3, 4}
	s := NewStats(data, 2)
	if s.Min() != 1 || s.Max() != 4 || s.Mean() != 2.5 {
		t.Errorf("min=%f max=%f mean=%f; want 1 4 2.5", s.Min(), s.Max(), s.Mean())
	}

	// cached values survive until Clear
	data[0] = 100
	if s.Max() != 4 {
		t.Errorf("max=%f after mutation; want cached 4", s.Max())
	}
	s.Clear()
	if s.Max() != 100 {
		t.Errorf("max=%f after Clear; want 100", s.Max())
	}
}

func TestStatsWithMMM(t *testing.T) {
	data := []float32{0, 255}
	s := NewStatsWithMMM(data, 2, 0, 255, 127.5)
	if s.Min() != 0 || s.Max() != 255 || s.Mean() != 127.5 {
		t.Errorf("min=%f max=%f mean=%f; want 0 255 127.5", s.Min(), s.Max(), s.Mean())
	}
	if s.StdDev() != 127.5 {
		t.Errorf("stdDev=%f; want 127.5 recomputed on demand", s.StdDev())
	}
}

func TestFastApproxMedian(t *testing.T) {
	// approximate median of a large uniform sample lands near the true one
	rng := fastrand.RNG{}
	data := make([]float32, 1024*1024)
	for i := range data {
		data[i] = float32(rng.Uint32n(1000))
	}
	samples := make([]float32, 16*1024)
	median := FastApproxMedian(data, samples)
	if median < 400 || median > 600 {
		t.Errorf("approximate median=%f; want around 500", median)
	}
}

func TestHistogramModeFit(t *testing.T) {
	// gaussian-ish histogram around 100: the fitted mode lands nearby
	data := make([]float32, 0, 4096)
	for i := -40; i <= 40; i++ {
		x := float32(i)
		count := int(100 * math.Exp(float64(-x*x/200)))
		for j := 0; j < count; j++ {
			data = append(data, 100+x)
		}
	}
	bins := make([]int32, 256)
	min, _, max := calcMinMeanMax(data)
	Histogram(data, min, max, bins)
	mode, stdDev, err := GetModeStdDevFromHistogram(bins, min, max)
	if err != nil {
		t.Fatalf("GetModeStdDevFromHistogram: %s", err)
	}
	if math.Abs(float64(mode)-100) > 2 {
		t.Errorf("mode=%f; want close to 100", mode)
	}
	if stdDev <= 0 || stdDev > 20 {
		t.Errorf("stdDev=%f; want positive and below 20", stdDev)
	}
}
