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
	"io"
	"testing"

	"github.com/mlnoga/firefly/internal/vol"
)

func TestDetectWindowedConstant(t *testing.T) {
	// zero variance in every tile must flag nothing with the adaptive
	// threshold, not divide by zero
	v := vol.NewVolume3D("test", 3, 8, 8, -32, nil)
	for i := range v.Data {
		v.Data[i] = 42
	}
	mask, err := DetectWindowed(v, 0, 4, 2, io.Discard)
	if err != nil {
		t.Fatalf("DetectWindowed: %s", err)
	}
	if got := mask.MaxValue(); got != 0 {
		t.Errorf("constant volume mask max=%d; want 0", got)
	}
}

func TestDetectWindowedVotes(t *testing.T) {
	// hot pixel at (3,3) on a 9x9 zero frame. With window 4 and step 2, tile
	// anchors are 0, 2 and 4 per axis, so anchors 0 and 2 cover index 3 and
	// the pixel collects 2x2=4 votes. Background tiles have zero variance
	// and tiles around the hot pixel score the background at z about -0.26,
	// below the threshold
	v := vol.NewVolume3D("test", 1, 9, 9, -32, nil)
	v.Data[3*9+3] = 100
	// a second hot pixel at (8,8) lies only in partial tiles, which are
	// discarded, so it must not be flagged
	v.Data[8*9+8] = 100

	mask, err := DetectWindowed(v, 2, 4, 2, io.Discard)
	if err != nil {
		t.Fatalf("DetectWindowed: %s", err)
	}
	for i, m := range mask.Data {
		if i == 3*9+3 {
			if m != 4 {
				t.Errorf("hot pixel votes=%d; want 4, one per overlapping tile", m)
			}
		} else if m != 0 {
			t.Errorf("mask[%d]=%d; want 0", i, m)
		}
	}
}

func TestDetectWindowedAdaptive(t *testing.T) {
	// with no threshold set, each tile adapts to the negative of its lowest
	// z-score. The hot pixel exceeds that, the uniform background sits
	// exactly at it and a strictly-greater comparison leaves it unflagged
	v := vol.NewVolume3D("test", 1, 8, 8, -32, nil)
	v.Data[3*8+3] = 100

	mask, err := DetectWindowed(v, 0, 4, 2, io.Discard)
	if err != nil {
		t.Fatalf("DetectWindowed: %s", err)
	}
	if got := mask.Data[3*8+3]; got != 4 {
		t.Errorf("hot pixel votes=%d; want 4", got)
	}
	if got := mask.CountAbove(0); got != 1 {
		t.Errorf("flagged locations=%d; want 1", got)
	}
}

func TestDetectWindowedUsesTimeMean(t *testing.T) {
	// a pixel bright in a single frame of many averages away and must not
	// flag, unlike a pixel bright in every frame
	v := vol.NewVolume3D("test", 10, 4, 4, -32, nil)
	v.Data[0*16+1*4+1] = 100 // transient at (1,1), frame 0 only
	for f := 0; f < 10; f++ {
		v.Data[f*16+2*4+2] = 100 // persistent at (2,2)
	}

	mask, err := DetectWindowed(v, 2, 4, 4, io.Discard)
	if err != nil {
		t.Fatalf("DetectWindowed: %s", err)
	}
	if got := mask.Data[2*4+2]; got != 1 {
		t.Errorf("persistent pixel votes=%d; want 1", got)
	}
	if got := mask.Data[1*4+1]; got != 0 {
		t.Errorf("transient pixel votes=%d; want 0 after time averaging", got)
	}
}

func TestDetectWindowedInvalidParams(t *testing.T) {
	v := vol.NewVolume3D("test", 1, 8, 8, -32, nil)
	if _, err := DetectWindowed(v, 0, 0, 2, io.Discard); err == nil {
		t.Errorf("window=0 accepted; want error")
	}
	if _, err := DetectWindowed(v, 0, 4, 0, io.Discard); err == nil {
		t.Errorf("step=0 accepted; want error")
	}
}

func TestDetectPerFrameQuantile(t *testing.T) {
	// lower interpolation: the 0.5-quantile of [1 2 3 4] is 2, the lower of
	// the two bracketing samples, so exactly 3 and 4 flag
	v := vol.NewVolume3D("test", 1, 2, 2, -32, []float32{
		1, 2,
		3, 4,
	})
	mask, err := DetectPerFrame(v, 0.5, 1, io.Discard)
	if err != nil {
		t.Fatalf("DetectPerFrame: %s", err)
	}
	want := []int32{0, 0, 1, 1}
	for i, m := range mask.Data {
		if m != want[i] {
			t.Errorf("mask[%d]=%d; want %d", i, m, want[i])
		}
	}
	if len(mask.Axes) != 3 {
		t.Errorf("mask axes=%d; want 3, one entry per frame", len(mask.Axes))
	}
}

func TestDetectPerFrameIndependentFrames(t *testing.T) {
	// each frame thresholds against its own quantile; a constant frame
	// flags nothing under a strictly-greater comparison
	v := vol.NewVolume3D("test", 2, 2, 2, -32, []float32{
		1, 2,
		3, 4,

		10, 10,
		10, 10,
	})
	mask, err := DetectPerFrame(v, 0.5, 4, io.Discard)
	if err != nil {
		t.Fatalf("DetectPerFrame: %s", err)
	}
	want := []int32{0, 0, 1, 1, 0, 0, 0, 0}
	for i, m := range mask.Data {
		if m != want[i] {
			t.Errorf("mask[%d]=%d; want %d", i, m, want[i])
		}
	}
}

func TestDetectPerFrameInvalidQuantile(t *testing.T) {
	v := vol.NewVolume3D("test", 1, 2, 2, -32, nil)
	if _, err := DetectPerFrame(v, 1.5, 1, io.Discard); err == nil {
		t.Errorf("quantile=1.5 accepted; want error")
	}
	if _, err := DetectPerFrame(v, -0.1, 1, io.Discard); err == nil {
		t.Errorf("quantile=-0.1 accepted; want error")
	}
}
