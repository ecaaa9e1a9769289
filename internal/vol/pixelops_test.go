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
	"testing"

	"github.com/valyala/fastrand"
)

func TestApplyScaleOffset(t *testing.T) {
	v := NewVolume3D("test", 2, 3, 3, -32, nil)
	rng := fastrand.RNG{}
	for i := range v.Data {
		v.Data[i] = float32(rng.Uint32n(1000))
	}
	orig := make([]float32, len(v.Data))
	copy(orig, v.Data)

	v.ApplyScaleOffset(2, 5)
	for i := range v.Data {
		if want := orig[i]*2 + 5; v.Data[i] != want {
			t.Errorf("data[%d]=%f; want %f", i, v.Data[i], want)
		}
	}
}

func TestRescale(t *testing.T) {
	v := NewVolume3D("test", 1, 4, 4, -32, nil)
	for i := range v.Data {
		v.Data[i] = float32(i) * 10
	}
	v.Rescale(0, 1)
	if min, max := v.Stats.Min(), v.Stats.Max(); min != 0 || max != 1 {
		t.Errorf("rescaled min=%f max=%f; want 0 1", min, max)
	}
	if v.Data[0] != 0 || v.Data[len(v.Data)-1] != 1 {
		t.Errorf("endpoints %f %f; want 0 1", v.Data[0], v.Data[len(v.Data)-1])
	}
	// scaling is linear, so the midpoint sample lands halfway
	mid := v.Data[len(v.Data)/2]
	if mid < 0.5 || mid > 0.54 {
		t.Errorf("midpoint=%f; want roughly 0.53", mid)
	}
}

func TestRescaleConstant(t *testing.T) {
	v := NewVolume3D("test", 1, 3, 3, -32, nil)
	for i := range v.Data {
		v.Data[i] = 42
	}
	v.Rescale(0, 255)
	for i, d := range v.Data {
		if d != 0 {
			t.Errorf("data[%d]=%f; want 0", i, d)
		}
	}
}

func TestCastTo8Bit(t *testing.T) {
	v := NewVolume3D("test", 1, 2, 3, -32, nil)
	copy(v.Data, []float32{-3.2, 0.4, 0.5, 127.6, 254.5, 300})
	v.CastTo(8)
	want := []float32{0, 0, 1, 128, 255, 255}
	for i, e := range want {
		if v.Data[i] != e {
			t.Errorf("cast[%d]=%f; want %f", i, v.Data[i], e)
		}
	}
	if v.Bitpix != 8 {
		t.Errorf("bitpix=%d; want 8", v.Bitpix)
	}
}

func TestCastToFloatLeavesData(t *testing.T) {
	v := NewVolume3D("test", 1, 1, 3, 8, nil)
	copy(v.Data, []float32{0.25, 1.75, 2.5})
	v.CastTo(-32)
	want := []float32{0.25, 1.75, 2.5}
	for i, e := range want {
		if v.Data[i] != e {
			t.Errorf("cast[%d]=%f; want %f", i, v.Data[i], e)
		}
	}
	if v.Bitpix != -32 {
		t.Errorf("bitpix=%d; want -32", v.Bitpix)
	}
}

func TestMeanFrame(t *testing.T) {
	v := NewVolume3D("test", 3, 2, 2, -32, nil)
	for f := 0; f < 3; f++ {
		frame := v.Frame(f)
		for i := range frame {
			frame[i] = float32(f*10 + i)
		}
	}
	m := v.MeanFrame()
	if len(m.Axes) != 2 || m.Size() != 4 {
		t.Fatalf("mean frame %s; want height=2 x width=2", m.DimensionsToString())
	}
	want := []float32{10, 11, 12, 13}
	for i, e := range want {
		if m.Data[i] != e {
			t.Errorf("mean[%d]=%f; want %f", i, m.Data[i], e)
		}
	}
}

func TestMeanProfile(t *testing.T) {
	// 1 frame, 2x3: rows {0,1,2} and {10,11,12}
	v := NewVolume3D("test", 1, 2, 3, -32, nil)
	copy(v.Data, []float32{0, 1, 2, 10, 11, 12})

	// reducing over width leaves one mean per height coordinate
	profile, ax, err := v.MeanProfile(AxisWidth)
	if err != nil {
		t.Fatalf("MeanProfile(width) error %s", err)
	}
	if ax.Name != AxisHeight || len(profile) != 2 {
		t.Fatalf("profile axis=%s len=%d; want height 2", ax.Name, len(profile))
	}
	if profile[0] != 1 || profile[1] != 11 {
		t.Errorf("profile=%v; want [1 11]", profile)
	}

	// reducing over height leaves one mean per width coordinate
	profile, ax, err = v.MeanProfile(AxisHeight)
	if err != nil {
		t.Fatalf("MeanProfile(height) error %s", err)
	}
	if ax.Name != AxisWidth || len(profile) != 3 {
		t.Fatalf("profile axis=%s len=%d; want width 3", ax.Name, len(profile))
	}
	want := []float32{5, 6, 7}
	for i, e := range want {
		if profile[i] != e {
			t.Errorf("profile[%d]=%f; want %f", i, profile[i], e)
		}
	}

	if _, _, err = v.MeanProfile(AxisFrame); err == nil {
		t.Errorf("MeanProfile(frame) succeeded; want error")
	}
	if _, _, err = v.MeanProfile("depth"); err == nil {
		t.Errorf("MeanProfile(depth) succeeded; want error")
	}
}
