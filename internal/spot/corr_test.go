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
	"math"
	"testing"

	"github.com/mlnoga/firefly/internal/vol"
)

func TestCorrMap(t *testing.T) {
	// 5 frames, 1x2 pixels. The odd fifth frame is dropped, so each trace
	// splits into halves of 2. Pixel 0 repeats its first half and correlates
	// at +1, pixel 1 inverts it and correlates at -1. The garbage in frame 4
	// must not influence either
	v := vol.NewVolume3D("test", 5, 1, 2, -32, []float32{
		0, 0,
		1, 1,
		0, 1,
		1, 0,
		7, 9,
	})
	res, err := CorrMap(v, io.Discard)
	if err != nil {
		t.Fatalf("CorrMap: %s", err)
	}
	if len(res.Axes) != 2 || res.Axes[0].Len() != 1 || res.Axes[1].Len() != 2 {
		t.Fatalf("result dims %s; want height=1 x width=2", res.DimensionsToString())
	}
	if got := res.Data[0]; math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("pixel 0 correlation=%f; want 1", got)
	}
	if got := res.Data[1]; math.Abs(float64(got)+1) > 1e-6 {
		t.Errorf("pixel 1 correlation=%f; want -1", got)
	}
	if res.Name != "test"+SuffixCorrMap {
		t.Errorf("name=%s; want suffix %s", res.Name, SuffixCorrMap)
	}
}

func TestCorrMapTooFewFrames(t *testing.T) {
	v := vol.NewVolume3D("test", 1, 2, 2, -32, nil)
	if _, err := CorrMap(v, io.Discard); err == nil {
		t.Errorf("single frame accepted; want error")
	}
}
