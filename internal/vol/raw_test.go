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
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/valyala/fastrand"
)

func TestRawRoundtrip(t *testing.T) {
	v := NewVolume("roundtrip", []Axis{
		NewAxis(AxisFrame, 4),
		{Name: AxisHeight, Coords: []int32{3, 5, 7}},
		NewAxis(AxisWidth, 5),
	}, -32, nil)
	rng := fastrand.RNG{}
	for i := range v.Data {
		v.Data[i] = float32(rng.Uint32n(65536)) / 256
	}

	buf := bytes.Buffer{}
	if err := v.Write(&buf); err != nil {
		t.Fatalf("write error %s", err)
	}
	r, err := ReadVolume(&buf, 7)
	if err != nil {
		t.Fatalf("read error %s", err)
	}
	if r.ID != 7 || r.Bitpix != -32 {
		t.Errorf("id=%d bitpix=%d; want 7 -32", r.ID, r.Bitpix)
	}
	if len(r.Axes) != 3 {
		t.Fatalf("axes=%d; want 3", len(r.Axes))
	}
	for i := range v.Axes {
		if r.Axes[i].Name != v.Axes[i].Name || !EqualCoords(r.Axes[i].Coords, v.Axes[i].Coords) {
			t.Errorf("axis %d=%s %v; want %s %v", i,
				r.Axes[i].Name, r.Axes[i].Coords, v.Axes[i].Name, v.Axes[i].Coords)
		}
	}
	for i := range v.Data {
		if r.Data[i] != v.Data[i] {
			t.Fatalf("data[%d]=%f; want %f", i, r.Data[i], v.Data[i])
		}
	}
}

func TestRawRoundtrip8Bit(t *testing.T) {
	v := NewVolume3D("bytes", 2, 2, 2, 8, nil)
	copy(v.Data, []float32{0, 1, 127, 255, 300, -2, 42, 200})

	buf := bytes.Buffer{}
	if err := v.Write(&buf); err != nil {
		t.Fatalf("write error %s", err)
	}
	r, err := ReadVolume(&buf, 0)
	if err != nil {
		t.Fatalf("read error %s", err)
	}
	// out-of-range samples clamp to [0,255] on write
	want := []float32{0, 1, 127, 255, 255, 0, 42, 200}
	for i, e := range want {
		if r.Data[i] != e {
			t.Errorf("data[%d]=%f; want %f", i, r.Data[i], e)
		}
	}
}

func TestReadVolumeRejectsGarbage(t *testing.T) {
	garbage := [][]byte{
		[]byte("SIMPLE  ="),                         // wrong magic
		{'F', 'F', 'L', 'Y', 99, 0xe0, 1},           // wrong version
		{'F', 'F', 'L', 'Y', rawVersion, 16, 1},     // unsupported bitpix
		{'F', 'F', 'L', 'Y', rawVersion, 0xe0, 250}, // too many axes
	}
	for i, g := range garbage {
		if _, err := ReadVolume(bytes.NewReader(g), 0); err == nil {
			t.Errorf("garbage %d accepted; want error", i)
		}
	}
}

func TestVolumeFileGzip(t *testing.T) {
	v := NewVolume3D("gz", 2, 3, 3, -32, nil)
	for i := range v.Data {
		v.Data[i] = float32(i) * 0.5
	}

	fileName := filepath.Join(t.TempDir(), "gz.ffv.gz")
	if err := v.WriteFile(fileName); err != nil {
		t.Fatalf("write error %s", err)
	}
	r, err := NewVolumeFromFile(fileName, 3, io.Discard)
	if err != nil {
		t.Fatalf("read error %s", err)
	}
	// the container stores no name, so the reader derives it from the file name
	if r.Name != "gz.ffv" || r.FileName != fileName {
		t.Errorf("name=%q fileName=%q; want %q %q", r.Name, r.FileName, "gz.ffv", fileName)
	}
	for i := range v.Data {
		if r.Data[i] != v.Data[i] {
			t.Fatalf("data[%d]=%f; want %f", i, r.Data[i], v.Data[i])
		}
	}
}
