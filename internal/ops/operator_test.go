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

package ops

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mlnoga/firefly/internal/vol"
)

func TestMaterializeAllOrder(t *testing.T) {
	// results arrive in submission order regardless of completion order
	ins := make([]Promise, 8)
	for i := range ins {
		id := i
		ins[i] = func() (*vol.Volume, error) {
			v := vol.NewVolume3D(fmt.Sprintf("v%d", id), 1, 2, 2, -32, nil)
			v.ID = id
			return v, nil
		}
	}
	outs, err := MaterializeAll(ins, 3, false)
	if err != nil {
		t.Fatalf("MaterializeAll: %s", err)
	}
	if len(outs) != len(ins) {
		t.Fatalf("len(outs)=%d; want %d", len(outs), len(ins))
	}
	for i, v := range outs {
		if v.ID != i {
			t.Errorf("outs[%d].ID=%d; want %d", i, v.ID, i)
		}
	}
}

func TestMaterializeAllError(t *testing.T) {
	ins := []Promise{
		func() (*vol.Volume, error) { return vol.NewVolume3D("ok", 1, 2, 2, -32, nil), nil },
		func() (*vol.Volume, error) { return nil, fmt.Errorf("boom") },
	}
	_, err := MaterializeAll(ins, 2, false)
	if err == nil {
		t.Errorf("failing promise produced no error")
	}
}

func TestRemoveNils(t *testing.T) {
	a := vol.NewVolume3D("a", 1, 1, 1, -32, nil)
	b := vol.NewVolume3D("b", 1, 1, 1, -32, nil)
	res := RemoveNils([]*vol.Volume{nil, a, nil, b, nil})
	if len(res) != 2 || res[0] != a || res[1] != b {
		t.Errorf("RemoveNils kept %d entries in wrong order", len(res))
	}
}

func TestOpSequenceUnmarshal(t *testing.T) {
	data := []byte(`{"type":"seq", "steps":[
		{"type":"save", "filePattern":"out_%d.ffv"},
		{"type":"save", "filePattern":"out_%d.jpg"}
	]}`)
	seq := NewOpSequenceDefault()
	if err := json.Unmarshal(data, seq); err != nil {
		t.Fatalf("unmarshal: %s", err)
	}
	if len(seq.Steps) != 2 {
		t.Fatalf("len(steps)=%d; want 2", len(seq.Steps))
	}
	save, ok := seq.Steps[0].(*OpSave)
	if !ok {
		t.Fatalf("step type %T; want *OpSave", seq.Steps[0])
	}
	if save.FilePattern != "out_%d.ffv" {
		t.Errorf("filePattern=%s; want out_%%d.ffv", save.FilePattern)
	}
	if !save.Active {
		t.Errorf("save with pattern inactive; want active")
	}
}

func TestOpSequenceUnknownStep(t *testing.T) {
	data := []byte(`{"type":"seq", "steps":[{"type":"noSuchOp"}]}`)
	seq := NewOpSequenceDefault()
	if err := json.Unmarshal(data, seq); err == nil {
		t.Errorf("unknown operator type accepted; want error")
	}
}

func TestIsPathAllowed(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"video.ffv", true},
		{"sub/video.ffv", true},
		{"/etc/passwd", false},
		{"../video.ffv", false},
		{"sub/../../video.ffv", false},
	}
	for _, tc := range tests {
		if got := isPathAllowed(tc.path); got != tc.want {
			t.Errorf("isPathAllowed(%s)=%v; want %v", tc.path, got, tc.want)
		}
	}
}
