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

package pre

import (
	"encoding/json"
	"fmt"

	"github.com/mlnoga/firefly/internal/ops"
	"github.com/mlnoga/firefly/internal/vol"
)

const SuffixFiltered = "_Filtered"

// Removes spatially varying background illumination by subtracting a local
// moving-average from every frame, then rescaling to [0,255] and casting back
// to the input encoding. Takes one input, produces one output
type OpRemoveBackground struct {
	ops.OpUnaryBase
	Window int32 `json:"window"` // side length of the box filter
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpRemoveBackgroundDefaults() }) } // register the operator for JSON decoding

func NewOpRemoveBackgroundDefaults() *OpRemoveBackground { return NewOpRemoveBackground(51) }

func NewOpRemoveBackground(window int32) *OpRemoveBackground {
	op := &OpRemoveBackground{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "removeBackground"}},
		Window:      window,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpRemoveBackground) UnmarshalJSON(data []byte) error {
	type defaults OpRemoveBackground
	def := defaults(*NewOpRemoveBackgroundDefaults())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpRemoveBackground(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpRemoveBackground) Apply(v *vol.Volume, c *ops.Context) (result *vol.Volume, err error) {
	if op.Window <= 0 {
		return v, nil
	}
	height, width := v.FrameDims()
	if int(op.Window) > height || int(op.Window) > width {
		return nil, fmt.Errorf("%d: background window %d exceeds %dx%d pixel frame",
			v.ID, op.Window, width, height)
	}

	bitpix := v.Bitpix
	v.ForEachFrame(c.MaxThreads, func(frameIdx int, frame []float32) {
		tmp := make([]float32, len(frame))
		background := make([]float32, len(frame))
		BoxFilter2D(background, tmp, frame, width, int(op.Window))
		for i, d := range frame {
			frame[i] = d - background[i]
		}
	})
	v.Stats.Clear()
	v.Rescale(0, 255)
	v.CastTo(bitpix)
	v.RenameWithSuffix(SuffixFiltered)

	fmt.Fprintf(c.Log, "%d: Removed background with %d pixel window, now %v\n", v.ID, op.Window, v.Stats)
	return v, nil
}
