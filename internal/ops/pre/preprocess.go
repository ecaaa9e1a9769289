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

// Applies the linear pixel math x = x*scale + offset to every sample.
// Takes one input, produces one output
type OpScaleOffset struct {
	ops.OpUnaryBase
	Scale  float32 `json:"scale"`
	Offset float32 `json:"offset"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpScaleOffsetDefault() }) } // register the operator for JSON decoding

func NewOpScaleOffsetDefault() *OpScaleOffset { return NewOpScaleOffset(1, 0) }

func NewOpScaleOffset(scale, offset float32) *OpScaleOffset {
	op := &OpScaleOffset{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "scaleOffset"}},
		Scale:       scale,
		Offset:      offset,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpScaleOffset) UnmarshalJSON(data []byte) error {
	type defaults OpScaleOffset
	def := defaults(*NewOpScaleOffsetDefault())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpScaleOffset(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpScaleOffset) Apply(v *vol.Volume, c *ops.Context) (vOut *vol.Volume, err error) {
	if op.Scale == 1 && op.Offset == 0 {
		return v, nil
	}
	fmt.Fprintf(c.Log, "%d: Applying pixel math x = x * %.3f + %.3f\n", v.ID, op.Scale, op.Offset)
	v.ApplyScaleOffset(op.Scale, op.Offset)
	return v, nil
}

// Bins the spatial axes of every frame by NxN, averaging blocks of samples.
// Cuts memory and speeds up downstream detection at the cost of resolution.
// Takes one input, produces one output
type OpBin struct {
	ops.OpUnaryBase
	BinSize int32 `json:"binSize"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpBinDefaults() }) } // register the operator for JSON decoding

func NewOpBinDefaults() *OpBin { return NewOpBin(1) }

func NewOpBin(binning int32) *OpBin {
	op := &OpBin{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "bin"}},
		BinSize:     binning,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpBin) UnmarshalJSON(data []byte) error {
	type defaults OpBin
	def := defaults(*NewOpBinDefaults())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpBin(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpBin) Apply(v *vol.Volume, c *ops.Context) (result *vol.Volume, err error) {
	if op.BinSize <= 1 {
		return v, nil
	}
	v, err = vol.NewVolumeBinNxN(v, op.BinSize)
	if err != nil {
		return nil, err
	}
	height, width := v.FrameDims()
	fmt.Fprintf(c.Log, "%d: After %dx%d binning, new frame size %dx%d\n", v.ID, op.BinSize, op.BinSize, width, height)
	return v, nil
}
