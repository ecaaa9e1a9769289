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

const SuffixBlurred = "_Blurred"

// Smoothes every frame with a separable 2D gaussian kernel of fixed width.
// Takes one input, produces one output
type OpGaussianBlur struct {
	ops.OpUnaryBase
	KernelSize int32   `json:"kernelSize"` // kernel width, must be odd
	Sigma      float32 `json:"sigma"`      // standard deviation, or <=0 to derive from the kernel width
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpGaussianBlurDefaults() }) } // register the operator for JSON decoding

func NewOpGaussianBlurDefaults() *OpGaussianBlur { return NewOpGaussianBlur(3, 0) }

func NewOpGaussianBlur(kernelSize int32, sigma float32) *OpGaussianBlur {
	op := &OpGaussianBlur{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "gaussianBlur"}},
		KernelSize:  kernelSize,
		Sigma:       sigma,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpGaussianBlur) UnmarshalJSON(data []byte) error {
	type defaults OpGaussianBlur
	def := defaults(*NewOpGaussianBlurDefaults())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpGaussianBlur(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpGaussianBlur) Apply(v *vol.Volume, c *ops.Context) (result *vol.Volume, err error) {
	if op.KernelSize <= 0 {
		return v, nil
	}
	if op.KernelSize%2 == 0 {
		return nil, fmt.Errorf("%d: blur kernel width %d is not odd", v.ID, op.KernelSize)
	}
	height, width := v.FrameDims()
	if int(op.KernelSize) > height || int(op.KernelSize) > width {
		return nil, fmt.Errorf("%d: blur kernel width %d exceeds %dx%d pixel frame",
			v.ID, op.KernelSize, width, height)
	}

	sigma := op.Sigma
	if sigma <= 0 {
		sigma = SigmaForKernelWidth(int(op.KernelSize))
	}
	kernel := GaussianKernelSized(int(op.KernelSize), sigma)

	v.ForEachFrame(c.MaxThreads, func(frameIdx int, frame []float32) {
		tmp := make([]float32, len(frame))
		res := make([]float32, len(frame))
		Convolve1DX(tmp, frame, width, kernel)
		Convolve1DY(res, tmp, width, kernel)
		copy(frame, res)
	})
	v.Stats.Clear()
	v.RenameWithSuffix(SuffixBlurred)

	fmt.Fprintf(c.Log, "%d: Blurred with %d pixel gaussian kernel, sigma %.2f, now %v\n",
		v.ID, op.KernelSize, sigma, v.Stats)
	return v, nil
}
