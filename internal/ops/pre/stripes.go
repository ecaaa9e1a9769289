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

const SuffixStripeCorrected = "_Stripe_Corrected"

// Corrects row or column striping artifacts by subtracting the mean profile
// over time and the reduced spatial axis from every sample, then rescaling to
// [0,255] and casting back to the input encoding. Reducing over height removes
// column stripes, reducing over width removes row stripes. Takes one input,
// produces one output
type OpStripeCorrect struct {
	ops.OpUnaryBase
	ReduceAxis string `json:"reduceAxis"` // spatial axis averaged out of the stripe profile
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpStripeCorrectDefaults() }) } // register the operator for JSON decoding

func NewOpStripeCorrectDefaults() *OpStripeCorrect { return NewOpStripeCorrect(vol.AxisHeight) }

func NewOpStripeCorrect(reduceAxis string) *OpStripeCorrect {
	op := &OpStripeCorrect{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "stripeCorrect"}},
		ReduceAxis:  reduceAxis,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpStripeCorrect) UnmarshalJSON(data []byte) error {
	type defaults OpStripeCorrect
	def := defaults(*NewOpStripeCorrectDefaults())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpStripeCorrect(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpStripeCorrect) Apply(v *vol.Volume, c *ops.Context) (result *vol.Volume, err error) {
	if op.ReduceAxis == "" {
		return v, nil
	}
	profile, surviving, err := v.MeanProfile(op.ReduceAxis)
	if err != nil {
		return nil, fmt.Errorf("%d: %s", v.ID, err.Error())
	}

	idx, ax, _ := v.Axis(surviving.Name)
	stride := v.Strides()[idx]
	length := ax.Len()

	bitpix := v.Bitpix
	v.ForEachFrame(c.MaxThreads, func(frameIdx int, frame []float32) {
		for j, d := range frame {
			frame[j] = d - profile[(j/stride)%length]
		}
	})
	v.Stats.Clear()
	v.Rescale(0, 255)
	v.CastTo(bitpix)
	v.RenameWithSuffix(SuffixStripeCorrected)

	fmt.Fprintf(c.Log, "%d: Corrected stripes along %s with %d entry %s profile, now %v\n",
		v.ID, op.ReduceAxis, length, surviving.Name, v.Stats)
	return v, nil
}
