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

package ref

import (
	"encoding/json"
	"fmt"

	"github.com/mlnoga/firefly/internal/ops"
	"github.com/mlnoga/firefly/internal/vol"
)

// Filter out videos which are unusable for downstream analysis
type OpFilter struct {
	ops.OpUnaryBase
	MinRange float32 `json:"minRange"`
	MaxSpots int     `json:"maxSpots"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpFilterDefault() }) } // register the operator for JSON decoding

func NewOpFilterDefault() *OpFilter { return NewOpFilter(0, 0) }

// Filter videos by dynamic range and spot count, with zero disabling each criterion
func NewOpFilter(minRange float32, maxSpots int) *OpFilter {
	op := OpFilter{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "filter"}},
		MinRange:    minRange,
		MaxSpots:    maxSpots,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpFilter) UnmarshalJSON(data []byte) error {
	type defaults OpFilter
	def := defaults(*NewOpFilterDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpFilter(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpFilter) Apply(v *vol.Volume, c *ops.Context) (result *vol.Volume, err error) {
	if op.MinRange > 0 {
		if rng := v.Stats.Max() - v.Stats.Min(); rng < op.MinRange {
			fmt.Fprintf(c.Log, "%d: dynamic range %.4g below threshold %.4g, skipping video\n", v.ID, rng, op.MinRange)
			return nil, nil
		}
	}
	if op.MaxSpots > 0 && v.Spots != nil {
		if numSpots := v.Spots.CountAbove(0); numSpots > op.MaxSpots {
			fmt.Fprintf(c.Log, "%d: Spots=%d above threshold %d, skipping video\n", v.ID, numSpots, op.MaxSpots)
			return nil, nil
		}
	}
	return v, nil
}
