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

	"github.com/mlnoga/firefly/internal/ops"
	"github.com/mlnoga/firefly/internal/spot"
	"github.com/mlnoga/firefly/internal/vol"
)

// Replace each video with its split-half temporal correlation map, a
// per-pixel quality measure of the recording
type OpCorrMap struct {
	ops.OpUnaryBase
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpCorrMapDefault() }) } // register the operator for JSON decoding

func NewOpCorrMapDefault() *OpCorrMap { return NewOpCorrMap(false) }

func NewOpCorrMap(active bool) *OpCorrMap {
	op := OpCorrMap{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "corrMap", Active: active}},
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpCorrMap) UnmarshalJSON(data []byte) error {
	type defaults OpCorrMap
	def := defaults(*NewOpCorrMapDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpCorrMap(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpCorrMap) Apply(v *vol.Volume, c *ops.Context) (result *vol.Volume, err error) {
	if !op.Active {
		return v, nil
	}
	return spot.CorrMap(v, c.Log)
}
