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
	"github.com/mlnoga/firefly/internal/qsort"
	"github.com/mlnoga/firefly/internal/vol"
)

// Corrects horizontal banding from row readout noise. Scales every row of
// every frame so its chosen percentile matches the frame-wide median of row
// percentiles. Multiplicative, so the overall intensity range is preserved.
// Takes one input, produces one output
type OpDebandHoriz struct {
	ops.OpUnaryBase
	Percentile float32 `json:"percentile"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpDebandHorizDefaults() }) } // register the operator for JSON decoding

func NewOpDebandHorizDefaults() *OpDebandHoriz { return NewOpDebandHoriz(50) }

func NewOpDebandHoriz(percentile float32) *OpDebandHoriz {
	op := &OpDebandHoriz{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "debandHoriz"}},
		Percentile:  percentile,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpDebandHoriz) UnmarshalJSON(data []byte) error {
	type defaults OpDebandHoriz
	def := defaults(*NewOpDebandHorizDefaults())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpDebandHoriz(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpDebandHoriz) Apply(v *vol.Volume, c *ops.Context) (result *vol.Volume, err error) {
	if op.Percentile <= 0 || op.Percentile >= 100 {
		return v, nil
	}
	height, width := v.FrameDims()

	// factor ranges per frame, disjoint writes need no locking
	lowest := make([]float32, v.NumFrames())
	highest := make([]float32, v.NumFrames())

	v.ForEachFrame(c.MaxThreads, func(frameIdx int, frame []float32) {
		rowPercentiles := make([]float32, height)
		rowPercentilesClone := make([]float32, height)
		rowBuffer := make([]float32, width)

		// calculate desired percentile of each row
		k := int(float32(width) * op.Percentile * 0.01)
		for row := 0; row < height; row++ {
			copy(rowBuffer, frame[row*width:row*width+width])
			rowPercentiles[row] = qsort.QSelectFloat32(rowBuffer, k)
		}

		// calculate median of percentiles
		copy(rowPercentilesClone, rowPercentiles)
		medianOfRowPercentiles := qsort.QSelectMedianFloat32(rowPercentilesClone)

		// apply correction to each row
		lo, hi := float32(1), float32(0)
		for row := 0; row < height; row++ {
			factor := medianOfRowPercentiles / rowPercentiles[row]
			if factor < lo {
				lo = factor
			}
			if factor > hi {
				hi = factor
			}
			theRow := frame[row*width : row*width+width]
			for col, d := range theRow {
				theRow[col] = d * factor
			}
		}
		lowest[frameIdx], highest[frameIdx] = lo, hi
	})
	v.Stats.Clear()

	lo, hi := lowest[0], highest[0]
	for i := 1; i < len(lowest); i++ {
		if lowest[i] < lo {
			lo = lowest[i]
		}
		if highest[i] > hi {
			hi = highest[i]
		}
	}
	fmt.Fprintf(c.Log, "%d: De-banded horizontally with %.3fth percentile, factors in [%.3f, %.3f]\n",
		v.ID, op.Percentile, lo, hi)
	return v, nil
}

// Corrects vertical banding from column readout noise, the transpose of
// OpDebandHoriz. Takes one input, produces one output
type OpDebandVert struct {
	ops.OpUnaryBase
	Percentile float32 `json:"percentile"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpDebandVertDefaults() }) } // register the operator for JSON decoding

func NewOpDebandVertDefaults() *OpDebandVert { return NewOpDebandVert(50) }

func NewOpDebandVert(percentile float32) *OpDebandVert {
	op := &OpDebandVert{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "debandVert"}},
		Percentile:  percentile,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpDebandVert) UnmarshalJSON(data []byte) error {
	type defaults OpDebandVert
	def := defaults(*NewOpDebandVertDefaults())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpDebandVert(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpDebandVert) Apply(v *vol.Volume, c *ops.Context) (result *vol.Volume, err error) {
	if op.Percentile <= 0 || op.Percentile >= 100 {
		return v, nil
	}
	height, width := v.FrameDims()

	lowest := make([]float32, v.NumFrames())
	highest := make([]float32, v.NumFrames())

	v.ForEachFrame(c.MaxThreads, func(frameIdx int, frame []float32) {
		colPercentiles := make([]float32, width)
		colPercentilesClone := make([]float32, width)
		colBuffer := make([]float32, height)

		// calculate desired percentile of each column
		k := int(float32(height) * op.Percentile * 0.01)
		for col := 0; col < width; col++ {
			for row := 0; row < height; row++ {
				colBuffer[row] = frame[row*width+col]
			}
			colPercentiles[col] = qsort.QSelectFloat32(colBuffer, k)
		}

		// calculate median of percentiles
		copy(colPercentilesClone, colPercentiles)
		medianOfColPercentiles := qsort.QSelectMedianFloat32(colPercentilesClone)

		// apply correction to each column
		lo, hi := float32(1), float32(0)
		for col := 0; col < width; col++ {
			factor := medianOfColPercentiles / colPercentiles[col]
			if factor < lo {
				lo = factor
			}
			if factor > hi {
				hi = factor
			}
			for row := 0; row < height; row++ {
				frame[row*width+col] *= factor
			}
		}
		lowest[frameIdx], highest[frameIdx] = lo, hi
	})
	v.Stats.Clear()

	lo, hi := lowest[0], highest[0]
	for i := 1; i < len(lowest); i++ {
		if lowest[i] < lo {
			lo = lowest[i]
		}
		if highest[i] > hi {
			hi = highest[i]
		}
	}
	fmt.Fprintf(c.Log, "%d: De-banded vertically with %.3fth percentile, factors in [%.3f, %.3f]\n",
		v.ID, op.Percentile, lo, hi)
	return v, nil
}
