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
	"github.com/mlnoga/firefly/internal/spot"
	"github.com/mlnoga/firefly/internal/vol"
)

// Spot detection modes
const (
	DetectModeWindowed = "windowed" // z-scores of sliding tiles over the time-mean frame
	DetectModePerFrame = "perFrame" // per-frame quantile rank thresholding
)

// Detects anomalous bright pixels and attaches the resulting vote mask to the
// volume, for inspection or a later despot step. Takes one input, produces one output
type OpDetectSpots struct {
	ops.OpUnaryBase
	Mode      string  `json:"mode"`      // windowed or perFrame
	Threshold float32 `json:"threshold"` // windowed only: fixed z-score threshold, or <=0 for per-tile adaptive
	Window    int32   `json:"window"`    // windowed only: side length of the square tile
	Step      int32   `json:"step"`      // windowed only: stride between tile anchors
	Quantile  float32 `json:"quantile"`  // perFrame only: quantile rank above which pixels flag
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpDetectSpotsDefaults() }) } // register the operator for JSON decoding

func NewOpDetectSpotsDefaults() *OpDetectSpots {
	return NewOpDetectSpots(DetectModeWindowed, 0, 50, 10, 0.95)
}

func NewOpDetectSpots(mode string, threshold float32, window, step int32, quantile float32) *OpDetectSpots {
	op := &OpDetectSpots{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "detectSpots"}},
		Mode:        mode,
		Threshold:   threshold,
		Window:      window,
		Step:        step,
		Quantile:    quantile,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpDetectSpots) UnmarshalJSON(data []byte) error {
	type defaults OpDetectSpots
	def := defaults(*NewOpDetectSpotsDefaults())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpDetectSpots(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpDetectSpots) Apply(v *vol.Volume, c *ops.Context) (result *vol.Volume, err error) {
	mask, err := detectSpots(v, op.Mode, op.Threshold, op.Window, op.Step, op.Quantile, c)
	if err != nil {
		return nil, err
	}
	v.Spots = mask
	fmt.Fprintf(c.Log, "%d: Attached %s spot mask with maximum vote count %d\n", v.ID, op.Mode, mask.MaxValue())
	return v, nil
}

// Runs the chosen spot detector variant on the volume
func detectSpots(v *vol.Volume, mode string, threshold float32, window, step int32, quantile float32, c *ops.Context) (*vol.Mask, error) {
	switch mode {
	case DetectModeWindowed:
		return spot.DetectWindowed(v, threshold, int(window), int(step), c.Log)
	case DetectModePerFrame:
		return spot.DetectPerFrame(v, quantile, c.MaxThreads, c.Log)
	}
	return nil, fmt.Errorf("%d: unknown spot detection mode %q", v.ID, mode)
}

// Corrects anomalous bright pixels by replacing each flagged pixel's trace with
// the mean of its non-flagged spatial neighbors. Detects spots first unless a
// mask is already attached to the volume. Takes one input, produces one output
type OpDespot struct {
	ops.OpUnaryBase
	Mode          string  `json:"mode"`          // detector variant, windowed or perFrame
	Threshold     float32 `json:"threshold"`     // windowed only: fixed z-score threshold, or <=0 for per-tile adaptive
	Window        int32   `json:"window"`        // windowed only: side length of the square tile
	Step          int32   `json:"step"`          // windowed only: stride between tile anchors
	Quantile      float32 `json:"quantile"`      // perFrame only: quantile rank above which pixels flag
	CorrectWindow int32   `json:"correctWindow"` // Chebyshev radius of the neighbor search box
	SpotVotes     int32   `json:"spotVotes"`     // minimum vote count for a mask entry to correct
	InPlace       bool    `json:"inPlace"`       // mutate the input volume instead of copying
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpDespotDefaults() }) } // register the operator for JSON decoding

func NewOpDespotDefaults() *OpDespot {
	return NewOpDespot(DetectModeWindowed, 0, 50, 10, 0.95, 2, 10, true)
}

func NewOpDespot(mode string, threshold float32, window, step int32, quantile float32, correctWindow, spotVotes int32, inPlace bool) *OpDespot {
	op := &OpDespot{
		OpUnaryBase:   ops.OpUnaryBase{OpBase: ops.OpBase{Type: "despot"}},
		Mode:          mode,
		Threshold:     threshold,
		Window:        window,
		Step:          step,
		Quantile:      quantile,
		CorrectWindow: correctWindow,
		SpotVotes:     spotVotes,
		InPlace:       inPlace,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpDespot) UnmarshalJSON(data []byte) error {
	type defaults OpDespot
	def := defaults(*NewOpDespotDefaults())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpDespot(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpDespot) Apply(v *vol.Volume, c *ops.Context) (result *vol.Volume, err error) {
	mask := v.Spots
	if mask == nil {
		if mask, err = detectSpots(v, op.Mode, op.Threshold, op.Window, op.Step, op.Quantile, c); err != nil {
			return nil, err
		}
	} else {
		fmt.Fprintf(c.Log, "%d: Correcting with attached spot mask\n", v.ID)
	}
	return spot.Correct(v, mask, op.CorrectWindow, op.SpotVotes, op.InPlace, c.Log)
}
