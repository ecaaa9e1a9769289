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
	"fmt"
	"strings"
)

// A spot mask: integer anomaly counts over a subset of a volume's axes,
// either (height, width) from the windowed detector or (frame, height,
// width) from the per-frame detector. Entries count the detection votes
// for the location; zero means clean
type Mask struct {
	Name string
	Axes []Axis
	Data []int32
}

// Creates an all-zero mask over deep copies of the given axes
func NewMask(name string, axes []Axis) *Mask {
	numSamples := 1
	cloned := make([]Axis, len(axes))
	for i := range axes {
		cloned[i] = axes[i].Clone()
		numSamples *= cloned[i].Len()
	}
	return &Mask{
		Name: name,
		Axes: cloned,
		Data: make([]int32, numSamples),
	}
}

// Returns the flat data strides per axis, last axis varying fastest
func (m *Mask) Strides() []int {
	strides := make([]int, len(m.Axes))
	stride := 1
	for i := len(m.Axes) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= m.Axes[i].Len()
	}
	return strides
}

// Returns the largest vote count in the mask
func (m *Mask) MaxValue() int32 {
	max := int32(0)
	for _, v := range m.Data {
		if v > max {
			max = v
		}
	}
	return max
}

// Returns the number of entries whose vote count strictly exceeds the
// threshold
func (m *Mask) CountAbove(threshold int32) int {
	n := 0
	for _, v := range m.Data {
		if v > threshold {
			n++
		}
	}
	return n
}

// Returns every point whose vote count strictly exceeds the threshold,
// keyed by the mask's axes
func (m *Mask) Points(threshold int32) []Point {
	strides := m.Strides()
	points := []Point(nil)
	for i, v := range m.Data {
		if v <= threshold {
			continue
		}
		pairs := make([]AxisCoord, len(m.Axes))
		rest := i
		for a := range m.Axes {
			idx := rest / strides[a]
			rest = rest % strides[a]
			pairs[a] = AxisCoord{Axis: m.Axes[a].Name, Coord: m.Axes[a].Coords[idx]}
		}
		points = append(points, NewPoint(pairs...))
	}
	return points
}

// The mask cannot be applied to the volume: its axes are not an ordered
// subset of the volume's axes, or its coordinates exceed the volume's
type InvalidMaskShapeError struct {
	MaskAxes   []string
	VolumeAxes []string
	Reason     string
}

func (e *InvalidMaskShapeError) Error() string {
	return fmt.Sprintf("invalid mask shape: mask axes [%s] vs volume axes [%s]: %s",
		strings.Join(e.MaskAxes, ","), strings.Join(e.VolumeAxes, ","), e.Reason)
}

func axisNames(axes []Axis) []string {
	names := make([]string, len(axes))
	for i := range axes {
		names[i] = axes[i].Name
	}
	return names
}

// Validates that the mask can be applied to the volume: mask axes must be
// a subset of the volume's axes in matching order, and every mask
// coordinate must exist on the corresponding volume axis. Returns an
// InvalidMaskShapeError describing the first violation found
func (m *Mask) CheckAgainst(v *Volume) error {
	if len(m.Axes) == 0 || len(m.Axes) > len(v.Axes) {
		return &InvalidMaskShapeError{
			MaskAxes:   axisNames(m.Axes),
			VolumeAxes: axisNames(v.Axes),
			Reason:     fmt.Sprintf("mask has %d axes, volume has %d", len(m.Axes), len(v.Axes)),
		}
	}
	vi := 0
	for _, max := range m.Axes {
		for vi < len(v.Axes) && v.Axes[vi].Name != max.Name {
			vi++
		}
		if vi >= len(v.Axes) {
			return &InvalidMaskShapeError{
				MaskAxes:   axisNames(m.Axes),
				VolumeAxes: axisNames(v.Axes),
				Reason:     fmt.Sprintf("axis %q not present in volume, or out of order", max.Name),
			}
		}
		vax := &v.Axes[vi]
		for _, c := range max.Coords {
			if _, ok := vax.IndexOf(c); !ok {
				return &InvalidMaskShapeError{
					MaskAxes:   axisNames(m.Axes),
					VolumeAxes: axisNames(v.Axes),
					Reason:     fmt.Sprintf("coordinate %d on axis %q not present in volume", c, max.Name),
				}
			}
		}
		vi++
	}
	return nil
}
