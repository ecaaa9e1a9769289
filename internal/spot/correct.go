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

package spot

import (
	"fmt"
	"io"

	"github.com/mlnoga/firefly/internal/vol"
)

// One flagged location with the flat volume offsets of its valid neighbors.
// Offsets address the spot axes only; reduce axis offsets are added on top
type correction struct {
	point       vol.Point
	baseOffset  int
	neighborOff []int
}

// Corrects bright spot artifacts by replacing each flagged sample trace
// with the mean of its non-flagged spatial neighbors.
//
// A location is flagged when its mask vote count strictly exceeds
// spotThreshold; for three-axis masks from the per-frame detector the
// threshold is forced to zero, as any positive count means flagged.
// Neighbors are all coordinates within the Chebyshev box of radius window
// around the flagged point that exist in the volume's coordinate set,
// minus all flagged points. The neighbor mean is written at the flagged
// location for every coordinate of the axes the mask does not span, e.g.
// across the full time series for a spatial mask.
//
// A mask without positive votes returns the input unchanged. A flagged
// point without valid neighbors keeps its value; both emit diagnostics.
// Mask axes must validate against the volume or an InvalidMaskShapeError
// is returned
func Correct(v *vol.Volume, mask *vol.Mask, window int32, spotThreshold int32, inPlace bool, logWriter io.Writer) (*vol.Volume, error) {
	if err := mask.CheckAgainst(v); err != nil {
		return nil, err
	}
	if mask.MaxValue() <= 0 {
		fmt.Fprintf(logWriter, "%d: No bright spots in mask %s, returning input unchanged\n", v.ID, mask.Name)
		return v, nil
	}
	if len(mask.Axes) > 2 {
		spotThreshold = 0
	}

	res := v
	if !inPlace {
		res = vol.NewVolumeFromVolume(v)
	}

	flagged := mask.Points(spotThreshold)
	flaggedSet := vol.NewPointSet(flagged...)
	fmt.Fprintf(logWriter, "%d: Correcting %d bright spots with window %d and votes>%d...\n",
		v.ID, len(flagged), window, spotThreshold)

	// Positions of the mask axes and of the remaining reduce axes in the volume
	strides := res.Strides()
	spotPos := make([]int, 0, len(mask.Axes))
	for i := range mask.Axes {
		pos, _, _ := res.Axis(mask.Axes[i].Name)
		spotPos = append(spotPos, pos)
	}
	reducePos := make([]int, 0, len(res.Axes))
	for i := range res.Axes {
		isSpot := false
		for _, p := range spotPos {
			if p == i {
				isSpot = true
			}
		}
		if !isSpot {
			reducePos = append(reducePos, i)
		}
	}

	// First pass: resolve every flagged point's neighbors against the
	// unmodified input, so corrections never read corrected values
	corrections := make([]correction, 0, len(flagged))
	isolated := 0
	for _, p := range flagged {
		baseOffset, ok := spotOffset(res, spotPos, strides, p)
		if !ok {
			continue // unreachable after CheckAgainst
		}
		neighborOff := neighborOffsets(res, spotPos, strides, p, window, flaggedSet)
		if len(neighborOff) == 0 {
			fmt.Fprintf(logWriter, "%d: No valid neighbors for bright spot %s, leaving value unchanged\n", v.ID, p)
			isolated++
			continue
		}
		corrections = append(corrections, correction{point: p, baseOffset: baseOffset, neighborOff: neighborOff})
	}

	// Second pass: write neighbor means, broadcast across the reduce axes.
	// Neighbors are never flagged, so in-place writes cannot be read back
	for _, c := range corrections {
		norm := 1.0 / float64(len(c.neighborOff))
		forEachReduceOffset(res, reducePos, strides, func(roff int) {
			sum := float64(0)
			for _, noff := range c.neighborOff {
				sum += float64(v.Data[roff+noff])
			}
			res.Data[roff+c.baseOffset] = float32(sum * norm)
		})
	}

	res.Stats.Clear()
	res.Spots = mask
	res.RenameWithSuffix(SuffixDeSpotted)
	fmt.Fprintf(logWriter, "%d: Corrected %d bright spots, %d isolated points left unchanged\n",
		v.ID, len(corrections), isolated)
	return res, nil
}

// Returns the flat offset of the point's coordinates over the spot axes
func spotOffset(v *vol.Volume, spotPos []int, strides []int, p vol.Point) (int, bool) {
	offset := 0
	for _, pos := range spotPos {
		ax := &v.Axes[pos]
		coord, ok := p.Coord(ax.Name)
		if !ok {
			return 0, false
		}
		idx, ok := ax.IndexOf(coord)
		if !ok {
			return 0, false
		}
		offset += idx * strides[pos]
	}
	return offset, true
}

// Enumerates the candidate neighbors of the flagged point: the cartesian
// product over the spot axes of all coordinates within the Chebyshev
// radius that exist in the volume, minus all flagged points. Returns their
// flat offsets over the spot axes
func neighborOffsets(v *vol.Volume, spotPos []int, strides []int, p vol.Point, window int32, flagged vol.PointSet) []int {
	type axisRange struct {
		name   string
		from   int // first positional index within the box
		to     int // one past the last positional index
		stride int
		coords []int32
	}
	ranges := make([]axisRange, len(spotPos))
	for i, pos := range spotPos {
		ax := &v.Axes[pos]
		coord, _ := p.Coord(ax.Name)
		from, to := ax.IndexRange(coord-window, coord+window)
		if from >= to {
			return nil
		}
		ranges[i] = axisRange{name: ax.Name, from: from, to: to, stride: strides[pos], coords: ax.Coords}
	}

	offsets := []int(nil)
	idx := make([]int, len(ranges))
	for i := range ranges {
		idx[i] = ranges[i].from
	}
	pairs := make([]vol.AxisCoord, len(ranges))
	for {
		offset := 0
		for i, r := range ranges {
			offset += idx[i] * r.stride
			pairs[i] = vol.AxisCoord{Axis: r.name, Coord: r.coords[idx[i]]}
		}
		if cand := vol.NewPoint(pairs...); !flagged.Contains(cand) {
			offsets = append(offsets, offset)
		}

		// advance the multi-index, last axis fastest
		i := len(ranges) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < ranges[i].to {
				break
			}
			idx[i] = ranges[i].from
		}
		if i < 0 {
			break
		}
	}
	return offsets
}

// Calls fn with every combination of flat offsets over the reduce axes
func forEachReduceOffset(v *vol.Volume, reducePos []int, strides []int, fn func(roff int)) {
	if len(reducePos) == 0 {
		fn(0)
		return
	}
	idx := make([]int, len(reducePos))
	for {
		roff := 0
		for i, pos := range reducePos {
			roff += idx[i] * strides[pos]
		}
		fn(roff)

		i := len(reducePos) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < v.Axes[reducePos[i]].Len() {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
