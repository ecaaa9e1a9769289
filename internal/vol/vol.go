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
	"sort"
	"strings"

	"github.com/mlnoga/firefly/internal/stats"
)

// Canonical axis names of a video volume, in storage order
const (
	AxisFrame  = "frame"
	AxisHeight = "height"
	AxisWidth  = "width"
)

// An axis of a video volume: a name plus the ordered set of integer
// coordinate labels along that axis. Coordinates are strictly increasing
// and need not be contiguous, e.g. after cropping or temporal subsampling
type Axis struct {
	Name   string
	Coords []int32
}

// Creates an axis with contiguous coordinates 0..n-1
func NewAxis(name string, n int) Axis {
	coords := make([]int32, n)
	for i := range coords {
		coords[i] = int32(i)
	}
	return Axis{Name: name, Coords: coords}
}

// Returns the number of coordinates on the axis
func (a *Axis) Len() int { return len(a.Coords) }

// Returns the positional index of the given coordinate label, or false if
// the label does not exist on this axis. Contiguous zero-based axes resolve
// in constant time, others via binary search
func (a *Axis) IndexOf(coord int32) (int, bool) {
	if int(coord) >= 0 && int(coord) < len(a.Coords) && a.Coords[coord] == coord {
		return int(coord), true
	}
	i := sort.Search(len(a.Coords), func(i int) bool { return a.Coords[i] >= coord })
	if i < len(a.Coords) && a.Coords[i] == coord {
		return i, true
	}
	return -1, false
}

// Returns the positional index range [from, to) of the coordinates lying
// within [lo, hi] inclusive. Empty ranges return from >= to
func (a *Axis) IndexRange(lo, hi int32) (from, to int) {
	from = sort.Search(len(a.Coords), func(i int) bool { return a.Coords[i] >= lo })
	to = sort.Search(len(a.Coords), func(i int) bool { return a.Coords[i] > hi })
	return from, to
}

// Returns a deep copy of the axis
func (a *Axis) Clone() Axis {
	return Axis{Name: a.Name, Coords: append([]int32(nil), a.Coords...)}
}

// Returns true if both slices hold the same coordinates in the same order
func EqualCoords(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}

// A video volume: a labeled array of samples indexed by named, ordered
// axes, canonically (frame, height, width) with the last axis varying
// fastest in the flat data array. Samples are float32 in memory; Bitpix
// records the at-rest sample encoding (-32 float, 8 unsigned byte)
type Volume struct {
	ID       int    // Sequential ID number, for log output. Counted upwards from 0
	FileName string // Original file name, if any, for log output
	Name     string // Dataset name; transforms append a suffix describing the operation

	Bitpix int32  // Bits per sample at rest. Positive values are integral, negative floating
	Axes   []Axis // Axis names and coordinate labels, last axis varying fastest
	Data   []float32

	Stats *stats.Stats // Lazily evaluated sample statistics
	Spots *Mask        // Bright-spot detections, if a detector has run
}

// Creates a volume with the given axes. Data is not copied, allocated if
// nil. Axes are deep copied
func NewVolume(name string, axes []Axis, bitpix int32, data []float32) *Volume {
	numSamples := 1
	for _, ax := range axes {
		numSamples *= ax.Len()
	}
	if data == nil {
		data = make([]float32, numSamples)
	}
	cloned := make([]Axis, len(axes))
	for i := range axes {
		cloned[i] = axes[i].Clone()
	}
	width := int32(1)
	if len(cloned) > 0 {
		width = int32(cloned[len(cloned)-1].Len())
	}
	return &Volume{
		ID:     0,
		Name:   name,
		Bitpix: bitpix,
		Axes:   cloned,
		Data:   data,
		Stats:  stats.NewStats(data, width),
	}
}

// Creates a volume with contiguous zero-based (frame, height, width) axes
func NewVolume3D(name string, frames, height, width int, bitpix int32, data []float32) *Volume {
	return NewVolume(name, []Axis{
		NewAxis(AxisFrame, frames),
		NewAxis(AxisHeight, height),
		NewAxis(AxisWidth, width),
	}, bitpix, data)
}

// Creates a deep copy of the given volume with a freshly allocated data
// array holding the same samples
func NewVolumeFromVolume(v *Volume) *Volume {
	data := make([]float32, len(v.Data))
	copy(data, v.Data)
	res := NewVolume(v.Name, v.Axes, v.Bitpix, data)
	res.ID = v.ID
	res.FileName = v.FileName
	res.Spots = v.Spots
	return res
}

// Creates a new volume by averaging each frame of the given volume in NxN
// blocks. Trailing rows and columns which do not fill a complete block are
// discarded. Binned axes keep the first coordinate label of each block.
// Any attached spot mask is dropped, as detections are tied to the unbinned
// geometry
func NewVolumeBinNxN(src *Volume, n int32) (*Volume, error) {
	numAxes := len(src.Axes)
	if numAxes < 2 {
		return nil, fmt.Errorf("%d: cannot bin volume with %d axes", src.ID, numAxes)
	}
	height, width := src.FrameDims()
	binnedHeight, binnedWidth := height/int(n), width/int(n)
	if binnedHeight < 1 || binnedWidth < 1 {
		return nil, fmt.Errorf("%d: cannot bin %dx%d frame by %d", src.ID, height, width, n)
	}

	axes := make([]Axis, 0, numAxes)
	for i := 0; i < numAxes-2; i++ {
		axes = append(axes, src.Axes[i].Clone())
	}
	axes = append(axes, binAxis(&src.Axes[numAxes-2], n, binnedHeight))
	axes = append(axes, binAxis(&src.Axes[numAxes-1], n, binnedWidth))

	res := NewVolume(src.Name, axes, -32, nil)
	res.ID = src.ID
	res.FileName = src.FileName

	normalizer := 1.0 / float32(n*n)
	for f, numFrames := 0, src.NumFrames(); f < numFrames; f++ {
		frame, binned := src.Frame(f), res.Frame(f)
		for y := 0; y < binnedHeight; y++ {
			for x := 0; x < binnedWidth; x++ {
				sum := float32(0)
				for dy := 0; dy < int(n); dy++ {
					row := frame[(y*int(n)+dy)*width:]
					for dx := 0; dx < int(n); dx++ {
						sum += row[x*int(n)+dx]
					}
				}
				binned[y*binnedWidth+x] = sum * normalizer
			}
		}
	}
	return res, nil
}

// Returns a copy of the axis binned by n, keeping the first coordinate
// label of each block
func binAxis(a *Axis, n int32, cnt int) Axis {
	coords := make([]int32, cnt)
	for i := range coords {
		coords[i] = a.Coords[i*int(n)]
	}
	return Axis{Name: a.Name, Coords: coords}
}

// Returns the total number of samples, the product of all axis lengths
func (v *Volume) Size() int {
	n := 1
	for _, ax := range v.Axes {
		n *= ax.Len()
	}
	return n
}

// Returns the axis with the given name and its position, or false
func (v *Volume) Axis(name string) (int, *Axis, bool) {
	for i := range v.Axes {
		if v.Axes[i].Name == name {
			return i, &v.Axes[i], true
		}
	}
	return -1, nil, false
}

// Returns the flat data strides per axis, last axis varying fastest
func (v *Volume) Strides() []int {
	strides := make([]int, len(v.Axes))
	stride := 1
	for i := len(v.Axes) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= v.Axes[i].Len()
	}
	return strides
}

// Returns the number of frames, or 1 if the volume has no frame axis
func (v *Volume) NumFrames() int {
	if _, ax, ok := v.Axis(AxisFrame); ok {
		return ax.Len()
	}
	return 1
}

// Returns the number of samples per frame
func (v *Volume) FrameSize() int {
	return v.Size() / v.NumFrames()
}

// Returns the i-th frame as a subslice of the volume data, without copying
func (v *Volume) Frame(i int) []float32 {
	fs := v.FrameSize()
	return v.Data[i*fs : (i+1)*fs]
}

// Returns the height and width of a frame, the lengths of the last two axes
func (v *Volume) FrameDims() (height, width int) {
	n := len(v.Axes)
	if n < 2 {
		return 1, v.Size()
	}
	return v.Axes[n-2].Len(), v.Axes[n-1].Len()
}

// Appends the given suffix to the volume name, tagging the end product of
// a transform
func (v *Volume) RenameWithSuffix(suffix string) {
	v.Name = v.Name + suffix
}

// Pretty-prints axis names and lengths, e.g. "frame=100 x height=250 x width=250"
func (v *Volume) DimensionsToString() string {
	b := strings.Builder{}
	for i, ax := range v.Axes {
		if i > 0 {
			fmt.Fprintf(&b, " x %s=%d", ax.Name, ax.Len())
		} else {
			fmt.Fprintf(&b, "%s=%d", ax.Name, ax.Len())
		}
	}
	return b.String()
}
