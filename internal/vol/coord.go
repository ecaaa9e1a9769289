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

// One axis name and a coordinate label on that axis
type AxisCoord struct {
	Axis  string
	Coord int32
}

// An immutable, order-independent mapping from axis names to single
// coordinate labels, identifying one location in a volume or mask. Pairs
// are stored sorted by axis name, so two points built from the same pairs
// in any order compare equal, and points can key maps and sets directly
type Point struct {
	n  int
	ac [3]AxisCoord
}

// Creates a point from the given axis/coordinate pairs, in any order.
// At most three pairs are supported; axis names must be distinct
func NewPoint(pairs ...AxisCoord) Point {
	p := Point{n: len(pairs)}
	copy(p.ac[:], pairs)
	for i := 1; i < p.n; i++ { // insertion sort by axis name
		for j := i; j > 0 && p.ac[j].Axis < p.ac[j-1].Axis; j-- {
			p.ac[j], p.ac[j-1] = p.ac[j-1], p.ac[j]
		}
	}
	return p
}

// Returns the number of axis/coordinate pairs in the point
func (p Point) Len() int { return p.n }

// Returns the i-th pair in axis name order
func (p Point) Pair(i int) AxisCoord { return p.ac[i] }

// Returns the coordinate for the given axis, or false if the axis is not
// part of the point
func (p Point) Coord(axis string) (int32, bool) {
	for i := 0; i < p.n; i++ {
		if p.ac[i].Axis == axis {
			return p.ac[i].Coord, true
		}
	}
	return 0, false
}

// Pretty-prints the point, e.g. "(height=3, width=17)"
func (p Point) String() string {
	b := strings.Builder{}
	b.WriteByte('(')
	for i := 0; i < p.n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%d", p.ac[i].Axis, p.ac[i].Coord)
	}
	b.WriteByte(')')
	return b.String()
}

// A set of points, supporting the set algebra used to combine flagged
// locations and candidate neighbors
type PointSet map[Point]struct{}

// Creates a point set from the given points
func NewPointSet(points ...Point) PointSet {
	s := make(PointSet, len(points))
	for _, p := range points {
		s[p] = struct{}{}
	}
	return s
}

// Adds a point to the set
func (s PointSet) Add(p Point) { s[p] = struct{}{} }

// Returns true if the set contains the point
func (s PointSet) Contains(p Point) bool {
	_, ok := s[p]
	return ok
}

// Returns a new set holding the points of s that are not in other
func (s PointSet) Diff(other PointSet) PointSet {
	res := make(PointSet, len(s))
	for p := range s {
		if !other.Contains(p) {
			res[p] = struct{}{}
		}
	}
	return res
}

// Returns a new set holding the points of s and other
func (s PointSet) Union(other PointSet) PointSet {
	res := make(PointSet, len(s)+len(other))
	for p := range s {
		res[p] = struct{}{}
	}
	for p := range other {
		res[p] = struct{}{}
	}
	return res
}
