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
	"testing"
)

func TestNewPointOrderIndependent(t *testing.T) {
	a := NewPoint(AxisCoord{AxisHeight, 3}, AxisCoord{AxisWidth, 17})
	b := NewPoint(AxisCoord{AxisWidth, 17}, AxisCoord{AxisHeight, 3})
	if a != b {
		t.Errorf("points %s and %s differ; want equal", a, b)
	}

	c := NewPoint(AxisCoord{AxisWidth, 17}, AxisCoord{AxisHeight, 3}, AxisCoord{AxisFrame, 5})
	d := NewPoint(AxisCoord{AxisFrame, 5}, AxisCoord{AxisHeight, 3}, AxisCoord{AxisWidth, 17})
	if c != d {
		t.Errorf("points %s and %s differ; want equal", c, d)
	}
	if c == a {
		t.Errorf("points %s and %s equal; want different", c, a)
	}
}

func TestPointCoord(t *testing.T) {
	p := NewPoint(AxisCoord{AxisFrame, 5}, AxisCoord{AxisHeight, 3})
	if c, ok := p.Coord(AxisFrame); !ok || c != 5 {
		t.Errorf("Coord(frame)=%d,%v; want 5,true", c, ok)
	}
	if c, ok := p.Coord(AxisHeight); !ok || c != 3 {
		t.Errorf("Coord(height)=%d,%v; want 3,true", c, ok)
	}
	if _, ok := p.Coord(AxisWidth); ok {
		t.Errorf("Coord(width) ok; want missing")
	}
}

func TestPointString(t *testing.T) {
	p := NewPoint(AxisCoord{AxisWidth, 17}, AxisCoord{AxisHeight, 3})
	want := "(height=3, width=17)"
	if p.String() != want {
		t.Errorf("String()=%q; want %q", p.String(), want)
	}
}

func TestPointSetAlgebra(t *testing.T) {
	p1 := NewPoint(AxisCoord{AxisHeight, 1}, AxisCoord{AxisWidth, 1})
	p2 := NewPoint(AxisCoord{AxisHeight, 2}, AxisCoord{AxisWidth, 2})
	p3 := NewPoint(AxisCoord{AxisHeight, 3}, AxisCoord{AxisWidth, 3})

	s := NewPointSet(p1, p2)
	if len(s) != 2 || !s.Contains(p1) || !s.Contains(p2) || s.Contains(p3) {
		t.Errorf("set %v; want {p1, p2}", s)
	}

	s.Add(p3)
	if len(s) != 3 || !s.Contains(p3) {
		t.Errorf("after Add, set %v; want {p1, p2, p3}", s)
	}
	s.Add(p3) // adding again must not grow the set
	if len(s) != 3 {
		t.Errorf("after duplicate Add, len=%d; want 3", len(s))
	}

	diff := s.Diff(NewPointSet(p2))
	if len(diff) != 2 || diff.Contains(p2) || !diff.Contains(p1) || !diff.Contains(p3) {
		t.Errorf("diff %v; want {p1, p3}", diff)
	}

	union := NewPointSet(p1).Union(NewPointSet(p2, p3))
	if len(union) != 3 {
		t.Errorf("union len=%d; want 3", len(union))
	}
}
