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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlnoga/firefly/internal/vol"
)

func TestOpExportStatsUnmarshalDefaults(t *testing.T) {
	op := NewOpExportStatsDefault()
	if err := json.Unmarshal([]byte(`{"type":"exportStats"}`), op); err != nil {
		t.Fatalf("unmarshal: %s", err)
	}
	if op.FileName != "out.html" {
		t.Errorf("fileName=%s; want default out.html", op.FileName)
	}
	if op.mutex == nil {
		t.Errorf("unmarshal left the mutex nil")
	}
}

func TestOpExportStatsWritesReport(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "stats.html")
	op := NewOpExportStats(fileName)
	c := testContext()
	c.StatsTotal = 2

	for i := 0; i < 2; i++ {
		v := vol.NewVolume3D(fmt.Sprintf("v%d", i), 1, 2, 2, -32, []float32{1, 2, 3, 4})
		v.ID = i
		if _, err := op.Apply(v, c); err != nil {
			t.Fatalf("Apply %d: %s", i, err)
		}
	}
	if c.StatsFile != nil {
		t.Errorf("statistics file left open after the footer")
	}

	data, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatalf("read report: %s", err)
	}
	s := string(data)
	if !strings.Contains(s, "videoStatsChart") || !strings.Contains(s, "drawChart") {
		t.Errorf("report misses the chart scaffolding")
	}
	for i := 0; i < 2; i++ {
		if !strings.Contains(s, fmt.Sprintf(",[%d,", i)) {
			t.Errorf("report misses the data row for video %d", i)
		}
	}
}
