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

package rest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mlnoga/firefly/internal/vol"
)

func init() { gin.SetMode(gin.TestMode) }

func serveJSON(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	NewRouter().ServeHTTP(w, req)
	return w
}

func TestGetPing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	w := httptest.NewRecorder()
	NewRouter().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d; want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "pong") {
		t.Errorf("body=%s; want pong", w.Body.String())
	}
}

func TestGetIndex(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	NewRouter().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d; want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type=%s; want text/html", ct)
	}
}

func TestPostDespotBadRequest(t *testing.T) {
	w := serveJSON(http.MethodPost, "/api/v1/despot", `{"despot":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code=%d; want %d", w.Code, http.StatusBadRequest)
	}
	if !strings.Contains(w.Body.String(), "error") {
		t.Errorf("body=%s; want an error message", w.Body.String())
	}
}

func TestPostFilterNoSteps(t *testing.T) {
	w := serveJSON(http.MethodPost, "/api/v1/filter", `{"filePatterns":["*.ffv"]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code=%d; want %d", w.Code, http.StatusBadRequest)
	}
	if !strings.Contains(w.Body.String(), "no filter steps given") {
		t.Errorf("body=%s; want no filter steps given", w.Body.String())
	}
}

func TestPostDespotPayload(t *testing.T) {
	v := vol.NewVolume3D("", 2, 3, 3, -32, []float32{
		1, 2, 3, 4, 5, 6, 7, 8, 9,
		11, 12, 13, 14, 15, 16, 17, 18, 19,
	})
	buf := bytes.Buffer{}
	if err := v.Write(&buf); err != nil {
		t.Fatalf("write: %s", err)
	}
	payload := base64.StdEncoding.EncodeToString(buf.Bytes())
	body := fmt.Sprintf(`{"payload":%q, "despot":{"type":"despot", "mode":"perFrame", "quantile":0.5}}`, payload)

	w := serveJSON(http.MethodPost, "/api/v1/despot", body)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d; want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type=%s; want text/plain", ct)
	}
	log := w.Body.String()
	if !strings.Contains(log, "Arguments:") {
		t.Errorf("log misses the arguments echo: %s", log)
	}
	if strings.Contains(log, payload) {
		t.Errorf("log echoes the raw payload")
	}
	if !strings.Contains(log, "payload bytes") {
		t.Errorf("log misses the payload load line: %s", log)
	}
	if !strings.Contains(log, "Corrected") {
		t.Errorf("log misses the correction summary: %s", log)
	}
	if strings.Contains(log, "error:") || strings.Contains(log, "Error loading videos") {
		t.Errorf("job failed: %s", log)
	}
}

func TestPostDespotBadPayload(t *testing.T) {
	w := serveJSON(http.MethodPost, "/api/v1/despot", `{"payload":"not base64!!!"}`)
	if w.Code != http.StatusOK { // errors stream into the plain-text log
		t.Fatalf("code=%d; want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "Error loading videos") {
		t.Errorf("body=%s; want a load error in the log", w.Body.String())
	}
}
