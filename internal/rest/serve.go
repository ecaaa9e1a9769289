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
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mlnoga/firefly/internal/ops"
	"github.com/mlnoga/firefly/internal/ops/pre"
	"github.com/mlnoga/firefly/internal/ops/ref"
	"github.com/mlnoga/firefly/internal/stats"
	"github.com/mlnoga/firefly/internal/vol"
	"github.com/mlnoga/firefly/web"
)

// Assembles the gin engine with all routes
func NewRouter() *gin.Engine {
	r := gin.Default()
	r.GET("/", getIndex)
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/stats", postStats)
			v1.POST("/despot", postDespot)
			v1.POST("/filter", postFilter)
			v1.POST("/corr", postCorr)
		}
	}
	return r
}

// Runs the REST API server on the given address until interrupted
func Serve(addr string) {
	NewRouter().Run(addr)
}

func getIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Turns a base64-encoded raw volume payload into a single load promise.
// Transparently decompresses gzipped payloads
func payloadPromises(payload string, ctx *ops.Context) ([]ops.Promise, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding volume payload: %s", err.Error())
	}
	promise := func() (v *vol.Volume, err error) {
		var r io.Reader = bytes.NewReader(raw)
		if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
			if r, err = gzip.NewReader(r); err != nil {
				return nil, err
			}
		}
		if v, err = vol.ReadVolume(r, 0); err != nil {
			return nil, err
		}
		if v.Name == "" {
			v.Name = "payload"
		}
		fmt.Fprintf(ctx.Log, "%d: read %s volume %s from %d payload bytes\n",
			v.ID, v.DimensionsToString(), v.Name, len(raw))
		return v, nil
	}
	return []ops.Promise{promise}, nil
}

// Streams a text/plain processing log to the client while loading the videos
// from the inline payload or the given patterns, and running the steps on
// each of them
func runJob(c *gin.Context, args interface{}, filePatterns []string, payload string, steps ...ops.Operator) {
	logWriter := c.Writer
	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	ctx := ops.NewContext(logWriter, stats.LSEstimator)
	var promises []ops.Promise
	var err error
	if payload != "" {
		promises, err = payloadPromises(payload, ctx)
	} else {
		promises, err = ops.NewOpLoadMany(filePatterns).MakePromises(nil, ctx)
	}
	if err != nil {
		fmt.Fprintf(logWriter, "Error loading videos: %s\n", err.Error())
		return
	}
	ctx.StatsTotal = len(promises)

	seq := ops.NewOpSequence(steps...)
	promises, err = seq.MakePromises(promises, ctx)
	if err == nil {
		_, err = ops.MaterializeAll(promises, ctx.MaxThreads, true)
	}
	if err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	}
	logWriter.(http.Flusher).Flush()
}

type postStatsArgs struct {
	FilePatterns []string           `json:"filePatterns"`
	Payload      string             `json:"payload,omitempty"`
	DetectSpots  *pre.OpDetectSpots `json:"detectSpots"`
	ExportStats  *ref.OpExportStats `json:"exportStats"`
}

func postStats(c *gin.Context) {
	var args postStatsArgs
	if err := c.ShouldBind(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.DetectSpots == nil {
		args.DetectSpots = pre.NewOpDetectSpotsDefaults()
	}
	steps := []ops.Operator{args.DetectSpots}
	if args.ExportStats != nil {
		steps = append(steps, args.ExportStats)
	}
	payload := args.Payload
	args.Payload = "" // don't echo the payload into the log
	runJob(c, args, args.FilePatterns, payload, steps...)
}

type postDespotArgs struct {
	FilePatterns []string      `json:"filePatterns"`
	Payload      string        `json:"payload,omitempty"`
	Despot       *pre.OpDespot `json:"despot"`
	Save         *ops.OpSave   `json:"save"`
}

func postDespot(c *gin.Context) {
	var args postDespotArgs
	if err := c.ShouldBind(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.Despot == nil {
		args.Despot = pre.NewOpDespotDefaults()
	}
	steps := []ops.Operator{args.Despot}
	if args.Save != nil {
		steps = append(steps, args.Save)
	}
	payload := args.Payload
	args.Payload = "" // don't echo the payload into the log
	runJob(c, args, args.FilePatterns, payload, steps...)
}

type postFilterArgs struct {
	FilePatterns     []string                `json:"filePatterns"`
	Payload          string                  `json:"payload,omitempty"`
	RemoveBackground *pre.OpRemoveBackground `json:"removeBackground"`
	StripeCorrect    *pre.OpStripeCorrect    `json:"stripeCorrect"`
	GaussianBlur     *pre.OpGaussianBlur     `json:"gaussianBlur"`
	Save             *ops.OpSave             `json:"save"`
}

func postFilter(c *gin.Context) {
	var args postFilterArgs
	if err := c.ShouldBind(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	steps := []ops.Operator{}
	if args.RemoveBackground != nil {
		steps = append(steps, args.RemoveBackground)
	}
	if args.StripeCorrect != nil {
		steps = append(steps, args.StripeCorrect)
	}
	if args.GaussianBlur != nil {
		steps = append(steps, args.GaussianBlur)
	}
	if args.Save != nil {
		steps = append(steps, args.Save)
	}
	if len(steps) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no filter steps given"})
		return
	}
	payload := args.Payload
	args.Payload = "" // don't echo the payload into the log
	runJob(c, args, args.FilePatterns, payload, steps...)
}

type postCorrArgs struct {
	FilePatterns []string       `json:"filePatterns"`
	Payload      string         `json:"payload,omitempty"`
	CorrMap      *ref.OpCorrMap `json:"corrMap"`
	Save         *ops.OpSave    `json:"save"`
}

func postCorr(c *gin.Context) {
	var args postCorrArgs
	if err := c.ShouldBind(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.CorrMap == nil {
		args.CorrMap = ref.NewOpCorrMap(true)
	}
	steps := []ops.Operator{args.CorrMap}
	if args.Save != nil {
		steps = append(steps, args.Save)
	}
	payload := args.Payload
	args.Payload = "" // don't echo the payload into the log
	runJob(c, args, args.FilePatterns, payload, steps...)
}
