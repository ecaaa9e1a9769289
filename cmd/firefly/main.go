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

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"

	"github.com/mlnoga/firefly/internal/config"
	"github.com/mlnoga/firefly/internal/ops"
	"github.com/mlnoga/firefly/internal/ops/pre"
	"github.com/mlnoga/firefly/internal/ops/ref"
	"github.com/mlnoga/firefly/internal/rest"
	"github.com/mlnoga/firefly/internal/stats"
)

const version = "0.1.0"

var totalMiBs = memory.TotalMemory() / 1024 / 1024

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out = flag.String("out", "", "save output videos to `file` pattern, %d is replaced by the video id")
var jpg = flag.String("jpg", "%auto", "save 8bit preview of the output as JPEG to `file` pattern. `%auto` replaces suffix of output file with .jpg")
var log = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")
var quiet = flag.Bool("quiet", false, "suppress log output on stdout")

var cfgFile = flag.String("config", "firefly.yaml", "load tool settings from YAML `file` if it exists")

var threads = flag.Int64("threads", 0, "maximum number of videos to process concurrently, 0=auto based on memory")
var mem = flag.Int64("memory", 0, "total MiB of memory to use for video processing, 0=0.7x physical memory")
var lsEst = flag.Int64("lsEst", 1, "location and scale estimators 0=mean/stddev, 1=median/MAD, 2=histogram peak")

var mode = flag.String("mode", "windowed", "spot detector, one of windowed or perFrame")
var threshold = flag.Float64("threshold", 0, "windowed detector z-score threshold, <=0 adapts to the brightest regular tile")
var window = flag.Int64("window", 50, "windowed detector tile size in pixels")
var step = flag.Int64("step", 10, "windowed detector tile step in pixels")
var quantile = flag.Float64("quantile", 0.95, "perFrame detector intensity quantile in (0,1)")

var correctWindow = flag.Int64("correctWindow", 2, "neighborhood radius for spot correction in coordinate units")
var spotVotes = flag.Int64("spotVotes", 10, "minimum detector votes before a location is corrected")
var inPlace = flag.Bool("inPlace", true, "correct the input video in place instead of a copy")

var minRange = flag.Float64("minRange", 0, "skip videos with dynamic range below this value, 0=off")
var maxSpots = flag.Int64("maxSpots", 0, "skip videos with more spot detections than this, 0=off")

var scale = flag.Float64("scale", 1, "multiply all samples by this factor, 1=no op")
var offset = flag.Float64("offset", 0, "add this offset to all samples after scaling, 0=no op")
var binning = flag.Int64("binning", 0, "apply NxN binning to each frame, 0 or 1=no binning")

var debandH = flag.Float64("debandH", 0, "deband frames horizontally with given percentile in (0,100), 0=off")
var debandV = flag.Float64("debandV", 0, "deband frames vertically with given percentile in (0,100), 0=off")

var background = flag.Int64("background", 51, "background removal window in pixels, 0=off")
var stripeAxis = flag.String("stripeAxis", "height", "stripe correction reduce axis, height or width, blank=off")
var blurKernel = flag.Int64("blurKernel", 3, "gaussian blur kernel width in pixels, must be odd, 0=off")
var blurSigma = flag.Float64("blurSigma", 0, "gaussian blur sigma, <=0 derives from kernel width")

var report = flag.String("report", "", "export statistics of all videos as interactive HTML to `file`")

var addr = flag.String("addr", ":8080", "listen address for serve mode")
var chroot = flag.String("chroot", "", "filesystem sandbox directory for serve mode (requires root)")
var setuid = flag.Int("setuid", -1, "user id to drop to in serve mode, -1=off")

// Flags explicitly given on the command line. These take precedence over
// the config file
var flagsSet = map[string]bool{}

func main() {
	debug.SetGCPercent(10)
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Firefly Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (despot|filter|corr|stats|batch|serve|config|version|legal) (vid0.ffv ... vidn.ffv)

Commands:
  despot  Detect bright spots in the input videos and correct them
  filter  Remove background, correct stripes and blur the input videos
  corr    Compute split-half temporal correlation maps of the input videos
  stats   Detect bright spots and report statistics of the input videos
  batch   Run a JSON job file of operator steps, e.g. batch job.json vid*.ffv
  serve   Start the REST API server
  config  Write current settings to the YAML config file
  version Show version information
  legal   Show license and attribution information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	flag.Visit(func(f *flag.Flag) { flagsSet[f.Name] = true })

	// Overlay config file settings onto flags left at their defaults
	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(-1)
	}
	applyConfig(cfg)

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	// set defaults per command
	switch args[0] {
	case "despot":
		if *out == "" {
			*out = "despot_%d.ffv"
		}
	case "filter":
		if *out == "" {
			*out = "filtered_%d.ffv"
		}
	case "corr":
		if *out == "" {
			*out = "corr_%d.ffv"
		}
	}

	// Auto-select log and JPEG output targets
	if *log == "%auto" {
		if *out != "" {
			*log = strings.TrimSuffix(*out, filepath.Ext(*out)) + ".log"
		} else {
			*log = ""
		}
	}
	if *jpg == "%auto" {
		if *out != "" {
			*jpg = strings.TrimSuffix(*out, filepath.Ext(*out)) + ".jpg"
		} else {
			*jpg = ""
		}
	}

	// Initialize logging to stdout and to file, if selected
	var logWriter io.Writer = os.Stdout
	if *quiet {
		logWriter = io.Discard
	}
	if *log != "" {
		logFileName := *log
		if strings.Contains(logFileName, "%d") {
			logFileName = fmt.Sprintf(logFileName, 0)
		}
		f, err := os.Create(logFileName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to open logfile '%s'\n", logFileName)
			os.Exit(-1)
		}
		defer f.Close()
		logWriter = io.MultiWriter(logWriter, f)
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %s\n", err.Error())
			os.Exit(-1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %s\n", err.Error())
			os.Exit(-1)
		}
		defer pprof.StopCPUProfile()
	}

	switch args[0] {
	case "despot", "filter", "corr", "stats", "batch":
		fmt.Fprintf(logWriter, "Using location and scale estimator %d\n", *lsEst)
		stats.LSEstimator = stats.LSEstimatorMode(*lsEst)
	}

	ctx := ops.NewContext(logWriter, stats.LSEstimatorMode(*lsEst))
	if *threads > 0 {
		ctx.MaxThreads = int(*threads)
	}
	if *mem > 0 {
		ctx.MemoryMB = int(*mem)
		ctx.BatchMemoryMB = int(*mem)
	}

	// run actions
	switch args[0] {
	case "serve":
		rest.MakeSandbox(*chroot, *setuid)
		rest.Serve(*addr)

	case "stats":
		patterns := requirePatterns(args[1:], logWriter)
		clampThreads(ctx, patterns, logWriter)
		steps := []ops.Operator{
			pre.NewOpDetectSpots(*mode, float32(*threshold), int32(*window), int32(*step), float32(*quantile)),
			ref.NewOpFilter(float32(*minRange), int(*maxSpots)),
		}
		if *report != "" {
			steps = append(steps, ref.NewOpExportStats(*report))
		}
		err = runPipeline(ctx, patterns, steps...)

	case "despot":
		patterns := requirePatterns(args[1:], logWriter)
		clampThreads(ctx, patterns, logWriter)
		steps := []ops.Operator{
			pre.NewOpScaleOffset(float32(*scale), float32(*offset)),
			pre.NewOpBin(int32(*binning)),
		}
		if *minRange > 0 || *maxSpots > 0 {
			steps = append(steps,
				pre.NewOpDetectSpots(*mode, float32(*threshold), int32(*window), int32(*step), float32(*quantile)),
				ref.NewOpFilter(float32(*minRange), int(*maxSpots)))
		}
		steps = append(steps,
			pre.NewOpDespot(*mode, float32(*threshold), int32(*window), int32(*step), float32(*quantile),
				int32(*correctWindow), int32(*spotVotes), *inPlace),
			ops.NewOpSave(*out),
			ops.NewOpSave(*jpg))
		err = runPipeline(ctx, patterns, steps...)

	case "filter":
		patterns := requirePatterns(args[1:], logWriter)
		clampThreads(ctx, patterns, logWriter)
		err = runPipeline(ctx, patterns,
			pre.NewOpScaleOffset(float32(*scale), float32(*offset)),
			pre.NewOpBin(int32(*binning)),
			pre.NewOpDebandHoriz(float32(*debandH)),
			pre.NewOpDebandVert(float32(*debandV)),
			pre.NewOpRemoveBackground(int32(*background)),
			pre.NewOpStripeCorrect(*stripeAxis),
			pre.NewOpGaussianBlur(int32(*blurKernel), float32(*blurSigma)),
			ops.NewOpSave(*out),
			ops.NewOpSave(*jpg))

	case "corr":
		patterns := requirePatterns(args[1:], logWriter)
		clampThreads(ctx, patterns, logWriter)
		err = runPipeline(ctx, patterns,
			ref.NewOpCorrMap(true),
			ops.NewOpSave(*out),
			ops.NewOpSave(*jpg))

	case "batch":
		if len(args) < 2 {
			fmt.Fprintf(logWriter, "batch requires a JSON job file\n")
			os.Exit(-1)
		}
		err = runBatch(ctx, args[1], args[2:], logWriter)

	case "config":
		storeConfig(cfg)
		err = cfg.Save(*cfgFile)
		if err == nil {
			fmt.Fprintf(logWriter, "Wrote settings to %s\n", *cfgFile)
		}

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)
		fmt.Fprintf(logWriter, "CPU %s with %d physical, %d logical cores\n",
			cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores)
		fmt.Fprintf(logWriter, "Memory %d MiB physical\n", totalMiBs)

	case "legal":
		fmt.Fprint(logWriter, legal)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	elapsed := time.Now().Sub(start)
	fmt.Fprintf(logWriter, "\nDone after %v\n", elapsed)

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create memory profile: %s\n", err.Error())
			os.Exit(-1)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write allocation profile: %s\n", err.Error())
			os.Exit(-1)
		}
	}

	if err != nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		os.Exit(-1)
	}
}

// Applies config file values to all flags left at their built-in defaults.
// Flags given explicitly on the command line win
func applyConfig(cfg *config.Config) {
	apply := func(name string, value interface{}) {
		if !flagsSet[name] {
			flag.Set(name, fmt.Sprint(value))
		}
	}
	apply("threads", cfg.Processing.MaxThreads)
	apply("memory", cfg.Processing.MemoryMB)
	apply("lsEst", cfg.Processing.LSEstimator)
	apply("mode", cfg.Detect.Mode)
	apply("threshold", cfg.Detect.Threshold)
	apply("window", cfg.Detect.Window)
	apply("step", cfg.Detect.Step)
	apply("quantile", cfg.Detect.Quantile)
	apply("correctWindow", cfg.Correct.Window)
	apply("spotVotes", cfg.Correct.SpotVotes)
	apply("inPlace", cfg.Correct.InPlace)
	apply("background", cfg.Filter.Background)
	apply("stripeAxis", cfg.Filter.StripeAxis)
	apply("blurKernel", cfg.Filter.BlurKernel)
	apply("blurSigma", cfg.Filter.BlurSigma)
	apply("addr", cfg.Server.Addr)
	apply("chroot", cfg.Server.Chroot)
	apply("setuid", cfg.Server.Setuid)
}

// Stores current flag values into the config, the reverse of applyConfig
func storeConfig(cfg *config.Config) {
	cfg.Processing.MaxThreads = int(*threads)
	cfg.Processing.MemoryMB = int(*mem)
	cfg.Processing.LSEstimator = int(*lsEst)
	cfg.Detect.Mode = *mode
	cfg.Detect.Threshold = float32(*threshold)
	cfg.Detect.Window = int32(*window)
	cfg.Detect.Step = int32(*step)
	cfg.Detect.Quantile = float32(*quantile)
	cfg.Correct.Window = int32(*correctWindow)
	cfg.Correct.SpotVotes = int32(*spotVotes)
	cfg.Correct.InPlace = *inPlace
	cfg.Filter.Background = int32(*background)
	cfg.Filter.StripeAxis = *stripeAxis
	cfg.Filter.BlurKernel = int32(*blurKernel)
	cfg.Filter.BlurSigma = float32(*blurSigma)
	cfg.Server.Addr = *addr
	cfg.Server.Chroot = *chroot
	cfg.Server.Setuid = *setuid
}

// Prints usage and exits if no input file patterns are given
func requirePatterns(patterns []string, logWriter io.Writer) []string {
	if len(patterns) == 0 {
		fmt.Fprintf(logWriter, "No input files given\n\n")
		flag.Usage()
		os.Exit(-1)
	}
	return patterns
}

// Limits video-level parallelism so concurrent videos fit into the memory
// budget. The working set of a despot or filter run is about three times
// the file size. Does nothing if the user chose a thread count explicitly
func clampThreads(c *ops.Context, filePatterns []string, logWriter io.Writer) {
	if flagsSet["threads"] {
		return
	}
	maxSize := int64(0)
	for _, pattern := range filePatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.Size() > maxSize {
				maxSize = fi.Size()
			}
		}
	}
	if maxSize <= 0 {
		return
	}
	workingSetMB := int(3*maxSize/1024/1024) + 1
	limit := c.BatchMemoryMB / workingSetMB
	if limit < 1 {
		limit = 1
	}
	if limit < c.MaxThreads {
		fmt.Fprintf(logWriter, "Limiting concurrency to %d videos of ~%d MiB within the %d MiB memory budget\n",
			limit, workingSetMB, c.BatchMemoryMB)
		c.MaxThreads = limit
	}
}

// Loads the videos matching the given patterns and runs the steps on each
func runPipeline(ctx *ops.Context, filePatterns []string, steps ...ops.Operator) error {
	promises, err := ops.NewOpLoadMany(filePatterns).MakePromises(nil, ctx)
	if err != nil {
		return err
	}
	ctx.StatsTotal = len(promises)

	seq := ops.NewOpSequence(steps...)
	promises, err = seq.MakePromises(promises, ctx)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, ctx.MaxThreads, true)
	return err
}

// Runs a JSON job file holding a sequence of operator steps. Remaining
// command line arguments are loaded and fed into the sequence as inputs
func runBatch(ctx *ops.Context, jobFile string, filePatterns []string, logWriter io.Writer) error {
	data, err := os.ReadFile(jobFile)
	if err != nil {
		return fmt.Errorf("error reading job file %s: %s", jobFile, err.Error())
	}
	seq := ops.NewOpSequenceDefault()
	if err := json.Unmarshal(data, seq); err != nil {
		return fmt.Errorf("error parsing job file %s: %s", jobFile, err.Error())
	}

	m, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Running job %s with these settings:\n%s\n", jobFile, string(m))

	var promises []ops.Promise
	if len(filePatterns) > 0 {
		promises, err = ops.NewOpLoadMany(filePatterns).MakePromises(nil, ctx)
		if err != nil {
			return err
		}
		ctx.StatsTotal = len(promises)
	}
	promises, err = seq.MakePromises(promises, ctx)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, ctx.MaxThreads, true)
	return err
}
