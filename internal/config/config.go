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

// Package config loads and saves tool settings from YAML files, so shared
// processing parameters need not be repeated on every command line
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Tool settings. Zero values mean "use the built-in default" throughout,
// so a partial YAML file overrides only the entries it names
type Config struct {
	Processing struct {
		MaxThreads  int `yaml:"maxThreads"`  // maximum number of concurrent videos, 0 = all logical CPUs
		MemoryMB    int `yaml:"memoryMB"`    // memory to use in MB, 0 = autodetect
		LSEstimator int `yaml:"lsEstimator"` // location/scale estimator: 0=mean/stdDev, 1=median/MAD, 2=histogram peak
	} `yaml:"processing"`

	Detect struct {
		Mode      string  `yaml:"mode"`      // spot detector: "windowed" or "perFrame"
		Threshold float32 `yaml:"threshold"` // windowed z-score threshold, <=0 adapts to the video
		Window    int32   `yaml:"window"`    // windowed tile size in pixels
		Step      int32   `yaml:"step"`      // windowed tile step in pixels
		Quantile  float32 `yaml:"quantile"`  // per-frame intensity quantile in (0,1)
	} `yaml:"detect"`

	Correct struct {
		Window    int32 `yaml:"window"`    // neighborhood radius for spot correction
		SpotVotes int32 `yaml:"spotVotes"` // minimum votes before a location is corrected
		InPlace   bool  `yaml:"inPlace"`   // correct the input video instead of a copy
	} `yaml:"correct"`

	Filter struct {
		Background int32   `yaml:"background"` // background removal window in pixels, 0 = off
		StripeAxis string  `yaml:"stripeAxis"` // stripe correction reduce axis, "" = off
		BlurKernel int32   `yaml:"blurKernel"` // gaussian blur kernel width in pixels, 0 = off
		BlurSigma  float32 `yaml:"blurSigma"`  // gaussian blur sigma, <=0 derives from kernel width
	} `yaml:"filter"`

	Server struct {
		Addr   string `yaml:"addr"`   // listen address for serve mode
		Chroot string `yaml:"chroot"` // sandbox directory for serve mode, "" = none
		Setuid int    `yaml:"setuid"` // user id to drop to in serve mode, -1 = none
	} `yaml:"server"`
}

// Returns a configuration holding the built-in defaults
func NewConfig() *Config {
	cfg := &Config{}

	cfg.Processing.LSEstimator = 1

	cfg.Detect.Mode = "windowed"
	cfg.Detect.Window = 50
	cfg.Detect.Step = 10
	cfg.Detect.Quantile = 0.95

	cfg.Correct.Window = 2
	cfg.Correct.SpotVotes = 10
	cfg.Correct.InPlace = true

	cfg.Filter.Background = 51
	cfg.Filter.StripeAxis = "height"
	cfg.Filter.BlurKernel = 3

	cfg.Server.Addr = ":8080"
	cfg.Server.Setuid = -1

	return cfg
}

// Loads a configuration from the given YAML file, overlaying the built-in
// defaults. A missing file returns the defaults without error
func Load(fileName string) (*Config, error) {
	cfg := NewConfig()
	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		return cfg, nil
	}
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %s", fileName, err.Error())
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %s", fileName, err.Error())
	}
	return cfg, nil
}

// Saves the configuration to the given YAML file, creating directories as
// needed
func (cfg *Config) Save(fileName string) error {
	if dir := filepath.Dir(fileName); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating config directory %s: %s", dir, err.Error())
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %s", err.Error())
	}
	if err := os.WriteFile(fileName, data, 0644); err != nil {
		return fmt.Errorf("error writing config file %s: %s", fileName, err.Error())
	}
	return nil
}
