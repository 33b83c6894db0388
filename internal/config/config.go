// Package config provides tunable pipeline parameters loaded from YAML.
// Every structuring-element size, iteration count, and threshold setting
// the pipeline uses is named here, with defaults matching the values the
// stages were tuned with.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full set of pipeline tunables.
type Config struct {
	// Specimen configures specimen segmentation.
	Specimen struct {
		// BlurKernel is the Gaussian blur kernel side (odd).
		BlurKernel int `yaml:"blurKernel"`

		// CloseKernel is the hole-filling close kernel side (odd).
		CloseKernel int `yaml:"closeKernel"`

		// CloseIterations is the hole-filling close repeat count.
		CloseIterations int `yaml:"closeIterations"`

		// Connectivity is the component adjacency, 4 or 8.
		Connectivity int `yaml:"connectivity"`
	} `yaml:"specimen"`

	// Crack configures crack-ridge detection.
	Crack struct {
		// ClipLimit bounds adaptive-equalization contrast amplification.
		ClipLimit float64 `yaml:"clipLimit"`

		// TileGrid is the equalization tile grid side.
		TileGrid int `yaml:"tileGrid"`

		// BlackhatKernel is the ridge structuring element side (odd).
		BlackhatKernel int `yaml:"blackhatKernel"`

		// BridgeKernel is the gap-bridging element side (odd).
		BridgeKernel int `yaml:"bridgeKernel"`

		// DilateIterations thickens the raw crack mask.
		DilateIterations int `yaml:"dilateIterations"`

		// CloseIterations bridges breaks in crack lines.
		CloseIterations int `yaml:"closeIterations"`
	} `yaml:"crack"`

	// Particle configures fragment counting.
	Particle struct {
		// OpenKernel is the speckle-removal element side (odd).
		OpenKernel int `yaml:"openKernel"`

		// OpenIterations is the speckle-removal repeat count.
		OpenIterations int `yaml:"openIterations"`

		// Connectivity is the component adjacency, 4 or 8.
		Connectivity int `yaml:"connectivity"`

		// MinArea is the default noise-floor area filter in pixels,
		// used when the caller does not override it.
		MinArea int `yaml:"minArea"`
	} `yaml:"particle"`

	// Batch configures multi-image processing.
	Batch struct {
		// Concurrency is the maximum number of images processed at once.
		Concurrency int `yaml:"concurrency"`
	} `yaml:"batch"`
}

// Default returns the built-in tuning.
func Default() Config {
	var c Config
	c.Specimen.BlurKernel = 5
	c.Specimen.CloseKernel = 9
	c.Specimen.CloseIterations = 2
	c.Specimen.Connectivity = 8
	c.Crack.ClipLimit = 2.0
	c.Crack.TileGrid = 8
	c.Crack.BlackhatKernel = 11
	c.Crack.BridgeKernel = 3
	c.Crack.DilateIterations = 1
	c.Crack.CloseIterations = 2
	c.Particle.OpenKernel = 3
	c.Particle.OpenIterations = 1
	c.Particle.Connectivity = 8
	c.Particle.MinArea = 350
	c.Batch.Concurrency = 4
	return c
}

// Load reads a YAML file over the defaults, so a file only needs to name
// the settings it changes.
func Load(path string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return c, nil
}

// Validate checks settings the stage-level validators do not see.
func (c Config) Validate() error {
	if c.Particle.MinArea <= 0 {
		return fmt.Errorf("particle.minArea must be positive, got %d", c.Particle.MinArea)
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be at least 1, got %d", c.Batch.Concurrency)
	}
	return nil
}
