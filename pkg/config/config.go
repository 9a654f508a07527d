// Package config provides configuration loading and management for the
// rasterization engine. It handles loading configuration from YAML files
// and provides default values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/Datafalk/cars/pkg/grid"
)

// Config represents the engine configuration loaded from YAML.
type Config struct {
	// Raster holds the aggregation parameters.
	Raster struct {
		// Resolution is the output cell size in target CRS units.
		Resolution float64 `yaml:"resolution"`

		// Sigma is the Gaussian kernel width used for the weighted
		// elevation estimate and the categorical votes. Zero selects
		// uniform weights (an infinite kernel).
		Sigma float64 `yaml:"sigma"`

		// Radius is the neighbor search radius in cell units.
		Radius int `yaml:"radius"`

		// NeighborGeometry selects the search geometry: "square" for
		// the axis-aligned cell window, "disk" for the Euclidean disk.
		NeighborGeometry string `yaml:"neighborGeometry"`

		// UndefinedValue is written to categorical cells whose vote
		// ends in an exact tie between competing codes.
		UndefinedValue float64 `yaml:"undefinedValue"`
	} `yaml:"raster"`

	// Merge holds the cloud combination parameters.
	Merge struct {
		// OnGroundMargin widens the clipping extent, in cell units.
		OnGroundMargin int `yaml:"onGroundMargin"`

		// TileBorderMargin drops points near the tile scan edges, in
		// cell units.
		TileBorderMargin int `yaml:"tileBorderMargin"`

		// WithCoords carries source scan coordinates into the merged
		// table.
		WithCoords bool `yaml:"withCoords"`
	} `yaml:"merge"`

	// Pool holds the tile job pool parameters.
	Pool struct {
		// NumWorkers bounds the number of tiles rasterized
		// concurrently.
		NumWorkers int `yaml:"numWorkers"`
	} `yaml:"pool"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Raster.Resolution = 0.5
	cfg.Raster.Sigma = 0 // uniform weights
	cfg.Raster.Radius = 1
	cfg.Raster.NeighborGeometry = "square"
	cfg.Raster.UndefinedValue = -1

	cfg.Merge.OnGroundMargin = 0
	cfg.Merge.TileBorderMargin = 0
	cfg.Merge.WithCoords = false

	cfg.Pool.NumWorkers = runtime.NumCPU()

	return cfg
}

// Validate checks the configuration, failing fast before any point is
// processed.
func (c *Config) Validate() error {
	if c.Raster.Resolution <= 0 || math.IsNaN(c.Raster.Resolution) {
		return fmt.Errorf("raster.resolution must be positive, got %v", c.Raster.Resolution)
	}
	if c.Raster.Sigma < 0 || math.IsNaN(c.Raster.Sigma) {
		return fmt.Errorf("raster.sigma must be non-negative, got %v", c.Raster.Sigma)
	}
	if c.Raster.Radius < 0 {
		return fmt.Errorf("raster.radius must be non-negative, got %d", c.Raster.Radius)
	}
	if _, err := grid.ParseGeometry(c.Raster.NeighborGeometry); err != nil {
		return fmt.Errorf("raster.neighborGeometry: %w", err)
	}
	if c.Merge.OnGroundMargin < 0 {
		return fmt.Errorf("merge.onGroundMargin must be non-negative, got %d", c.Merge.OnGroundMargin)
	}
	if c.Merge.TileBorderMargin < 0 {
		return fmt.Errorf("merge.tileBorderMargin must be non-negative, got %d", c.Merge.TileBorderMargin)
	}
	if c.Pool.NumWorkers < 1 {
		return fmt.Errorf("pool.numWorkers must be at least 1, got %d", c.Pool.NumWorkers)
	}
	return nil
}

// SigmaValue returns the kernel width as used by the aggregators: the
// configured sigma, or +Inf when the configuration selects uniform
// weights.
func (c *Config) SigmaValue() float64 {
	if c.Raster.Sigma == 0 {
		return math.Inf(1)
	}
	return c.Raster.Sigma
}

// Geometry returns the parsed neighbor-search geometry.
func (c *Config) Geometry() (grid.Geometry, error) {
	return grid.ParseGeometry(c.Raster.NeighborGeometry)
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
