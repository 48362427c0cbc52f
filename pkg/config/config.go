// Package config provides configuration loading and management for
// geoassembler. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"geoassembler/pkg/geometry"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Detector layout parameters
	Detector struct {
		// QuadPositions are the (x, y) anchor positions of the four
		// quadrants, in pixels, used when no geometry file is given
		QuadPositions [4][2]float64 `yaml:"quadPositions"`

		// AsicGap is the gap in pixels between adjacent tiles within
		// a module in the idealized layout
		AsicGap float64 `yaml:"asicGap"`

		// PanelGap is the gap in pixels between modules within a
		// quadrant in the idealized layout
		PanelGap float64 `yaml:"panelGap"`
	} `yaml:"detector"`

	// Calibration session parameters
	Calibration struct {
		// Clen is the detector distance in metres, written to the
		// geometry file header
		Clen float64 `yaml:"clen"`

		// PhotonEnergy is the photon energy in eV, written to the
		// geometry file header
		PhotonEnergy float64 `yaml:"photonEnergy"`

		// StepSize is the pixel step applied per quadrant nudge
		StepSize int `yaml:"stepSize"`

		// CanvasMargin is the extra margin in pixels on each side of
		// the detector when assembling onto an explicit canvas
		CanvasMargin int `yaml:"canvasMargin"`
	} `yaml:"calibration"`

	// Output parameters
	Output struct {
		// GeometryFile is the path the adjusted geometry is saved to
		GeometryFile string `yaml:"geometryFile"`

		// PreviewFile is the path an assembled preview image is
		// saved to, if set
		PreviewFile string `yaml:"previewFile"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default detector parameters
	cfg.Detector.QuadPositions = geometry.FallbackQuadPositions
	cfg.Detector.AsicGap = geometry.DefaultAsicGap
	cfg.Detector.PanelGap = geometry.DefaultPanelGap

	// Set default calibration parameters
	cfg.Calibration.Clen = 0.119
	cfg.Calibration.PhotonEnergy = 10235
	cfg.Calibration.StepSize = 1
	cfg.Calibration.CanvasMargin = 300

	// Set default output parameters
	cfg.Output.GeometryFile = "sample.geom"
	cfg.Output.PreviewFile = ""
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
