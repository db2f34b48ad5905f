// Package config holds the inkdistill configuration file format, defaults,
// and environment overrides. Config values seed CLI flag defaults; explicit
// flags always win.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all inkdistill configuration.
type Config struct {
	// Windowing and sharding parameters for the build pipeline
	Build BuildConfig `yaml:"build"`

	// Teacher backend selection
	Teacher TeacherConfig `yaml:"teacher"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BuildConfig configures the windowing/sharding pipeline.
type BuildConfig struct {
	MaxLen           int    `yaml:"max_len"`
	Overlap          int    `yaml:"overlap"`
	ShardSize        int    `yaml:"shard_size"`
	Normalize        string `yaml:"normalize"` // meanstd, none
	ZeroStrokeStarts bool   `yaml:"zero_stroke_starts"`
}

// TeacherConfig configures the teacher oracle.
type TeacherConfig struct {
	Backend string `yaml:"backend"` // identity, subprocess
	Command string `yaml:"command"`
	Prefix  string `yaml:"prefix"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Build: BuildConfig{
			MaxLen:    512,
			Overlap:   0,
			ShardSize: 2048,
			Normalize: "meanstd",
		},
		Teacher: TeacherConfig{
			Backend: "identity",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if cmd := os.Getenv("INKDISTILL_TEACHER_CMD"); cmd != "" {
		c.Teacher.Command = cmd
		if c.Teacher.Backend == "" || c.Teacher.Backend == "identity" {
			c.Teacher.Backend = "subprocess"
		}
	}
	if prefix := os.Getenv("INKDISTILL_TEACHER_PREFIX"); prefix != "" {
		c.Teacher.Prefix = prefix
	}
	if level := os.Getenv("INKDISTILL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
