// Package config loads the coordinator's YAML configuration file: data
// directory, bind address, lease duration, and configured tag velocities.
// Flags and environment variables (PIPELINE_HOST, PIPELINE_PORT) still take
// precedence where cmd/stepctl wires them; this file covers what has no
// natural flag equivalent, namely the tag-velocity table.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TagConfig is one configured rate-limit tag.
type TagConfig struct {
	Tag      string `yaml:"tag"`
	Velocity int    `yaml:"velocity"`
}

// Config is the coordinator's full configuration.
type Config struct {
	DataDir   string        `yaml:"data_dir"`
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	Lease     time.Duration `yaml:"lease"`
	ChunkSize int           `yaml:"chunk_size"`
	Tags      []TagConfig   `yaml:"tags"`
}

// Default returns a Config with the reference implementation's defaults:
// bind 0.0.0.0:65432, a local ./data directory, and a 2h lease.
func Default() Config {
	return Config{
		DataDir:   "./data",
		Host:      "0.0.0.0",
		Port:      65432,
		Lease:     2 * time.Hour,
		ChunkSize: 100,
	}
}

// Load reads and parses a YAML config file at path, overlaying it onto
// Default(). A missing file is not an error; callers get defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Addr returns the host:port string to bind the wire protocol server to.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
