package riskpipe

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vigialab/vigia/riskpipe/internal/alert"
	"github.com/vigialab/vigia/riskpipe/internal/normalize"
	"github.com/vigialab/vigia/riskpipe/internal/score"
)

// Config holds all pipeline configuration.
type Config struct {
	DBPath      string          `yaml:"db_path"`
	CountryCode string          `yaml:"country_code"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	Weights     score.Weights   `yaml:"weights"`
	Alerts      alert.Config    `yaml:"alerts"`
	API         APIConfig       `yaml:"api"`
}

// PipelineConfig controls the ingestion cycle.
type PipelineConfig struct {
	Interval  time.Duration `yaml:"interval"`   // cycle cadence
	BatchSize int           `yaml:"batch_size"` // raw records per cycle
}

// APIConfig controls the HTTP surface.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "vigia.db"
	}
	if c.CountryCode == "" {
		c.CountryCode = normalize.DefaultCountryCode
	}
	if c.Pipeline.Interval <= 0 {
		c.Pipeline.Interval = 15 * time.Minute
	}
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = 500
	}
	if c.Weights == (score.Weights{}) {
		c.Weights = score.DefaultWeights
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8090"
	}
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
