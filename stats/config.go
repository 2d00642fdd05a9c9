package stats

import (
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// DefaultDBPath is where results land when no database path is configured.
const DefaultDBPath = "pagegraph-stats.db"

// Config holds the batch statistics configuration.
type Config struct {
	DBPath       string   `yaml:"db_path"`
	Workers      int      `yaml:"workers"`
	HotThreshold int      `yaml:"hot_threshold"`
	FilterLists  []string `yaml:"filter_lists"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.HotThreshold <= 0 {
		c.HotThreshold = DefaultHotThreshold
	}
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
