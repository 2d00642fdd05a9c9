package explore

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/pagegraph/shield"
)

// Config holds the exploration service configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// GraphDir resolves relative paths passed to Load.
	GraphDir string `yaml:"graph_dir"`

	// FilterLists are ad-block list files loaded into the default filter
	// engine. Empty means filter matching requires ad-hoc rules.
	FilterLists []string `yaml:"filter_lists"`

	// AuthHash is a bcrypt hash enabling bearer-password auth on the HTTP
	// surface. Empty disables auth.
	AuthHash string `yaml:"auth_hash"`

	// RateLimits maps "METHOD /path" endpoints to their limits.
	RateLimits map[string]shield.RateLimitConfig `yaml:"rate_limits"`
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = ":8090"
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
