package record

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the recording configuration.
type Config struct {
	// Browser is the path to a PageGraph-enabled browser binary. Stock
	// builds do not carry the Page.generatePageGraph command.
	Browser string `yaml:"browser"`

	// OutputDir is the root for per-recording output directories.
	OutputDir string `yaml:"output_dir"`

	// Headful runs the browser with a visible window. The zero value keeps
	// it headless.
	Headful bool `yaml:"headful"`

	// Stealth creates pages with automation fingerprints masked.
	Stealth bool `yaml:"stealth"`

	UserDataDir string `yaml:"user_data_dir"`

	// Settle is how long to keep the page alive after load so late script
	// activity still lands in the graph.
	Settle time.Duration `yaml:"settle"`

	// Timeout bounds one whole recording, navigation included.
	Timeout time.Duration `yaml:"timeout"`

	// RecycleAfter is how many recordings share one browser process before
	// it is relaunched.
	RecycleAfter int `yaml:"recycle_after"`
}

func (c *Config) defaults() {
	if c.OutputDir == "" {
		c.OutputDir = "recordings"
	}
	if c.Settle <= 0 {
		c.Settle = 3 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.RecycleAfter <= 0 {
		c.RecycleAfter = 25
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
