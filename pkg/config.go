package ddrescue

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"
)

// RescueDefaults mirrors the [rescue] section of ~/.ddrescuerc: operator
// defaults for knobs the CLI would otherwise require on every
// invocation.
type RescueDefaults struct {
	ClusterSize    string `ini:"cluster_size"`
	HardBS         string `ini:"sector_size"`
	SkipBS         string `ini:"skip_size"`
	MaxSkipBS      string `ini:"max_skip_size"`
	MaxRetries     int    `ini:"max_retries"`
	MaxErrors      string `ini:"max_errors"`
	Sparse         bool   `ini:"sparse"`
	NoScrape       bool   `ini:"no_scrape"`
	NoTrim         bool   `ini:"no_trim"`
	Reverse        bool   `ini:"reverse"`
	VerboseLevel   int    `ini:"verbose_level"`
	UpdateInterval int    `ini:"update_interval_seconds"`
}

// LogDefaults mirrors the [logs] section: where the rate log and read
// log go when not overridden on the command line.
type LogDefaults struct {
	RateLogPath string `ini:"rate_log"`
	ReadLogPath string `ini:"read_log"`
}

// RcConfig is the loaded .ddrescuerc file.
type RcConfig struct {
	path string
	ini  *ini.File
}

// defaultConfigPath returns ~/.ddrescuerc.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ddrescuerc"
	}
	return filepath.Join(home, ".ddrescuerc")
}

// LoadConfig reads path (defaultConfigPath() if empty). A missing file is
// not an error: it yields an empty RcConfig whose sections decode to zero
// values.
func LoadConfig(path string) (*RcConfig, error) {
	if path == "" {
		path = defaultConfigPath()
	}
	cfg := &RcConfig{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.ini = ini.Empty()
		return cfg, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	cfg.ini = f
	return cfg, nil
}

// Rescue decodes the [rescue] section into a RescueDefaults, leaving
// unset fields at their Go zero value.
func (c *RcConfig) Rescue() (RescueDefaults, error) {
	var rd RescueDefaults
	if !c.ini.HasSection("rescue") {
		return rd, nil
	}
	if err := c.ini.Section("rescue").MapTo(&rd); err != nil {
		return rd, fmt.Errorf("failed to parse [rescue] section: %w", err)
	}
	return rd, nil
}

// Logs decodes the [logs] section into a LogDefaults.
func (c *RcConfig) Logs() (LogDefaults, error) {
	var ld LogDefaults
	if !c.ini.HasSection("logs") {
		return ld, nil
	}
	if err := c.ini.Section("logs").MapTo(&ld); err != nil {
		return ld, fmt.Errorf("failed to parse [logs] section: %w", err)
	}
	return ld, nil
}

// Save writes the config back to its path, creating parent directories
// as needed.
func (c *RcConfig) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return c.ini.SaveTo(c.path)
}
