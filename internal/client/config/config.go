package config

import (
	"path/filepath"
	"time"
)

// Config holds runtime settings for the field client.
//
// DBPath, FilesDir, ExportsDir and LogFile default to locations under
// DataDir when left empty; see Resolve.
type Config struct {
	ServerURL           string
	HealthAddr          string
	DataDir             string
	DBPath              string
	FilesDir            string
	ExportsDir          string
	LogFile             string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.HealthAddr = "127.0.0.1:50051"
	c.DataDir = "inspectsync-data"
	c.OnlineCheckInterval = 10 * time.Second
	c.RequestTimeout = 30 * time.Second
}

// Resolve fills the derived paths that were not set explicitly.
func (c *Config) Resolve() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "inspectsync.db")
	}
	if c.FilesDir == "" {
		c.FilesDir = filepath.Join(c.DataDir, "files")
	}
	if c.ExportsDir == "" {
		c.ExportsDir = filepath.Join(c.DataDir, "exports")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "client.log")
	}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	cfg.Resolve()
	return cfg
}
