package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Limits mirrors runtime.Limits in a serializable form.
type Limits struct {
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
	MaxOpenWorkbooks      int           `yaml:"max_open_workbooks"`
	MaxPayloadBytes       int           `yaml:"max_payload_bytes"`
	MaxCellsPerOp         int           `yaml:"max_cells_per_op"`
	PageRows              int           `yaml:"page_rows"`
	OperationTimeout      time.Duration `yaml:"operation_timeout"`
	AcquireTimeout        time.Duration `yaml:"acquire_timeout"`
	LockTimeout           time.Duration `yaml:"lock_timeout"`
}

// Config is the server configuration after defaults, file and environment
// have been applied.
type Config struct {
	AllowedDirs []string `yaml:"allowed_dirs"`
	ReadOnly    bool     `yaml:"read_only"`
	// LockDir holds cross-process lock files; empty disables them.
	LockDir  string `yaml:"lock_dir"`
	LogLevel string `yaml:"log_level"`
	Limits   Limits `yaml:"limits"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LockDir:  filepath.Join(os.TempDir(), "excel-mcp-locks"),
		LogLevel: "info",
		Limits: Limits{
			MaxConcurrentRequests: DefaultMaxConcurrentRequests,
			MaxOpenWorkbooks:      DefaultMaxOpenWorkbooks,
			MaxPayloadBytes:       DefaultMaxPayloadBytes,
			MaxCellsPerOp:         DefaultMaxCellsPerOp,
			PageRows:              DefaultPageRows,
			OperationTimeout:      DefaultOperationTimeout,
			AcquireTimeout:        DefaultAcquireRequestTimeout,
			LockTimeout:           DefaultLockTimeout,
		},
	}
}

// Load builds a Config from defaults, the optional YAML file at path and
// EXCEL_MCP_* environment variables, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.fillZero()
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("ALLOWED_DIRS"); ok {
		c.AllowedDirs = filepath.SplitList(v)
	}
	if v, ok := get("READ_ONLY"); ok {
		c.ReadOnly = parseBool(v)
	}
	if v, ok := get("LOCK_DIR"); ok {
		if strings.EqualFold(v, "off") {
			v = ""
		}
		c.LockDir = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}

	ints := map[string]*int{
		"MAX_CONCURRENT_REQUESTS": &c.Limits.MaxConcurrentRequests,
		"MAX_OPEN_WORKBOOKS":      &c.Limits.MaxOpenWorkbooks,
		"MAX_PAYLOAD_BYTES":       &c.Limits.MaxPayloadBytes,
		"MAX_CELLS_PER_OP":        &c.Limits.MaxCellsPerOp,
		"PAGE_ROWS":               &c.Limits.PageRows,
	}
	for name, dst := range ints {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"OPERATION_TIMEOUT": &c.Limits.OperationTimeout,
		"ACQUIRE_TIMEOUT":   &c.Limits.AcquireTimeout,
		"LOCK_TIMEOUT":      &c.Limits.LockTimeout,
	}
	for name, dst := range durations {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}
	return nil
}

// fillZero restores defaults for limits a config file zeroed out.
func (c *Config) fillZero() {
	d := Default().Limits
	if c.Limits.MaxConcurrentRequests <= 0 {
		c.Limits.MaxConcurrentRequests = d.MaxConcurrentRequests
	}
	if c.Limits.MaxOpenWorkbooks <= 0 {
		c.Limits.MaxOpenWorkbooks = d.MaxOpenWorkbooks
	}
	if c.Limits.MaxPayloadBytes <= 0 {
		c.Limits.MaxPayloadBytes = d.MaxPayloadBytes
	}
	if c.Limits.MaxCellsPerOp <= 0 {
		c.Limits.MaxCellsPerOp = d.MaxCellsPerOp
	}
	if c.Limits.PageRows <= 0 {
		c.Limits.PageRows = d.PageRows
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(v)
	return v == "1" || v == "true" || v == "yes"
}
