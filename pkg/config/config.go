// Package config handles skyline configuration via YAML files and environment
// variables.
//
// Configuration Precedence (highest to lowest):
//  1. Command-line flags (--policy, --max-labels, etc.)
//  2. Environment variables (SKYLINE_*)
//  3. Config file (skyline.yaml)
//  4. Built-in defaults
//
// Example Usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// Environment Variables (all use SKYLINE_ prefix):
//
// Search:
//   - SKYLINE_CRITERIA="length,cost"
//   - SKYLINE_CONSTRAINTS="cost=100,toll=5"
//   - SKYLINE_TYPES="STREET,HIGHWAY"
//
// Cache and spill:
//   - SKYLINE_CACHE_POLICY="lru"
//   - SKYLINE_MAX_LABELS=100000 or SKYLINE_MEMORY_LIMIT="64MB"
//   - SKYLINE_SPILL_BACKEND="memory", "badger" or "sqlite"
//   - SKYLINE_SPILL_DIR="./data/spill"
//
// Everything else:
//   - SKYLINE_DATA_DIR="./data/graph"
//   - SKYLINE_LOG_LEVEL="info", SKYLINE_LOG_FORMAT="text"
//   - SKYLINE_METRICS_ADDRESS="127.0.0.1:9090"
//   - SKYLINE_BATCH_PARALLELISM=4
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// bytesPerCriterion is the memory a label is assumed to need per cost
// criterion when the budget is given as a memory size.
const bytesPerCriterion = 8

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds all skyline configuration.
type Config struct {
	Search  SearchConfig
	Cache   CacheConfig
	Spill   SpillConfig
	Graph   GraphConfig
	Logging LoggingConfig
	Metrics MetricsConfig
	Batch   BatchConfig
}

// SearchConfig holds the default query shape used when a query leaves it out.
type SearchConfig struct {
	// Criteria are the ordered edge properties minimized by the search.
	Criteria []string `validate:"required,min=1,dive,required"`
	// Constraints cap accumulated edge properties.
	Constraints map[string]float64 `validate:"dive,keys,required,endkeys,gte=0"`
	// Types restricts traversal to these edge types. Empty allows all.
	Types []string
}

// CacheConfig bounds the labels a search keeps in memory.
type CacheConfig struct {
	Policy string `validate:"oneof=fifo lru mru lfu lfuda"`
	// MaxLabels is the in-memory label budget. Zero means unlimited.
	MaxLabels int `validate:"gte=0"`
	// MemoryLimit is an alternative budget in bytes, converted to labels by
	// LabelBudget. At most one of MaxLabels and MemoryLimit may be set.
	MemoryLimit int64 `validate:"gte=0"`
}

// SpillConfig selects where evicted sub-route skylines go.
type SpillConfig struct {
	Backend string `validate:"oneof=memory badger sqlite"`
	// Dir is the badger directory or the sqlite file. Empty keeps the
	// backend in memory.
	Dir string
}

// GraphConfig locates the persistent graph.
type GraphConfig struct {
	// DataDir is the BadgerDB graph directory. Empty uses an in-memory graph.
	DataDir string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=text json"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	// Address serves /metrics when set, e.g. "127.0.0.1:9090".
	Address string `validate:"omitempty,hostname_port"`
}

// BatchConfig holds batch execution settings.
type BatchConfig struct {
	// Parallelism caps concurrent searches. Zero means one per query.
	Parallelism int `validate:"gte=0"`
}

// LoadDefaults returns the built-in configuration.
func LoadDefaults() *Config {
	return &Config{
		Search: SearchConfig{
			Criteria:    []string{"length", "cost"},
			Constraints: map[string]float64{},
		},
		Cache: CacheConfig{
			Policy: "lru",
		},
		Spill: SpillConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Batch: BatchConfig{
			Parallelism: 4,
		},
	}
}

// LoadFromEnv returns the defaults overridden by SKYLINE_* variables.
func LoadFromEnv() (*Config, error) {
	cfg := LoadDefaults()
	if err := applyEnvVars(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// yamlConfig is the on-disk layout of a config file.
type yamlConfig struct {
	Search struct {
		Criteria    []string           `yaml:"criteria"`
		Constraints map[string]float64 `yaml:"constraints"`
		Types       []string           `yaml:"types"`
	} `yaml:"search"`
	Cache struct {
		Policy      string `yaml:"policy"`
		MaxLabels   *int   `yaml:"max_labels"`
		MemoryLimit string `yaml:"memory_limit"`
	} `yaml:"cache"`
	Spill struct {
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir"`
	} `yaml:"spill"`
	Graph struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"graph"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Metrics struct {
		Address string `yaml:"address"`
	} `yaml:"metrics"`
	Batch struct {
		Parallelism *int `yaml:"parallelism"`
	} `yaml:"batch"`
}

// LoadFromFile applies, in order, the defaults, the YAML file at configPath
// and the SKYLINE_* environment. A missing file is not an error.
//
// Example config file:
//
//	search:
//	  criteria: [length, cost]
//	  constraints: {cost: 100}
//	cache:
//	  policy: lfuda
//	  memory_limit: 64MB
//	spill:
//	  backend: badger
//	  dir: ./data/spill
func LoadFromFile(configPath string) (*Config, error) {
	cfg := LoadDefaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := applyYAML(cfg, data); err != nil {
				return nil, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := applyEnvVars(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyYAML(cfg *Config, data []byte) error {
	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if len(y.Search.Criteria) > 0 {
		cfg.Search.Criteria = y.Search.Criteria
	}
	if y.Search.Constraints != nil {
		cfg.Search.Constraints = y.Search.Constraints
	}
	if len(y.Search.Types) > 0 {
		cfg.Search.Types = y.Search.Types
	}

	if y.Cache.Policy != "" {
		cfg.Cache.Policy = strings.ToLower(y.Cache.Policy)
	}
	if y.Cache.MaxLabels != nil {
		cfg.Cache.MaxLabels = *y.Cache.MaxLabels
	}
	if y.Cache.MemoryLimit != "" {
		limit, err := ParseMemorySize(y.Cache.MemoryLimit)
		if err != nil {
			return fmt.Errorf("cache.memory_limit: %w", err)
		}
		cfg.Cache.MemoryLimit = limit
	}

	if y.Spill.Backend != "" {
		cfg.Spill.Backend = strings.ToLower(y.Spill.Backend)
	}
	if y.Spill.Dir != "" {
		cfg.Spill.Dir = y.Spill.Dir
	}
	if y.Graph.DataDir != "" {
		cfg.Graph.DataDir = y.Graph.DataDir
	}
	if y.Logging.Level != "" {
		cfg.Logging.Level = strings.ToLower(y.Logging.Level)
	}
	if y.Logging.Format != "" {
		cfg.Logging.Format = strings.ToLower(y.Logging.Format)
	}
	if y.Metrics.Address != "" {
		cfg.Metrics.Address = y.Metrics.Address
	}
	if y.Batch.Parallelism != nil {
		cfg.Batch.Parallelism = *y.Batch.Parallelism
	}
	return nil
}

func applyEnvVars(cfg *Config) error {
	cfg.Search.Criteria = getEnvStringSlice("SKYLINE_CRITERIA", cfg.Search.Criteria)
	cfg.Search.Types = getEnvStringSlice("SKYLINE_TYPES", cfg.Search.Types)
	if v := os.Getenv("SKYLINE_CONSTRAINTS"); v != "" {
		constraints, err := ParseConstraints(strings.Split(v, ","))
		if err != nil {
			return fmt.Errorf("SKYLINE_CONSTRAINTS: %w", err)
		}
		cfg.Search.Constraints = constraints
	}

	cfg.Cache.Policy = strings.ToLower(getEnv("SKYLINE_CACHE_POLICY", cfg.Cache.Policy))
	if v := os.Getenv("SKYLINE_MAX_LABELS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SKYLINE_MAX_LABELS: %w", err)
		}
		cfg.Cache.MaxLabels = n
		cfg.Cache.MemoryLimit = 0
	}
	if v := os.Getenv("SKYLINE_MEMORY_LIMIT"); v != "" {
		limit, err := ParseMemorySize(v)
		if err != nil {
			return fmt.Errorf("SKYLINE_MEMORY_LIMIT: %w", err)
		}
		cfg.Cache.MemoryLimit = limit
		cfg.Cache.MaxLabels = 0
	}

	cfg.Spill.Backend = strings.ToLower(getEnv("SKYLINE_SPILL_BACKEND", cfg.Spill.Backend))
	cfg.Spill.Dir = getEnv("SKYLINE_SPILL_DIR", cfg.Spill.Dir)
	cfg.Graph.DataDir = getEnv("SKYLINE_DATA_DIR", cfg.Graph.DataDir)
	cfg.Logging.Level = strings.ToLower(getEnv("SKYLINE_LOG_LEVEL", cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(getEnv("SKYLINE_LOG_FORMAT", cfg.Logging.Format))
	cfg.Metrics.Address = getEnv("SKYLINE_METRICS_ADDRESS", cfg.Metrics.Address)
	cfg.Batch.Parallelism = getEnvInt("SKYLINE_BATCH_PARALLELISM", cfg.Batch.Parallelism)
	return nil
}

// Validate checks field ranges and the rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid %s: failed %q check", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}

	if c.Cache.MaxLabels > 0 && c.Cache.MemoryLimit > 0 {
		return fmt.Errorf("cache.max_labels and cache.memory_limit are mutually exclusive")
	}
	seen := make(map[string]bool, len(c.Search.Criteria))
	for _, k := range c.Search.Criteria {
		if seen[k] {
			return fmt.Errorf("duplicate criterion %q", k)
		}
		seen[k] = true
	}
	if c.Spill.Backend == "memory" && c.Spill.Dir != "" {
		return fmt.Errorf("spill.dir is set but the memory backend ignores it")
	}
	return nil
}

// LabelBudget returns the in-memory label budget, deriving it from
// MemoryLimit when MaxLabels is unset. Zero means unlimited.
func (c *Config) LabelBudget() int {
	if c.Cache.MaxLabels > 0 || c.Cache.MemoryLimit == 0 {
		return c.Cache.MaxLabels
	}
	perLabel := int64(bytesPerCriterion * max(len(c.Search.Criteria), 1))
	return int(max(c.Cache.MemoryLimit/perLabel, 1))
}

// String returns a one-line summary suitable for logging.
func (c *Config) String() string {
	budget := "unlimited"
	switch {
	case c.Cache.MaxLabels > 0:
		budget = strconv.Itoa(c.Cache.MaxLabels) + " labels"
	case c.Cache.MemoryLimit > 0:
		budget = FormatMemorySize(c.Cache.MemoryLimit)
	}
	return fmt.Sprintf(
		"Config{Criteria: %s, Policy: %s, Budget: %s, Spill: %s, DataDir: %q}",
		strings.Join(c.Search.Criteria, ","),
		c.Cache.Policy, budget, c.Spill.Backend, c.Graph.DataDir,
	)
}

// ParseConstraints parses "key=limit" pairs.
func ParseConstraints(pairs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key, val, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("constraint %q is not key=limit", p)
		}
		limit, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("constraint %q: %w", p, err)
		}
		out[key] = limit
	}
	return out, nil
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first config file found, or empty string if none found.
// Search order:
//  1. ~/.skyline/config.yaml
//  2. Current working directory (skyline.yaml, config.yaml)
//  3. ~/.config/skyline/config.yaml
func FindConfigFile() string {
	var candidates []string
	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		candidates = append(candidates, filepath.Join(home, ".skyline", "config.yaml"))
	}
	candidates = append(candidates, "skyline.yaml", "config.yaml")
	if homeErr == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "skyline", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultVal
}

// ParseMemorySize parses a human-readable memory size string.
// Supports: "1024", "1KB", "64MB", "1GB", "1TB", "0", "unlimited"
func ParseMemorySize(s string) (int64, error) {
	orig := s
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0, nil
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || val < 0 {
		return 0, fmt.Errorf("invalid memory size %q", orig)
	}
	return val * multiplier, nil
}

// FormatMemorySize formats bytes as human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
