// Package config loads compactmem's layered configuration: hardcoded
// defaults, overridden by an optional YAML file, overridden in turn by
// environment variables.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in SPEC_FULL.md's ambient stack section.
type Config struct {
	DBPath      string  `yaml:"db_path"`
	DebugLog    string  `yaml:"debug_log"`
	EmbedDims   int     `yaml:"embed_dims"`
	KGCacheTTL  int     `yaml:"kg_cache_ttl_seconds"`

	MinSimilarity       float64 `yaml:"min_similarity"`
	KMax                int     `yaml:"k_max"`
	KRecent             int     `yaml:"k_recent"`
	Alpha               float64 `yaml:"alpha"`
	Beta                float64 `yaml:"beta"`
	MinImportance       float64 `yaml:"min_importance"`

	OldThresholdDays      int     `yaml:"old_threshold_days"`
	LowImportanceThresh   float64 `yaml:"low_importance_threshold"`
	RedundancyThreshold   float64 `yaml:"redundancy_threshold"`
	MaxPerSession         int     `yaml:"max_per_session"`

	ClusterDistanceThreshold float64 `yaml:"cluster_distance_threshold"`
	MaxTranscriptMessages    int     `yaml:"max_transcript_messages"`
}

// Default returns compactmem's hardcoded defaults, matching the constants
// named throughout spec.md §4.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DBPath:     filepath.Join(home, ".compactmem", "memory.db"),
		DebugLog:   filepath.Join(home, ".compactmem", "debug.log"),
		EmbedDims:  256,
		KGCacheTTL: 300,

		MinSimilarity: 0.35,
		KMax:          20,
		KRecent:       4,
		Alpha:         0.6,
		Beta:          0.4,
		MinImportance: 0,

		OldThresholdDays:    90,
		LowImportanceThresh: 3.0,
		RedundancyThreshold: 0.95,
		MaxPerSession:       500,

		ClusterDistanceThreshold: 0.4,
		MaxTranscriptMessages:    1000,
	}
}

// Load builds a Config by layering: defaults, then an optional YAML file
// (from $COMPACTMEM_CONFIG or ~/.compactmem.yaml, if present), then
// environment variable overrides.
func Load() Config {
	cfg := Default()

	path := os.Getenv("COMPACTMEM_CONFIG")
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".compactmem.yaml")
		}
	}
	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &cfg) // best-effort; malformed config falls back to prior layer
		}
	}

	if v := os.Getenv("COMPACTMEM_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("COMPACTMEM_DEBUG_LOG"); v != "" {
		cfg.DebugLog = v
	}
	if v := os.Getenv("COMPACTMEM_EMBED_DIMS"); v != "" {
		if n := atoi(v); n > 0 {
			cfg.EmbedDims = n
		}
	}

	return cfg
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
