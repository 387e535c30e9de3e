package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.EmbedDims != 256 {
		t.Errorf("expected default embed dims 256, got %d", cfg.EmbedDims)
	}
	if cfg.KMax != 20 || cfg.KRecent != 4 {
		t.Errorf("unexpected default k_max/k_recent: %d/%d", cfg.KMax, cfg.KRecent)
	}
	if cfg.Alpha+cfg.Beta != 1.0 {
		t.Errorf("expected alpha+beta to sum to 1, got %v", cfg.Alpha+cfg.Beta)
	}
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "override.db")
	t.Setenv("COMPACTMEM_CONFIG", "")
	t.Setenv("COMPACTMEM_DB", dbPath)
	t.Setenv("COMPACTMEM_DEBUG_LOG", "")
	t.Setenv("COMPACTMEM_EMBED_DIMS", "128")

	cfg := Load()
	if cfg.DBPath != dbPath {
		t.Errorf("expected env db path %q, got %q", dbPath, cfg.DBPath)
	}
	if cfg.EmbedDims != 128 {
		t.Errorf("expected env embed dims 128, got %d", cfg.EmbedDims)
	}
}

func TestLoad_YAMLFileLayersOverDefault(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "compactmem.yaml")
	os.WriteFile(cfgPath, []byte("k_max: 5\nmin_similarity: 0.5\n"), 0o644)

	t.Setenv("COMPACTMEM_CONFIG", cfgPath)
	t.Setenv("COMPACTMEM_DB", "")
	t.Setenv("COMPACTMEM_DEBUG_LOG", "")
	t.Setenv("COMPACTMEM_EMBED_DIMS", "")

	cfg := Load()
	if cfg.KMax != 5 {
		t.Errorf("expected k_max from yaml file to be 5, got %d", cfg.KMax)
	}
	if cfg.MinSimilarity != 0.5 {
		t.Errorf("expected min_similarity from yaml file to be 0.5, got %v", cfg.MinSimilarity)
	}
}
