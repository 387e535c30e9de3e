// Package cli implements the compactmem CLI commands: the two lifecycle
// hook entrypoints (precompact, sessionstart) plus the operability
// surface of spec §6.4 (search, keyword-search, stats, export, prune).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avrilcode/compactmem/internal/chunker"
	"github.com/avrilcode/compactmem/internal/config"
	"github.com/avrilcode/compactmem/internal/embedding"
	"github.com/avrilcode/compactmem/internal/graph"
	"github.com/avrilcode/compactmem/internal/hostlog"
	"github.com/avrilcode/compactmem/internal/pruner"
	"github.com/avrilcode/compactmem/internal/scorer"
	"github.com/avrilcode/compactmem/internal/store"
)

var (
	dbPath     string
	debugLog   string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "compactmem",
	Short: "Contextual memory pipeline for AI coding assistants",
	Long:  "compactmem turns a raw conversation transcript into ranked, retrievable memories, and surfaces the most relevant ones back at the start of a new session.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $COMPACTMEM_DB or ~/.compactmem/memory.db)")
	RootCmd.PersistentFlags().StringVar(&debugLog, "debug-log", "", "Debug log path (default: ~/.compactmem/debug.log)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format (not read by any command; output is always JSON)")
}

func loadConfig() config.Config {
	cfg := config.Load()
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if debugLog != "" {
		cfg.DebugLog = debugLog
	}
	return cfg
}

func openStore(cfg config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath, cfg.EmbedDims)
}

func openEmbedder(cfg config.Config) embedding.Embedder {
	return embedding.NewLocalEmbedder(cfg.EmbedDims)
}

func openLogger(cfg config.Config, component string) *hostlog.Logger {
	l, err := hostlog.Open(cfg.DebugLog, component)
	if err != nil {
		// Logging failures are never fatal to the pipeline (spec §9).
		l, _ = hostlog.Open("", component)
	}
	return l
}

func openGraphCache(cfg config.Config) *graph.Cache {
	dir := cfg.DBPath + ".kg_cache"
	return graph.NewCache(dir, cfg.KGCacheTTL)
}

func chunkerOptions() chunker.Options {
	return chunker.DefaultOptions()
}

func scorerWeights() scorer.Weights {
	return scorer.DefaultWeights()
}

func prunePolicy(cfg config.Config) pruner.Policy {
	return pruner.Policy{
		OldThresholdDays:    cfg.OldThresholdDays,
		LowImportanceThresh: cfg.LowImportanceThresh,
		RedundancyThreshold: cfg.RedundancyThreshold,
		MaxPerSession:       cfg.MaxPerSession,
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
