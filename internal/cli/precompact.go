package cli

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/avrilcode/compactmem/internal/hook"
	"github.com/avrilcode/compactmem/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "precompact",
		Short: "PreCompact hook: ingest a transcript into memory",
		Long:  "Reads a PreCompact hook JSON request from stdin, chunks and scores the transcript it names, embeds and persists the result, and writes a hook JSON response to stdout.",
		Run:   runPreCompact,
	}
	RootCmd.AddCommand(cmd)
}

func runPreCompact(cmd *cobra.Command, args []string) {
	var in hook.PreCompactInput
	if err := hook.ReadInput(os.Stdin, &in); err != nil {
		hook.WriteOutput(os.Stdout, hook.PreCompactOutput{Status: "error", Error: err.Error()})
		os.Exit(1)
	}

	cfg := loadConfig()
	log := openLogger(cfg, "precompact")
	defer log.Close()

	var out hook.PreCompactOutput
	runErr := hook.Guard(func() error {
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		p := &pipeline.PreCompact{
			Store:                 s,
			Embedder:              openEmbedder(cfg),
			Graph:                 openGraphCache(cfg),
			Log:                   log,
			Scorer:                scorerWeights(),
			ChunkOpts:             chunkerOptions(),
			PrunePolicy:           prunePolicy(cfg),
			MaxTranscriptMessages: cfg.MaxTranscriptMessages,
			ClusterThreshold:      cfg.ClusterDistanceThreshold,
		}

		res, err := p.Run(cmd.Context(), in.SessionID, in.TranscriptPath)
		if err != nil {
			return err
		}
		out = hook.PreCompactOutput{
			Status:         "ok",
			MemoriesStored: res.MemoriesStored,
			Pruned:         res.Pruned,
		}
		if res.MemoriesStored > 0 {
			out.SystemMessage = "compactmem stored " + strconv.Itoa(res.MemoriesStored) + " memories from this session."
		}
		return nil
	}, func(r interface{}) {
		log.Error("panic in precompact: %v", r)
	})

	if runErr != nil {
		log.Error("precompact failed: %v", runErr)
		hook.WriteOutput(os.Stdout, hook.PreCompactOutput{Status: "error", Error: runErr.Error()})
		os.Exit(1)
	}

	if err := hook.WriteOutput(os.Stdout, out); err != nil {
		exitErr("write hook output", err)
	}
}
