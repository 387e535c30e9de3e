package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/avrilcode/compactmem/internal/hook"
	"github.com/avrilcode/compactmem/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sessionstart",
		Short: "SessionStart hook: retrieve relevant memories for a new session",
		Long:  "Reads a SessionStart hook JSON request from stdin, ranks stored memories against its task_query, and writes a hook JSON response with additional_context on stdout.",
		Run:   runSessionStart,
	}
	RootCmd.AddCommand(cmd)
}

func runSessionStart(cmd *cobra.Command, args []string) {
	var in hook.SessionStartInput
	if err := hook.ReadInput(os.Stdin, &in); err != nil {
		hook.WriteOutput(os.Stdout, hook.SessionStartOutput{})
		os.Exit(1)
	}

	cfg := loadConfig()
	log := openLogger(cfg, "sessionstart")
	defer log.Close()

	var out hook.SessionStartOutput
	runErr := hook.Guard(func() error {
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		p := &pipeline.SessionStart{
			Store:         s,
			Embedder:      openEmbedder(cfg),
			Graph:         openGraphCache(cfg),
			Log:           log,
			MinSimilarity: cfg.MinSimilarity,
			KMax:          cfg.KMax,
			KRecent:       cfg.KRecent,
			Alpha:         cfg.Alpha,
			Beta:          cfg.Beta,
			MinImportance: cfg.MinImportance,
		}

		res, err := p.Run(cmd.Context(), in.SessionID, in.TaskQuery)
		if err != nil {
			return err
		}
		out = hook.SessionStartOutput{
			AdditionalContext: res.Context,
			MemoriesInjected:  res.Injected,
		}
		return nil
	}, func(r interface{}) {
		log.Error("panic in sessionstart: %v", r)
	})

	if runErr != nil {
		log.Error("sessionstart failed: %v", runErr)
		hook.WriteOutput(os.Stdout, hook.SessionStartOutput{})
		os.Exit(1)
	}

	if err := hook.WriteOutput(os.Stdout, out); err != nil {
		exitErr("write hook output", err)
	}
}
