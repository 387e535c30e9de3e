package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avrilcode/compactmem/internal/pruner"
)

func init() {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Sweep age/redundancy/capacity prune policies",
		Run:   runPrune,
	}
	cmd.Flags().Bool("dry-run", false, "Report what would be pruned without deleting")
	RootCmd.AddCommand(cmd)
}

func runPrune(cmd *cobra.Command, args []string) {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := pruner.Sweep(cmd.Context(), s, prunePolicy(cfg), dryRun)
	if err != nil {
		exitErr("prune", err)
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}
