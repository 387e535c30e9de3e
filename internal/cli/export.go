package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avrilcode/compactmem/internal/query"
	"github.com/avrilcode/compactmem/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored memories as JSON",
		Run:   runExport,
	}
	cmd.Flags().String("session", "", "Filter by session ID")
	cmd.Flags().Float64("min-importance", 0, "Minimum importance score")
	cmd.Flags().String("out", "", "Write to file instead of stdout")
	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	minImportance, _ := cmd.Flags().GetFloat64("min-importance")
	out, _ := cmd.Flags().GetString("out")

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	svc := &query.Service{Store: s, Embedder: openEmbedder(cfg)}
	filter := store.Filter{SessionID: session, MinImportance: minImportance}

	if out != "" {
		n, err := svc.ExportToFile(cmd.Context(), filter, out)
		if err != nil {
			exitErr("export", err)
		}
		fmt.Printf("exported %d memories to %s\n", n, out)
		return
	}

	memories, err := svc.Export(cmd.Context(), filter)
	if err != nil {
		exitErr("export", err)
	}
	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}
