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
		Use:   "stats",
		Short: "Show memory store statistics",
		Run:   runStats,
	}
	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	svc := &query.Service{Store: s, Embedder: openEmbedder(cfg)}
	st, err := svc.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	out := struct {
		Store store.Stats        `json:"store"`
		Graph query.GraphSummary `json:"graph"`
	}{Store: st}

	if gs, err := svc.GraphSummary(cmd.Context(), openGraphCache(cfg), 10); err != nil {
		exitErr("graph stats", err)
	} else {
		out.Graph = gs
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
