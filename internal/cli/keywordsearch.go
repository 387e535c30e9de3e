package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avrilcode/compactmem/internal/query"
)

func init() {
	cmd := &cobra.Command{
		Use:   "keyword-search [words...]",
		Short: "FTS5 keyword search over intent/action/outcome text",
		Args:  cobra.MinimumNArgs(1),
		Run:   runKeywordSearch,
	}
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	RootCmd.AddCommand(cmd)
}

func runKeywordSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	svc := &query.Service{Store: s, Embedder: openEmbedder(cfg)}
	results, err := svc.KeywordSearch(cmd.Context(), args, limit)
	if err != nil {
		exitErr("keyword search", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
