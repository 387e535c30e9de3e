package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avrilcode/compactmem/internal/query"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [topic]",
		Short: "Semantic search over stored memories",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Float64("min-importance", 0, "Minimum importance score")
	cmd.Flags().String("session", "", "Filter by session ID")
	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	minImportance, _ := cmd.Flags().GetFloat64("min-importance")
	session, _ := cmd.Flags().GetString("session")

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	svc := &query.Service{Store: s, Embedder: openEmbedder(cfg)}
	results, err := svc.Search(cmd.Context(), query.SearchParams{
		Topic:         strings.Join(args, " "),
		K:             limit,
		MinImportance: minImportance,
		SessionID:     session,
	})
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
