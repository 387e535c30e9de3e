package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avrilcode/compactmem/internal/query"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Group a session's memories into topical clusters",
		Run:   runCluster,
	}
	cmd.Flags().String("session", "", "Cluster only this session's memories (default: all)")
	cmd.Flags().Float64("threshold", 0, "Distance threshold (default: spec's 0.4)")
	RootCmd.AddCommand(cmd)
}

func runCluster(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	cfg := loadConfig()
	if threshold == 0 {
		threshold = cfg.ClusterDistanceThreshold
	}

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	svc := &query.Service{Store: s, Embedder: openEmbedder(cfg)}
	clusters, err := svc.ClusterSummaries(cmd.Context(), session, threshold)
	if err != nil {
		exitErr("cluster", err)
	}

	b, _ := json.MarshalIndent(clusters, "", "  ")
	fmt.Println(string(b))
}
