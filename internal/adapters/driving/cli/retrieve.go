package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nephrag/nephrag/internal/core/domain"
)

var (
	retrieveDoc       string
	retrieveTopK      int
	retrieveThreshold float64
	retrieveJSON      bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Retrieve the most similar chunks from a document",
	Long: `Embeds the query in the document's embedding space and returns the
stored chunks ranked by cosine similarity. An empty result means no
chunk cleared the similarity threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringVarP(&retrieveDoc, "doc", "d", "", "document slug to search (required)")
	retrieveCmd.Flags().IntVarP(&retrieveTopK, "top-k", "k", 0, "maximum number of chunks (default 5)")
	retrieveCmd.Flags().Float64Var(&retrieveThreshold, "min-similarity", -1, "similarity threshold override")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output results as JSON")
	_ = retrieveCmd.MarkFlagRequired("doc")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	opts := domain.RetrievalOptions{TopK: retrieveTopK}
	if retrieveThreshold >= 0 {
		threshold := retrieveThreshold
		opts.MinSimilarity = &threshold
	}

	results, err := retrievalService.Retrieve(cmd.Context(), args[0], retrieveDoc, opts)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if retrieveJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		cmd.Println("No chunks above the similarity threshold.")
		return nil
	}

	cmd.Printf("Top %d chunks from %s:\n\n", len(results), retrieveDoc)
	for i, rc := range results {
		cmd.Printf("  [%d] chunk %d (%.3f, chars %d-%d)\n", i+1, rc.Index, rc.Similarity, rc.CharStart, rc.CharEnd)
		cmd.Printf("      %s\n\n", snippet(rc.Content, 160))
	}
	return nil
}

// snippet truncates s to at most n characters on a rune boundary.
func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
