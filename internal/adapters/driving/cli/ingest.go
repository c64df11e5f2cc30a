package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var ingestAll bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [slug...]",
	Short: "Chunk, embed, and store documents",
	Long: `Runs the offline ingestion pipeline for the named documents: loads
the cleaned text, splits it into overlapping chunks, embeds each chunk
in the document's embedding space, and replaces the stored chunk set.
Re-running is safe and replaces rather than accumulates.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestAll, "all", false, "ingest every active document")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	slugs := args
	if ingestAll {
		if documentRegistry == nil {
			return errors.New("document registry not configured")
		}
		docs, err := documentRegistry.GetActive(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}
		slugs = make([]string, 0, len(docs))
		for _, doc := range docs {
			slugs = append(slugs, doc.Slug)
		}
	}
	if len(slugs) == 0 {
		return errors.New("no documents named; pass slugs or --all")
	}

	var failed int
	for _, slug := range slugs {
		summary, err := ingestService.Ingest(cmd.Context(), slug)
		if err != nil {
			failed++
			cmd.PrintErrf("  %s: %v\n", slug, err)
			continue
		}
		cmd.Printf("  %s: %d/%d chunks stored in %s\n",
			summary.DocumentSlug, summary.RowsStored, summary.ChunksCreated,
			summary.Duration.Round(time.Millisecond))
		if summary.EmbeddingsSucceeded < summary.ChunksCreated {
			cmd.Printf("    warning: %d chunks dropped (embedding failures)\n",
				summary.ChunksCreated-summary.EmbeddingsSucceeded)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(slugs))
	}
	return nil
}
