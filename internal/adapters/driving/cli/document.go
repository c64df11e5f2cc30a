package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nephrag/nephrag/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage registered documents",
	Long:  `List, register, deactivate, or inspect documents in the registry.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [slug]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentAddCmd = &cobra.Command{
	Use:   "add [slug]",
	Short: "Register a document",
	Long: `Registers a document in the registry. The path is relative to the
corpus directory; the embedding space decides which provider embeds the
document's chunks and queries.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentAdd,
}

var documentDeactivateCmd = &cobra.Command{
	Use:   "deactivate [slug]",
	Short: "Deactivate a document",
	Long:  `Marks a document inactive so it stops serving retrieval requests. Stored chunks are kept.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDeactivate,
}

var (
	addTitle string
	addPath  string
	addSpace string
)

func init() {
	documentAddCmd.Flags().StringVarP(&addTitle, "title", "t", "", "human-readable title (required)")
	documentAddCmd.Flags().StringVarP(&addPath, "path", "p", "", "path relative to the corpus directory (required)")
	documentAddCmd.Flags().StringVarP(&addSpace, "space", "s", string(domain.SpaceRemote), "embedding space (remote or local)")
	_ = documentAddCmd.MarkFlagRequired("title")
	_ = documentAddCmd.MarkFlagRequired("path")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentAddCmd)
	documentCmd.AddCommand(documentDeactivateCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentRegistry == nil {
		return errors.New("document registry not configured")
	}

	docs, err := documentRegistry.Refresh(cmd.Context(), true)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No active documents.")
		return nil
	}

	cmd.Printf("Active documents (%d):\n\n", len(docs))
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].Slug)
		cmd.Printf("    Title: %s\n", docs[i].Title)
		cmd.Printf("    Space: %s\n", docs[i].EmbeddingSpace)
		cmd.Printf("    Path:  %s\n", docs[i].StoragePath)
		cmd.Println()
	}
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if registryStore == nil {
		return errors.New("registry store not configured")
	}

	doc, err := registryStore.GetDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("%s\n", doc.Slug)
	cmd.Printf("  Title:   %s\n", doc.Title)
	cmd.Printf("  Space:   %s\n", doc.EmbeddingSpace)
	cmd.Printf("  Path:    %s\n", doc.StoragePath)
	cmd.Printf("  Active:  %t\n", doc.Active)
	cmd.Printf("  Created: %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	for k, v := range doc.Metadata {
		cmd.Printf("  %s: %v\n", k, v)
	}
	return nil
}

func runDocumentAdd(cmd *cobra.Command, args []string) error {
	if registryStore == nil {
		return errors.New("registry store not configured")
	}

	space := domain.EmbeddingSpace(addSpace)
	if !space.Valid() {
		return fmt.Errorf("unknown embedding space %q (want remote or local)", addSpace)
	}

	doc := &domain.Document{
		Slug:           args[0],
		Title:          addTitle,
		StoragePath:    addPath,
		EmbeddingSpace: space,
		Active:         true,
	}
	if err := registryStore.SaveDocument(cmd.Context(), doc); err != nil {
		return fmt.Errorf("failed to register document: %w", err)
	}

	cmd.Printf("Registered %s (%s space). Run 'nephrag ingest %s' to index it.\n",
		doc.Slug, doc.EmbeddingSpace, doc.Slug)
	return nil
}

func runDocumentDeactivate(cmd *cobra.Command, args []string) error {
	if registryStore == nil {
		return errors.New("registry store not configured")
	}

	doc, err := registryStore.GetDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	doc.Active = false
	if err := registryStore.SaveDocument(cmd.Context(), doc); err != nil {
		return fmt.Errorf("failed to deactivate document: %w", err)
	}

	cmd.Printf("Deactivated %s.\n", doc.Slug)
	return nil
}
