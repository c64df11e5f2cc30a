package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the query embedding cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache hit/miss counters",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached embeddings and reset counters",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	if embeddingCache == nil {
		return errors.New("embedding cache not configured")
	}

	stats := embeddingCache.Stats()
	cmd.Printf("Entries:   %d\n", stats.Size)
	cmd.Printf("Hits:      %d\n", stats.Hits)
	cmd.Printf("Misses:    %d\n", stats.Misses)
	cmd.Printf("Evictions: %d\n", stats.Evictions)
	cmd.Printf("Hit rate:  %.1f%%\n", stats.HitRate*100)
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	if embeddingCache == nil {
		return errors.New("embedding cache not configured")
	}

	embeddingCache.Clear()
	cmd.Println("Cache cleared.")
	return nil
}
