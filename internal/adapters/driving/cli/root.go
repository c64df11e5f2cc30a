// Package cli implements the nephrag command-line interface using cobra.
// Commands are thin: they parse flags, call driving ports, and format
// output. All wiring happens in Setup before Execute runs.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/nephrag/nephrag/internal/core/ports/driven"
	"github.com/nephrag/nephrag/internal/core/ports/driving"
	"github.com/nephrag/nephrag/internal/corpus"
	"github.com/nephrag/nephrag/internal/embedcache"
	"github.com/nephrag/nephrag/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

// Injected services. Commands check for nil and fail with a clear
// message rather than panicking.
var (
	retrievalService driving.RetrievalService
	answerService    driving.AnswerService
	ingestService    driving.IngestService
	documentRegistry driving.Registry
	registryStore    driven.RegistryStore
	embeddingCache   *embedcache.Cache
	corpusWatcher    *corpus.Watcher
)

var rootCmd = &cobra.Command{
	Use:   "nephrag",
	Short: "Document retrieval for nephrology reference material",
	Long: `nephrag ingests clinical reference documents, embeds their chunks,
and answers similarity queries against them. Retrieval is scoped to a
single registered document per query.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Services bundles everything the CLI needs. Optional fields may be nil.
type Services struct {
	Retrieval driving.RetrievalService
	Answer    driving.AnswerService
	Ingest    driving.IngestService
	Registry  driving.Registry

	RegistryStore driven.RegistryStore
	Cache         *embedcache.Cache
	Watcher       *corpus.Watcher
}

// Setup injects services into the command tree. Call once before Execute.
func Setup(s Services) {
	retrievalService = s.Retrieval
	answerService = s.Answer
	ingestService = s.Ingest
	documentRegistry = s.Registry
	registryStore = s.RegistryStore
	embeddingCache = s.Cache
	corpusWatcher = s.Watcher
}

// SetVersion overrides the reported version string.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
