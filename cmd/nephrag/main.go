// Command nephrag is the retrieval CLI for nephrology reference
// documents. It wires storage, embedding providers, and core services
// together, then hands control to the command tree.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	configfile "github.com/nephrag/nephrag/internal/adapters/driven/config/file"
	minilmembed "github.com/nephrag/nephrag/internal/adapters/driven/embedding/minilm"
	openaiembed "github.com/nephrag/nephrag/internal/adapters/driven/embedding/openai"
	openaillm "github.com/nephrag/nephrag/internal/adapters/driven/llm/openai"
	"github.com/nephrag/nephrag/internal/adapters/driven/storage/sqlite"
	"github.com/nephrag/nephrag/internal/adapters/driving/cli"
	"github.com/nephrag/nephrag/internal/chunker"
	"github.com/nephrag/nephrag/internal/core/domain"
	"github.com/nephrag/nephrag/internal/core/ports/driven"
	"github.com/nephrag/nephrag/internal/core/services"
	"github.com/nephrag/nephrag/internal/corpus"
	"github.com/nephrag/nephrag/internal/embedcache"
	"github.com/nephrag/nephrag/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Environment overrides from a local .env, if present.
	_ = godotenv.Load()

	cfg, err := configfile.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	providers, err := buildProviders(cfg)
	if err != nil {
		return err
	}
	for _, p := range providers {
		defer p.Close()
	}

	cache := buildCache(cfg)

	chunkerOpts := []chunker.Option{}
	if n := cfg.GetInt(configfile.KeyChunkTokens); n > 0 {
		chunkerOpts = append(chunkerOpts, chunker.WithChunkTokens(n))
	}
	if n := cfg.GetInt(configfile.KeyOverlapTokens); n > 0 {
		chunkerOpts = append(chunkerOpts, chunker.WithOverlapTokens(n))
	}
	ch, err := chunker.New(chunkerOpts...)
	if err != nil {
		return fmt.Errorf("configuring chunker: %w", err)
	}

	corpusPath := corpusDir(cfg)
	if err := os.MkdirAll(corpusPath, 0700); err != nil {
		return fmt.Errorf("creating corpus directory: %w", err)
	}
	loader, err := corpus.NewLoader(corpusPath)
	if err != nil {
		return fmt.Errorf("configuring corpus loader: %w", err)
	}

	registryOpts := []services.RegistryOption{}
	if m := cfg.GetInt(configfile.KeyRegistryTTLMinutes); m > 0 {
		registryOpts = append(registryOpts, services.WithRegistryTTL(time.Duration(m)*time.Minute))
	}
	registry := services.NewRegistryService(store.RegistryStore(), registryOpts...)

	ingestOpts := []services.IngestOption{}
	if n := cfg.GetInt(configfile.KeyIngestBatchSize); n > 0 {
		ingestOpts = append(ingestOpts, services.WithEmbedBatchSize(n))
	}
	if r := cfg.GetFloat(configfile.KeyIngestRateLimit); r > 0 {
		ingestOpts = append(ingestOpts, services.WithEmbedRateLimit(r))
	}
	ingest := services.NewIngestService(registry, loader, ch, store.ChunkStore(), providers, ingestOpts...)

	retrievalOpts := []services.RetrievalOption{}
	if t := cfg.GetFloat(configfile.KeyRemoteThreshold); t > 0 {
		retrievalOpts = append(retrievalOpts, services.WithSpaceThreshold(domain.SpaceRemote, t))
	}
	if t := cfg.GetFloat(configfile.KeyLocalThreshold); t > 0 {
		retrievalOpts = append(retrievalOpts, services.WithSpaceThreshold(domain.SpaceLocal, t))
	}
	retrieval := services.NewRetrievalService(registry, store.ChunkStore(), cache, providers, retrievalOpts...)

	var llm driven.LLMService
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		llm, err = openaillm.NewLLMService(openaillm.Config{
			APIKey: apiKey,
			Model:  cfg.GetString(configfile.KeyLLMModel),
		})
		if err != nil {
			return fmt.Errorf("configuring LLM: %w", err)
		}
		defer llm.Close()
	} else {
		logger.Debug("OPENAI_API_KEY not set, answers fall back to raw excerpts")
	}
	answer := services.NewAnswerService(retrieval, llm)

	cli.Setup(cli.Services{
		Retrieval:     retrieval,
		Answer:        answer,
		Ingest:        ingest,
		Registry:      registry,
		RegistryStore: store.RegistryStore(),
		Cache:         cache,
		Watcher:       corpus.NewWatcher(loader, registry, ingest),
	})

	return cli.Execute()
}

// buildProviders constructs one embedding service per configured space.
// The remote provider needs an API key; the local provider is always
// available and pulls its model on first use.
func buildProviders(cfg driven.ConfigStore) (map[domain.EmbeddingSpace]driven.EmbeddingService, error) {
	providers := make(map[domain.EmbeddingSpace]driven.EmbeddingService)

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		remote, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  apiKey,
			BaseURL: cfg.GetString(configfile.KeyRemoteBaseURL),
			Model:   cfg.GetString(configfile.KeyRemoteModel),
		})
		if err != nil {
			return nil, fmt.Errorf("configuring remote embeddings: %w", err)
		}
		providers[domain.SpaceRemote] = remote
	} else {
		logger.Debug("OPENAI_API_KEY not set, remote embedding space unavailable")
	}

	providers[domain.SpaceLocal] = minilmembed.NewEmbeddingService(minilmembed.Config{
		BaseURL: cfg.GetString(configfile.KeyLocalBaseURL),
		Model:   cfg.GetString(configfile.KeyLocalModel),
	})

	return providers, nil
}

func buildCache(cfg driven.ConfigStore) *embedcache.Cache {
	opts := []embedcache.Option{}
	if n := cfg.GetInt(configfile.KeyCacheMaxSize); n > 0 {
		opts = append(opts, embedcache.WithMaxSize(n))
	}
	if h := cfg.GetInt(configfile.KeyCacheTTLHours); h > 0 {
		opts = append(opts, embedcache.WithTTL(time.Duration(h)*time.Hour))
	}
	return embedcache.New(opts...)
}

// corpusDir returns the configured corpus directory, defaulting to
// ~/.nephrag/corpus.
func corpusDir(cfg driven.ConfigStore) string {
	if dir := cfg.GetString(configfile.KeyCorpusDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "corpus"
	}
	return filepath.Join(home, ".nephrag", "corpus")
}
