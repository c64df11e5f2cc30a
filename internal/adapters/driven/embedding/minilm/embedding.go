// Package minilm provides the local-space embedding adapter. It serves
// all-MiniLM-L6-v2 through a local Ollama-compatible inference runtime,
// so embedding stays on the machine with no per-query API cost.
//
// The model is loaded lazily: the first embedding call triggers a pull
// (a sizeable download on a fresh machine), and every concurrent caller
// awaits that same warm-up instead of starting a duplicate one.
package minilm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nephrag/nephrag/internal/core/domain"
	"github.com/nephrag/nephrag/internal/core/ports/driven"
	"github.com/nephrag/nephrag/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "all-minilm"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 384 // all-MiniLM-L6-v2

	// warmupTimeout bounds the one-time model pull, which can take
	// minutes on a fresh machine.
	warmupTimeout = 10 * time.Minute
)

// Config holds configuration for the local embedding service.
type Config struct {
	// BaseURL is the inference runtime base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model to use (default: all-minilm).
	Model string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// EmbeddingService generates local-space embeddings.
type EmbeddingService struct {
	client  *http.Client
	baseURL string
	model   string

	warm  atomic.Bool
	group singleflight.Group
}

// embedRequest is the runtime's embedding request format.
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse is the runtime's embedding response format.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// pullRequest is the runtime's model pull request format.
type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// NewEmbeddingService creates a new local embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &EmbeddingService{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

// ensureModel warms the model exactly once. Concurrent first-use callers
// share the in-flight warm-up; a failed warm-up leaves the state cold so
// the next call retries cleanly.
func (s *EmbeddingService) ensureModel(ctx context.Context) error {
	if s.warm.Load() {
		return nil
	}

	ch := s.group.DoChan("warmup", func() (any, error) {
		if s.warm.Load() {
			return nil, nil
		}

		logger.Info("Loading %s model (first run downloads the model weights)", s.model)
		warmCtx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
		defer cancel()

		if err := s.pull(warmCtx); err != nil {
			return nil, err
		}

		s.warm.Store(true)
		logger.Info("Local embedding model %s loaded", s.model)
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return domain.NewProviderError(s.Describe().Name, true, ctx.Err())
	}
}

// pull asks the runtime to fetch the model. A no-op when it is already
// present locally.
func (s *EmbeddingService) pull(ctx context.Context) error {
	body, err := json.Marshal(pullRequest{Model: s.model, Stream: false})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// The shared client's timeout is sized for embedding calls, not a
	// model download; rely on the warm-up context instead.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return s.wrapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return s.wrapStatus(resp.StatusCode, "failed to read response")
		}
		return s.wrapStatus(resp.StatusCode, string(respBody))
	}
	return nil
}

// Embed generates a vector embedding for the given text. Vectors are
// mean-pooled by the model and L2-normalised here, so inner product and
// cosine similarity agree downstream.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.ensureModel(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(embedRequest{Model: s.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, s.wrapStatus(resp.StatusCode, "failed to read response")
		}
		return nil, s.wrapStatus(resp.StatusCode, string(respBody))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(embedResp.Embedding) != DefaultDimensions {
		return nil, fmt.Errorf("%w: got %d, want %d",
			domain.ErrDimensionMismatch, len(embedResp.Embedding), DefaultDimensions)
	}

	vec := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		vec[i] = float32(v)
	}
	l2Normalise(vec)

	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts. The runtime has no
// batch endpoint, so texts are embedded sequentially.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Describe returns the provider identity and fixed dimensionality.
func (s *EmbeddingService) Describe() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:       "minilm/" + s.model,
		Dimensions: DefaultDimensions,
	}
}

// Ping validates the runtime is reachable via its tag listing endpoint.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return s.wrapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return s.wrapStatus(resp.StatusCode, "runtime not ready")
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

// wrapError classifies transport failures. Timeouts and connection
// errors are transient.
func (s *EmbeddingService) wrapError(err error) error {
	retryable := true
	if errors.Is(err, context.Canceled) {
		retryable = false
	}
	return domain.NewProviderError(s.Describe().Name, retryable, err)
}

// wrapStatus classifies HTTP failures by status code.
func (s *EmbeddingService) wrapStatus(status int, detail string) error {
	retryable := status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	return domain.NewProviderError(s.Describe().Name, retryable,
		fmt.Errorf("status %d: %s", status, detail))
}

// l2Normalise scales the vector to unit length in place.
func l2Normalise(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
