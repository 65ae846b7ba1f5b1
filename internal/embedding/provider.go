// Package embedding turns text into vectors through interchangeable providers
// keyed by (model, provider).
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnsupportedConfiguration is returned for a (model, provider) pair missing from the registry.
	ErrUnsupportedConfiguration = errors.New("unsupported embedding configuration")

	// ErrEmbeddingFailure indicates the provider returned an empty or malformed vector.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrAlignmentFailure indicates a batch response cannot be mapped back to its inputs.
	ErrAlignmentFailure = errors.New("embedding alignment failure")

	ErrEmptyInput = errors.New("empty embedding input")
)

// Role tells asymmetric models whether the text is a search query or a stored passage.
type Role string

const (
	RoleQuery   Role = "query"
	RolePassage Role = "passage"
)

// Spec identifies a provider variant. Each model has exactly one dimension.
type Spec struct {
	Model     string `json:"model"`
	Provider  string `json:"provider"`
	Dimension int    `json:"dimension"`
}

func (s Spec) String() string {
	return fmt.Sprintf("%s/%s(%d)", s.Provider, s.Model, s.Dimension)
}

type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type Result struct {
	Vector     []float32
	Model      string
	Dimension  int
	EmbeddedAt time.Time
	// Usage is nil when the provider does not report token counts.
	Usage *Usage
}

// BatchItem is one vector of a batch. Index is the input position when the
// provider reports one.
type BatchItem struct {
	Embedding []float32
	Index     *int
}

type BatchResult struct {
	Items     []BatchItem
	Model     string
	Dimension int
	Usage     *Usage
}

type Provider interface {
	Spec() Spec
	// EmbedOne embeds a single text. An empty role means RoleQuery.
	EmbedOne(ctx context.Context, text string, role Role) (*Result, error)
	// EmbedMany embeds texts in one request. An empty role means RolePassage.
	EmbedMany(ctx context.Context, texts []string, role Role) (*BatchResult, error)
}

// ProviderConfig holds configuration for creating a provider.
type ProviderConfig struct {
	// Provider is "openai" (any OpenAI-compatible API) or "tei".
	Provider      string
	Model         string
	Dimension     int
	BaseURL       string
	APIKey        string
	QueryPrefix   string
	PassagePrefix string
	Timeout       time.Duration
}

// NewProvider creates a provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Model == "" || cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: model and dimension are required", ErrUnsupportedConfiguration)
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg)
	case "tei":
		return NewTEIProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrUnsupportedConfiguration, cfg.Provider)
	}
}

type rolePrefixes struct {
	query   string
	passage string
}

func (p rolePrefixes) apply(text string, role Role) string {
	switch role {
	case RolePassage:
		return p.passage + text
	default:
		return p.query + text
	}
}

// validateVector checks a provider vector against the configured dimension.
func validateVector(spec Spec, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: %s returned an empty vector", ErrEmbeddingFailure, spec)
	}
	if len(vec) != spec.Dimension {
		return fmt.Errorf("%w: %s returned %d values, want %d", ErrEmbeddingFailure, spec, len(vec), spec.Dimension)
	}
	return nil
}
