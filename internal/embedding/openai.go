package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to any OpenAI-compatible /embeddings endpoint.
// Response items carry their input index, which Align honours.
type OpenAIProvider struct {
	client   *openai.Client
	spec     Spec
	prefixes rolePrefixes
	now      func() time.Time
}

func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		spec: Spec{
			Model:     cfg.Model,
			Provider:  "openai",
			Dimension: cfg.Dimension,
		},
		prefixes: rolePrefixes{query: cfg.QueryPrefix, passage: cfg.PassagePrefix},
		now:      time.Now,
	}, nil
}

func (p *OpenAIProvider) Spec() Spec {
	return p.spec
}

func (p *OpenAIProvider) EmbedOne(ctx context.Context, text string, role Role) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	if role == "" {
		role = RoleQuery
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{p.prefixes.apply(text, role)},
		Model: openai.EmbeddingModel(p.spec.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: %s returned no data", ErrEmbeddingFailure, p.spec)
	}
	vec := resp.Data[0].Embedding
	if err := validateVector(p.spec, vec); err != nil {
		return nil, err
	}

	return &Result{
		Vector:     vec,
		Model:      p.spec.Model,
		Dimension:  p.spec.Dimension,
		EmbeddedAt: p.now(),
		Usage:      usageFromOpenAI(resp.Usage),
	}, nil
}

func (p *OpenAIProvider) EmbedMany(ctx context.Context, texts []string, role Role) (*BatchResult, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	if role == "" {
		role = RolePassage
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fmt.Errorf("%w: text %d is blank", ErrEmptyInput, i)
		}
		inputs[i] = p.prefixes.apply(t, role)
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(p.spec.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding batch request failed: %w", err)
	}

	items := make([]BatchItem, len(resp.Data))
	for i := range resp.Data {
		idx := resp.Data[i].Index
		items[i] = BatchItem{
			Embedding: resp.Data[i].Embedding,
			Index:     &idx,
		}
	}
	return &BatchResult{
		Items:     items,
		Model:     p.spec.Model,
		Dimension: p.spec.Dimension,
		Usage:     usageFromOpenAI(resp.Usage),
	}, nil
}

func usageFromOpenAI(u openai.Usage) *Usage {
	if u.PromptTokens == 0 && u.TotalTokens == 0 {
		return nil
	}
	return &Usage{PromptTokens: u.PromptTokens, TotalTokens: u.TotalTokens}
}
