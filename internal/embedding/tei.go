package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TEIProvider calls a Hugging Face text-embeddings-inference server. Its
// /embed endpoint returns vectors in input order without index markers.
type TEIProvider struct {
	baseURL    string
	httpClient *http.Client
	spec       Spec
	prefixes   rolePrefixes
	now        func() time.Time
}

type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

func NewTEIProvider(cfg ProviderConfig) (*TEIProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: tei base URL required", ErrUnsupportedConfiguration)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TEIProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		spec: Spec{
			Model:     cfg.Model,
			Provider:  "tei",
			Dimension: cfg.Dimension,
		},
		prefixes: rolePrefixes{query: cfg.QueryPrefix, passage: cfg.PassagePrefix},
		now:      time.Now,
	}, nil
}

func (p *TEIProvider) Spec() Spec {
	return p.spec
}

func (p *TEIProvider) EmbedOne(ctx context.Context, text string, role Role) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	if role == "" {
		role = RoleQuery
	}

	vectors, err := p.embed(ctx, []string{p.prefixes.apply(text, role)})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: %s returned no vectors", ErrEmbeddingFailure, p.spec)
	}
	if err := validateVector(p.spec, vectors[0]); err != nil {
		return nil, err
	}
	return &Result{
		Vector:     vectors[0],
		Model:      p.spec.Model,
		Dimension:  p.spec.Dimension,
		EmbeddedAt: p.now(),
	}, nil
}

func (p *TEIProvider) EmbedMany(ctx context.Context, texts []string, role Role) (*BatchResult, error) {
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

	vectors, err := p.embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	items := make([]BatchItem, len(vectors))
	for i := range vectors {
		items[i] = BatchItem{Embedding: vectors[i]}
	}
	return &BatchResult{
		Items:     items,
		Model:     p.spec.Model,
		Dimension: p.spec.Dimension,
	}, nil
}

func (p *TEIProvider) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: inputs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshal tei request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tei request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tei request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tei response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tei response status %d: %s", resp.StatusCode, string(raw))
	}

	var vectors [][]float32
	if err := json.Unmarshal(raw, &vectors); err != nil {
		return nil, fmt.Errorf("parse tei json failed: %w", err)
	}
	return vectors, nil
}
