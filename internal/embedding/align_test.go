package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idx(i int) *int { return &i }

func TestAlign(t *testing.T) {
	a, b, c := []float32{1}, []float32{2}, []float32{3}

	tests := []struct {
		name    string
		n       int
		items   []BatchItem
		want    [][]float32
		wantErr bool
	}{
		{
			name:  "response order without markers",
			n:     3,
			items: []BatchItem{{Embedding: a}, {Embedding: b}, {Embedding: c}},
			want:  [][]float32{a, b, c},
		},
		{
			name: "markers reorder",
			n:    3,
			items: []BatchItem{
				{Embedding: c, Index: idx(2)},
				{Embedding: a, Index: idx(0)},
				{Embedding: b, Index: idx(1)},
			},
			want: [][]float32{a, b, c},
		},
		{
			name:    "count mismatch",
			n:       3,
			items:   []BatchItem{{Embedding: a}, {Embedding: b}},
			wantErr: true,
		},
		{
			name:    "partial markers",
			n:       2,
			items:   []BatchItem{{Embedding: a, Index: idx(0)}, {Embedding: b}},
			wantErr: true,
		},
		{
			name:    "duplicate marker",
			n:       2,
			items:   []BatchItem{{Embedding: a, Index: idx(1)}, {Embedding: b, Index: idx(1)}},
			wantErr: true,
		},
		{
			name:    "marker out of range",
			n:       2,
			items:   []BatchItem{{Embedding: a, Index: idx(0)}, {Embedding: b, Index: idx(5)}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Align(tt.n, tt.items)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrAlignmentFailure)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type stubProvider struct {
	spec     Spec
	one      func(text string, role Role) (*Result, error)
	many     func(texts []string, role Role) (*BatchResult, error)
	oneCalls int
}

func (s *stubProvider) Spec() Spec { return s.spec }

func (s *stubProvider) EmbedOne(_ context.Context, text string, role Role) (*Result, error) {
	s.oneCalls++
	return s.one(text, role)
}

func (s *stubProvider) EmbedMany(_ context.Context, texts []string, role Role) (*BatchResult, error) {
	return s.many(texts, role)
}

func TestEmbedManyAligned_RejectsWrongDimension(t *testing.T) {
	p := &stubProvider{
		spec: Spec{Model: "m", Provider: "p", Dimension: 2},
		many: func(texts []string, _ Role) (*BatchResult, error) {
			return &BatchResult{Items: []BatchItem{{Embedding: []float32{1, 2}}, {Embedding: []float32{1}}}}, nil
		},
	}

	_, _, err := EmbedManyAligned(context.Background(), p, []string{"a", "b"}, RolePassage)
	require.ErrorIs(t, err, ErrEmbeddingFailure)
}

func TestEmbedManyAligned_ReturnsUsage(t *testing.T) {
	p := &stubProvider{
		spec: Spec{Model: "m", Provider: "p", Dimension: 1},
		many: func(texts []string, _ Role) (*BatchResult, error) {
			return &BatchResult{
				Items: []BatchItem{{Embedding: []float32{2}, Index: idx(1)}, {Embedding: []float32{1}, Index: idx(0)}},
				Usage: &Usage{PromptTokens: 4, TotalTokens: 4},
			}, nil
		},
	}

	vecs, usage, err := EmbedManyAligned(context.Background(), p, []string{"a", "b"}, RolePassage)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, vecs)
	require.NotNil(t, usage)
	assert.Equal(t, 4, usage.TotalTokens)
}
