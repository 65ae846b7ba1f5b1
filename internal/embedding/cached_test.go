package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	data   map[string][]float32
	getErr error
}

func (m *memoryCache) GetVector(_ context.Context, key string) ([]float32, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) SetVector(_ context.Context, key string, vec []float32) error {
	m.data[key] = vec
	return nil
}

func newCountingProvider() *stubProvider {
	return &stubProvider{
		spec: Spec{Model: "m", Provider: "p", Dimension: 2},
		one: func(text string, role Role) (*Result, error) {
			return &Result{Vector: []float32{1, 0}, Model: "m", Dimension: 2, Usage: &Usage{PromptTokens: 2, TotalTokens: 2}}, nil
		},
	}
}

func TestCachedProvider_HitSkipsProvider(t *testing.T) {
	inner := newCountingProvider()
	cache := &memoryCache{data: map[string][]float32{}}
	p := NewCachedProvider(inner, cache, nil)
	ctx := context.Background()

	first, err := p.EmbedOne(ctx, "statistics", RoleQuery)
	require.NoError(t, err)
	require.NotNil(t, first.Usage)

	second, err := p.EmbedOne(ctx, "statistics", RoleQuery)
	require.NoError(t, err)
	assert.Nil(t, second.Usage, "cache hits report no usage")
	assert.Equal(t, first.Vector, second.Vector)
	assert.Equal(t, 1, inner.oneCalls)

	_, err = p.EmbedOne(ctx, "statistics", "")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.oneCalls, "an empty role is the query role")
}

func TestCachedProvider_PassageRoleBypassesCache(t *testing.T) {
	inner := newCountingProvider()
	cache := &memoryCache{data: map[string][]float32{}}
	p := NewCachedProvider(inner, cache, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := p.EmbedOne(ctx, "statistics", RolePassage)
		require.NoError(t, err)
		require.NotNil(t, res.Usage)
	}
	assert.Equal(t, 2, inner.oneCalls)
	assert.Empty(t, cache.data)
}

func TestCachedProvider_CacheErrorFallsThrough(t *testing.T) {
	inner := newCountingProvider()
	cache := &memoryCache{data: map[string][]float32{}, getErr: errors.New("redis down")}
	p := NewCachedProvider(inner, cache, nil)

	res, err := p.EmbedOne(context.Background(), "x", RoleQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, res.Vector)
	assert.Equal(t, 1, inner.oneCalls)
}

func TestCachedProvider_IgnoresStaleDimension(t *testing.T) {
	inner := newCountingProvider()
	cache := &memoryCache{data: map[string][]float32{}}
	cache.data[CacheKey(inner.Spec(), RoleQuery, "x")] = []float32{1, 2, 3}
	p := NewCachedProvider(inner, cache, nil)

	res, err := p.EmbedOne(context.Background(), "x", RoleQuery)
	require.NoError(t, err)
	assert.Len(t, res.Vector, 2)
	assert.Equal(t, 1, inner.oneCalls)
}
