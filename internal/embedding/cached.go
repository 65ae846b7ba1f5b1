package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// VectorCache stores single-text embeddings.
type VectorCache interface {
	GetVector(ctx context.Context, key string) ([]float32, bool, error)
	SetVector(ctx context.Context, key string, vec []float32) error
}

// CachedProvider serves query-role EmbedOne calls from a cache when possible.
// Other roles go straight to the provider. Cache errors are logged and never
// fail the call. Hits report no token usage.
type CachedProvider struct {
	Provider
	cache  VectorCache
	logger *zap.Logger
	now    func() time.Time
}

func NewCachedProvider(p Provider, cache VectorCache, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		Provider: p,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

func (c *CachedProvider) EmbedOne(ctx context.Context, text string, role Role) (*Result, error) {
	if role == "" {
		role = RoleQuery
	}
	if role != RoleQuery {
		return c.Provider.EmbedOne(ctx, text, role)
	}
	spec := c.Spec()
	key := CacheKey(spec, role, text)

	if vec, hit, err := c.cache.GetVector(ctx, key); err != nil {
		c.logger.Warn("embedding cache read failed", zap.String("key", key), zap.Error(err))
	} else if hit && validateVector(spec, vec) == nil {
		return &Result{
			Vector:     vec,
			Model:      spec.Model,
			Dimension:  spec.Dimension,
			EmbeddedAt: c.now(),
		}, nil
	}

	res, err := c.Provider.EmbedOne(ctx, text, role)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetVector(ctx, key, res.Vector); err != nil {
		c.logger.Warn("embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
	return res, nil
}

// CacheKey is emb:{provider}:{model}:{role}:{sha256(text)}.
func CacheKey(spec Spec, role Role, text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return fmt.Sprintf("emb:%s:%s:%s:%s", spec.Provider, spec.Model, role, hex.EncodeToString(sum[:]))
}
