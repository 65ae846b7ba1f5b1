package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"course-advisor/internal/model"
)

// ScanSearcher loads every candidate vector and scores it in process. It
// serves mysql and sqlite deployments, which have no vector operator.
type ScanSearcher struct {
	db *gorm.DB
}

func NewScanSearcher(db *gorm.DB) *ScanSearcher {
	return &ScanSearcher{db: db}
}

type scannedOutcome struct {
	OutcomeHit
	Embedding pgvector.Vector `gorm:"column:embedding"`
}

func (s *ScanSearcher) SearchOutcomes(ctx context.Context, q OutcomeQuery) ([]OutcomeHit, error) {
	column, err := model.EmbeddingColumn(q.Dimension)
	if err != nil {
		return nil, nil
	}
	conds, args := outcomeConditions(q.Dimension, q.Filters)
	query := fmt.Sprintf("SELECT %s, ev.%s AS embedding %s WHERE %s",
		outcomeColumns, column, outcomeJoins, strings.Join(conds, " AND "))

	var rows []scannedOutcome
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("scan outcome search failed: %w", err)
	}

	hits := make([]OutcomeHit, 0, len(rows))
	for i := range rows {
		hit := rows[i].OutcomeHit
		hit.Similarity = cosineSimilarity(q.Vector, rows[i].Embedding.Slice())
		hits = append(hits, hit)
	}
	return denseTopN(hits, q.TopN), nil
}

// denseTopN keeps hits whose similarity is among the n highest distinct values.
func denseTopN(hits []OutcomeHit, n int) []OutcomeHit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].LOID < hits[j].LOID
	})

	rank := 0
	for i := range hits {
		if i == 0 || hits[i].Similarity != hits[i-1].Similarity {
			rank++
		}
		if rank > n {
			return hits[:i]
		}
	}
	return hits
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
