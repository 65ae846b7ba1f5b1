package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"course-advisor/internal/model"
)

// PGVectorSearcher ranks outcomes with the pgvector cosine distance operator.
type PGVectorSearcher struct {
	db *gorm.DB
}

func NewPGVectorSearcher(db *gorm.DB) *PGVectorSearcher {
	return &PGVectorSearcher{db: db}
}

func (s *PGVectorSearcher) SearchOutcomes(ctx context.Context, q OutcomeQuery) ([]OutcomeHit, error) {
	tx, ok := pgvectorSearch(s.db.WithContext(ctx), q)
	if !ok {
		// no outcome can be stored in an unknown family
		return nil, nil
	}

	var hits []OutcomeHit
	if err := tx.Scan(&hits).Error; err != nil {
		return nil, fmt.Errorf("pgvector outcome search failed: %w", err)
	}
	return hits, nil
}

// pgvectorSearch builds the ranked k-NN query on tx. Placeholders bind the
// query vector twice, then the filter arguments, then topN.
func pgvectorSearch(tx *gorm.DB, q OutcomeQuery) (*gorm.DB, bool) {
	column, err := model.EmbeddingColumn(q.Dimension)
	if err != nil {
		return nil, false
	}
	conds, args := outcomeConditions(q.Dimension, q.Filters)
	vec := pgvector.NewVector(q.Vector).String()

	// DENSE_RANK keeps every row tied with the last admitted distance.
	query := fmt.Sprintf(`SELECT * FROM (
SELECT %s,
  1 - (ev.%s <=> ?) AS similarity,
  DENSE_RANK() OVER (ORDER BY ev.%s <=> ?) AS distance_rank
%s
WHERE %s
) ranked
WHERE distance_rank <= ?
ORDER BY similarity DESC, lo_id ASC`,
		outcomeColumns, column, column, outcomeJoins, strings.Join(conds, " AND "))

	params := make([]interface{}, 0, len(args)+3)
	params = append(params, vec, vec)
	params = append(params, args...)
	params = append(params, q.TopN)

	return tx.Raw(query, params...), true
}
