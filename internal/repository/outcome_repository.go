package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"course-advisor/internal/model"
)

type OutcomeRepository struct {
	db *gorm.DB
}

func NewOutcomeRepository(db *gorm.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

func (r *OutcomeRepository) ListByIDs(ctx context.Context, ids []uint) ([]model.CourseLearningOutcome, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var outcomes []model.CourseLearningOutcome
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&outcomes).Error; err != nil {
		return nil, fmt.Errorf("list outcomes by ids failed: %w", err)
	}
	return outcomes, nil
}

// ListMissingEmbedding returns up to limit outcomes without a vector in the dimension family.
func (r *OutcomeRepository) ListMissingEmbedding(ctx context.Context, dimension, limit int) ([]model.CourseLearningOutcome, error) {
	flag, err := model.HasEmbeddingColumn(dimension)
	if err != nil {
		return nil, err
	}
	var outcomes []model.CourseLearningOutcome
	if err := r.db.WithContext(ctx).
		Where(flag+" = ?", false).
		Order("id").
		Limit(limit).
		Find(&outcomes).Error; err != nil {
		return nil, fmt.Errorf("list outcomes missing embedding failed: %w", err)
	}
	return outcomes, nil
}

// LinkVector points the outcome at vectorID and marks the dimension as embedded.
func (r *OutcomeRepository) LinkVector(ctx context.Context, outcomeID, vectorID uint, dimension int) error {
	flag, err := model.HasEmbeddingColumn(dimension)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).
		Model(&model.CourseLearningOutcome{}).
		Where("id = ?", outcomeID).
		Updates(map[string]interface{}{"vector_id": vectorID, flag: true}).Error; err != nil {
		return fmt.Errorf("link outcome vector failed: %w", err)
	}
	return nil
}
