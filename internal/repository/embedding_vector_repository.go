package repository

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-advisor/internal/model"
)

type EmbeddingVectorRepository struct {
	db *gorm.DB
}

func NewEmbeddingVectorRepository(db *gorm.DB) *EmbeddingVectorRepository {
	return &EmbeddingVectorRepository{db: db}
}

// FindOrCreate returns the vector row for text, inserting it when absent.
// Concurrent callers with the same text converge on one row through the
// unique text_hash constraint.
func (r *EmbeddingVectorRepository) FindOrCreate(ctx context.Context, text string) (*model.EmbeddingVector, error) {
	v := model.NewEmbeddingVector(text)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "text_hash"}},
			DoNothing: true,
		}).
		Create(v).Error; err != nil {
		return nil, fmt.Errorf("insert embedding vector failed: %w", err)
	}

	var stored model.EmbeddingVector
	if err := r.db.WithContext(ctx).Where("text_hash = ?", v.TextHash).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("load embedding vector failed: %w", err)
	}
	return &stored, nil
}

// SetEmbeddingIfEmpty writes values into the column for their dimension only
// when that column is still NULL. It reports whether a write happened.
func (r *EmbeddingVectorRepository) SetEmbeddingIfEmpty(ctx context.Context, id uint, values []float32) (bool, error) {
	column, err := model.EmbeddingColumn(len(values))
	if err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).
		Model(&model.EmbeddingVector{}).
		Where("id = ? AND "+column+" IS NULL", id).
		Update(column, pgvector.NewVector(values))
	if res.Error != nil {
		return false, fmt.Errorf("set embedding vector failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *EmbeddingVectorRepository) GetByID(ctx context.Context, id uint) (*model.EmbeddingVector, error) {
	var v model.EmbeddingVector
	if err := r.db.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, fmt.Errorf("get embedding vector failed: %w", err)
	}
	return &v, nil
}
