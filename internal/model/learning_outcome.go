package model

import (
	"fmt"
	"time"
)

// CourseLearningOutcome belongs to exactly one course. VectorID points at the
// content-addressed EmbeddingVector holding its cleaned text; the per-dimension
// flags say which embedding columns of that vector are populated.
type CourseLearningOutcome struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CourseID         uint      `gorm:"not null;index" json:"course_id"`
	Text             string    `gorm:"type:text;not null" json:"text"`
	VectorID         *uint     `gorm:"index" json:"vector_id,omitempty"`
	HasEmbedding768  bool      `gorm:"column:has_embedding_768;not null;default:false" json:"has_embedding_768"`
	HasEmbedding1024 bool      `gorm:"column:has_embedding_1024;not null;default:false" json:"has_embedding_1024"`
	HasEmbedding1536 bool      `gorm:"column:has_embedding_1536;not null;default:false" json:"has_embedding_1536"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (CourseLearningOutcome) TableName() string { return "course_learning_outcomes" }

func (o *CourseLearningOutcome) HasEmbeddingFor(dimension int) bool {
	switch dimension {
	case 768:
		return o.HasEmbedding768
	case 1024:
		return o.HasEmbedding1024
	case 1536:
		return o.HasEmbedding1536
	default:
		return false
	}
}

// HasEmbeddingColumn returns the flag column for a dimension family.
func HasEmbeddingColumn(dimension int) (string, error) {
	if _, err := EmbeddingColumn(dimension); err != nil {
		return "", err
	}
	return fmt.Sprintf("has_embedding_%d", dimension), nil
}
