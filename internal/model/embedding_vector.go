package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
)

var ErrUnsupportedDimension = errors.New("unsupported embedding dimension")

// EmbeddingVector is content-addressed by its embedded text: identical cleaned
// outcome texts share one row. A dimension column is written once and never
// updated afterwards. On postgres the embedding columns are vector(N); the
// text type only applies when the table is auto-migrated on mysql or sqlite.
type EmbeddingVector struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	TextHash      string           `gorm:"size:64;not null;uniqueIndex" json:"text_hash"`
	EmbeddedText  string           `gorm:"type:text;not null" json:"embedded_text"`
	Embedding768  *pgvector.Vector `gorm:"column:embedding_768;type:text" json:"-"`
	Embedding1024 *pgvector.Vector `gorm:"column:embedding_1024;type:text" json:"-"`
	Embedding1536 *pgvector.Vector `gorm:"column:embedding_1536;type:text" json:"-"`
	CreatedAt     time.Time        `json:"created_at"`
}

func (EmbeddingVector) TableName() string { return "embedding_vectors" }

// NewEmbeddingVector returns a row keyed by the hash of text.
func NewEmbeddingVector(text string) *EmbeddingVector {
	return &EmbeddingVector{
		TextHash:     HashText(text),
		EmbeddedText: text,
	}
}

// EmbeddingFor returns the stored vector of the given dimension, nil when absent.
func (v *EmbeddingVector) EmbeddingFor(dimension int) []float32 {
	var vec *pgvector.Vector
	switch dimension {
	case 768:
		vec = v.Embedding768
	case 1024:
		vec = v.Embedding1024
	case 1536:
		vec = v.Embedding1536
	}
	if vec == nil {
		return nil
	}
	return vec.Slice()
}

// SetEmbedding stores values in the column matching their length.
func (v *EmbeddingVector) SetEmbedding(values []float32) error {
	vec := pgvector.NewVector(values)
	switch len(values) {
	case 768:
		v.Embedding768 = &vec
	case 1024:
		v.Embedding1024 = &vec
	case 1536:
		v.Embedding1536 = &vec
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedDimension, len(values))
	}
	return nil
}

// EmbeddingColumn returns the embedding column for a dimension family.
func EmbeddingColumn(dimension int) (string, error) {
	switch dimension {
	case 768, 1024, 1536:
		return fmt.Sprintf("embedding_%d", dimension), nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnsupportedDimension, dimension)
	}
}

// CleanText normalizes outcome text before it is embedded and hashed.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
