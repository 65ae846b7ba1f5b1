package repository

import (
	"fmt"

	"gorm.io/gorm"

	"course-advisor/internal/model"
)

// AutoMigrate creates the course tables. Postgres deployments manage their
// schema externally because embedding columns need the vector type.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Course{},
		&model.CourseOffering{},
		&model.CourseLearningOutcome{},
		&model.CourseOfferingOutcome{},
		&model.EmbeddingVector{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}

// NewOutcomeSearcher picks the searcher for a database driver.
func NewOutcomeSearcher(driver string, db *gorm.DB) OutcomeSearcher {
	if driver == "postgres" {
		return NewPGVectorSearcher(db)
	}
	return NewScanSearcher(db)
}
