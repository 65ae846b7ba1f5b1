// Package retrieval matches skills to course learning outcomes by embedding
// similarity.
package retrieval

import (
	"errors"
	"strings"
	"time"

	"course-advisor/internal/model"
)

var ErrInvalidArgument = errors.New("invalid argument")

type Skill struct {
	Name    string `json:"name" binding:"required"`
	Context string `json:"context,omitempty"`
}

// QueryText is the text embedded for the skill.
func (s Skill) QueryText() string {
	name := strings.TrimSpace(s.Name)
	ctx := strings.TrimSpace(s.Context)
	if ctx == "" {
		return name
	}
	return name + ": " + ctx
}

// EmbeddingConfig selects a registered provider. The dimension follows from the model.
type EmbeddingConfig struct {
	Model    string `json:"model" binding:"required"`
	Provider string `json:"provider" binding:"required"`
}

type MatchRequest struct {
	Skills    []Skill
	Threshold float64
	TopN      int
	Embedding EmbeddingConfig
	Filters   model.RetrievalFilters
}

type MatchMetadata struct {
	SubjectCode string `json:"subject_code"`
	CourseName  string `json:"course_name"`
	CLOText     string `json:"clo_text"`
	CLONo       *int   `json:"clo_no,omitempty"`
	CampusID    uint   `json:"campus_id"`
	FacultyID   uint   `json:"faculty_id"`
}

// SkillMatch is unique per LOID within one skill's result.
type SkillMatch struct {
	LOID            uint          `json:"lo_id"`
	CourseID        uint          `json:"course_id"`
	SimilarityScore float64       `json:"similarity_score"`
	Metadata        MatchMetadata `json:"metadata"`
}

// UsageRecord accounts for one skill's query embedding.
type UsageRecord struct {
	Skill        string    `json:"skill"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	Dimension    int       `json:"dimension"`
	EmbeddedText string    `json:"embedded_text"`
	GeneratedAt  time.Time `json:"generated_at"`
	PromptTokens *int      `json:"prompt_tokens,omitempty"`
	TotalTokens  *int      `json:"total_tokens,omitempty"`
}

type EmbeddingUsage struct {
	BySkill     []UsageRecord `json:"by_skill"`
	TotalTokens int           `json:"total_tokens"`
}

type MatchResult struct {
	BySkill        map[string][]SkillMatch `json:"by_skill"`
	EmbeddingUsage EmbeddingUsage          `json:"embedding_usage"`
}
