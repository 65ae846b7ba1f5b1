package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"course-advisor/internal/embedding"
	"course-advisor/internal/repository"
)

// ProviderLookup resolves an embedding provider by (model, provider).
type ProviderLookup interface {
	Lookup(model, provider string) (embedding.Provider, error)
}

// Engine runs one embedding and one outcome search per skill. Skills never
// share candidates.
type Engine struct {
	providers ProviderLookup
	searcher  repository.OutcomeSearcher
	logger    *zap.Logger
}

func NewEngine(providers ProviderLookup, searcher repository.OutcomeSearcher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		providers: providers,
		searcher:  searcher,
		logger:    logger,
	}
}

// FindMatches returns each skill's outcomes at or above the threshold, best
// first. Equal scores are ordered by ascending outcome id. Repeated skill
// names are matched once.
func (e *Engine) FindMatches(ctx context.Context, req MatchRequest) (*MatchResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	provider, err := e.providers.Lookup(req.Embedding.Model, req.Embedding.Provider)
	if err != nil {
		return nil, err
	}
	spec := provider.Spec()

	result := &MatchResult{
		BySkill: make(map[string][]SkillMatch, len(req.Skills)),
		EmbeddingUsage: EmbeddingUsage{
			BySkill: make([]UsageRecord, 0, len(req.Skills)),
		},
	}
	for _, skill := range req.Skills {
		if _, done := result.BySkill[skill.Name]; done {
			continue
		}
		matches, usage, err := e.matchSkill(ctx, provider, spec, skill, req)
		if err != nil {
			return nil, fmt.Errorf("match skill %q failed: %w", skill.Name, err)
		}
		result.BySkill[skill.Name] = matches
		result.EmbeddingUsage.BySkill = append(result.EmbeddingUsage.BySkill, usage)
		if usage.TotalTokens != nil {
			result.EmbeddingUsage.TotalTokens += *usage.TotalTokens
		}
	}
	return result, nil
}

func (e *Engine) matchSkill(ctx context.Context, provider embedding.Provider, spec embedding.Spec, skill Skill, req MatchRequest) ([]SkillMatch, UsageRecord, error) {
	text := skill.QueryText()
	emb, err := provider.EmbedOne(ctx, text, embedding.RoleQuery)
	if err != nil {
		return nil, UsageRecord{}, err
	}
	if emb == nil || len(emb.Vector) == 0 {
		return nil, UsageRecord{}, fmt.Errorf("%w: empty vector for %q", embedding.ErrEmbeddingFailure, text)
	}

	usage := UsageRecord{
		Skill:        skill.Name,
		Model:        spec.Model,
		Provider:     spec.Provider,
		Dimension:    spec.Dimension,
		EmbeddedText: text,
		GeneratedAt:  emb.EmbeddedAt,
	}
	if emb.Usage != nil {
		prompt, total := emb.Usage.PromptTokens, emb.Usage.TotalTokens
		usage.PromptTokens = &prompt
		usage.TotalTokens = &total
	}

	hits, err := e.searcher.SearchOutcomes(ctx, repository.OutcomeQuery{
		Vector:    emb.Vector,
		Dimension: spec.Dimension,
		TopN:      req.TopN,
		Filters:   req.Filters,
	})
	if err != nil {
		return nil, UsageRecord{}, err
	}

	matches := rankMatches(hits, req.Threshold)
	e.logger.Debug("skill matched",
		zap.String("skill", skill.Name),
		zap.String("embedding", spec.String()),
		zap.Int("rows", len(hits)),
		zap.Int("matches", len(matches)))
	return matches, usage, nil
}

// rankMatches collapses rows per outcome keeping the best score, drops
// scores below threshold and sorts the rest.
func rankMatches(hits []repository.OutcomeHit, threshold float64) []SkillMatch {
	byID := make(map[uint]int, len(hits))
	matches := make([]SkillMatch, 0, len(hits))
	for _, h := range hits {
		i, seen := byID[h.LOID]
		if !seen {
			byID[h.LOID] = len(matches)
			matches = append(matches, matchFromHit(h))
			continue
		}
		m := &matches[i]
		if h.Similarity > m.SimilarityScore {
			cloNo := m.Metadata.CLONo
			*m = matchFromHit(h)
			m.Metadata.CLONo = lowerCLONo(cloNo, h.CLONo)
			continue
		}
		m.Metadata.CLONo = lowerCLONo(m.Metadata.CLONo, h.CLONo)
	}

	kept := matches[:0]
	for _, m := range matches {
		if m.SimilarityScore >= threshold {
			kept = append(kept, m)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].SimilarityScore != kept[j].SimilarityScore {
			return kept[i].SimilarityScore > kept[j].SimilarityScore
		}
		return kept[i].LOID < kept[j].LOID
	})
	return kept
}

func matchFromHit(h repository.OutcomeHit) SkillMatch {
	return SkillMatch{
		LOID:            h.LOID,
		CourseID:        h.CourseID,
		SimilarityScore: h.Similarity,
		Metadata: MatchMetadata{
			SubjectCode: h.SubjectCode,
			CourseName:  h.CourseName,
			CLOText:     h.CLOText,
			CLONo:       h.CLONo,
			CampusID:    h.CampusID,
			FacultyID:   h.FacultyID,
		},
	}
}

func lowerCLONo(a, b *int) *int {
	if a == nil {
		return b
	}
	if b != nil && *b < *a {
		return b
	}
	return a
}

func validateRequest(req MatchRequest) error {
	if len(req.Skills) == 0 {
		return fmt.Errorf("%w: skills must not be empty", ErrInvalidArgument)
	}
	for i, s := range req.Skills {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("%w: skill %d has no name", ErrInvalidArgument, i)
		}
	}
	if req.TopN < 1 {
		return fmt.Errorf("%w: top n must be at least 1, got %d", ErrInvalidArgument, req.TopN)
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be within [0,1], got %v", ErrInvalidArgument, req.Threshold)
	}
	if req.Embedding.Model == "" || req.Embedding.Provider == "" {
		return fmt.Errorf("%w: embedding model and provider are required", ErrInvalidArgument)
	}
	return nil
}
