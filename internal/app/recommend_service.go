package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"course-advisor/internal/ai"
	"course-advisor/internal/embedding"
	"course-advisor/internal/model"
	"course-advisor/internal/pkg/limiter"
	"course-advisor/internal/pkg/retry"
	"course-advisor/internal/retrieval"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrRelevanceFilter = errors.New("relevance filter failure")
	ErrSynthesis       = errors.New("synthesis failure")
	ErrPipeline        = errors.New("pipeline failure")
)

// Step keys for timings and usage.
const (
	StepClassification  = "classification"
	StepProfile         = "profile"
	StepSkillExpansion  = "skill_expansion"
	StepRetrieval       = "retrieval"
	StepRelevanceFilter = "relevance_filter"
	StepAggregation     = "aggregation"
	StepSynthesis       = "synthesis"
)

type State string

const (
	StateClassifying        State = "classifying"
	StateProfileBuilding    State = "profile_building"
	StateSkillExpanding     State = "skill_expanding"
	StateRetrieving         State = "retrieving"
	StateRelevanceFiltering State = "relevance_filtering"
	StateAggregating        State = "aggregating"
	StateSynthesizing       State = "synthesizing"
	StateDone               State = "done"
	StateRejected           State = "rejected"
)

type Status string

const (
	StatusAnswered Status = "answered"
	StatusRejected Status = "rejected"
)

type RejectReason string

const (
	RejectIrrelevant   RejectReason = "irrelevant"
	RejectDangerous    RejectReason = "dangerous"
	RejectEmptyResults RejectReason = "empty_results"
)

type QuestionClassifier interface {
	Classify(ctx context.Context, question string) (*ai.Classification, error)
}

type ProfileBuilder interface {
	BuildProfile(ctx context.Context, question string) (*ai.Profile, error)
}

type SkillExpander interface {
	ExpandSkills(ctx context.Context, question string, profile *ai.Profile) (*ai.SkillExpansion, error)
}

type RelevanceScorer interface {
	ScoreRelevance(ctx context.Context, question, skill string, courses []ai.CourseCandidate) (*ai.RelevanceResult, error)
}

type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, question string, sc ai.SynthesisContext) (*ai.Synthesis, error)
}

type MatchFinder interface {
	FindMatches(ctx context.Context, req retrieval.MatchRequest) (*retrieval.MatchResult, error)
}

// Collaborators are the LLM-backed pipeline steps. *ai.Assistant serves all of them.
type Collaborators struct {
	Classifier  QuestionClassifier
	Profiles    ProfileBuilder
	Expander    SkillExpander
	Scorer      RelevanceScorer
	Synthesizer AnswerSynthesizer
}

type FallbackMessage struct {
	Message           string `json:"message"`
	SuggestedFollowUp string `json:"suggested_follow_up"`
}

type Fallbacks struct {
	Irrelevant   FallbackMessage
	Dangerous    FallbackMessage
	EmptyResults FallbackMessage
}

type PipelineOptions struct {
	Threshold          float64
	TopN               int
	Embedding          retrieval.EmbeddingConfig
	MaxCoursesPerSkill int
	MinRelevanceScore  int
	Retry              retry.Policy
	Fallbacks          Fallbacks
}

type RecommendInput struct {
	// RequestID correlates logs. A new one is generated when empty.
	RequestID string
	Question  string
	Filters   model.RetrievalFilters
	// Embedding overrides the configured provider when set.
	Embedding *retrieval.EmbeddingConfig
}

type RecommendResult struct {
	RequestID         string                   `json:"request_id"`
	Status            Status                   `json:"status"`
	State             State                    `json:"state"`
	RejectReason      RejectReason             `json:"reject_reason,omitempty"`
	Category          ai.Category              `json:"category"`
	Answer            string                   `json:"answer"`
	SuggestedFollowUp string                   `json:"suggested_follow_up"`
	Courses           []CourseView             `json:"courses"`
	Skills            []string                 `json:"skills"`
	FailedSkills      []string                 `json:"failed_skills"`
	TimingsMs         map[string]int64         `json:"timings_ms"`
	Usage             map[string]ai.Usage      `json:"usage"`
	EmbeddingUsage    retrieval.EmbeddingUsage `json:"embedding_usage"`
}

// RecommendService runs the recommendation pipeline:
// classification, profile, skill expansion, retrieval, relevance filtering,
// aggregation and synthesis. Disqualified questions and empty results end
// early with a fallback answer.
type RecommendService struct {
	collab  Collaborators
	finder  MatchFinder
	limiter *limiter.Limiter
	opts    PipelineOptions
	logger  *zap.Logger
}

func NewRecommendService(collab Collaborators, finder MatchFinder, lim *limiter.Limiter, opts PipelineOptions, logger *zap.Logger) *RecommendService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxCoursesPerSkill <= 0 {
		opts.MaxCoursesPerSkill = 5
	}
	return &RecommendService{
		collab:  collab,
		finder:  finder,
		limiter: lim,
		opts:    opts,
		logger:  logger,
	}
}

type pipelineRun struct {
	question string
	input    RecommendInput
	result   *RecommendResult
	logger   *zap.Logger
}

// step times fn under key.
func (r *pipelineRun) step(key string, state State, fn func() error) error {
	r.result.State = state
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	r.result.TimingsMs[key] = elapsed.Milliseconds()
	StepDuration.WithLabelValues(key).Observe(elapsed.Seconds())
	r.logger.Debug("pipeline step finished", zap.String("step", key), zap.Duration("elapsed", elapsed), zap.Error(err))
	return err
}

// timed is step for work that cannot fail.
func (r *pipelineRun) timed(key string, state State, fn func()) {
	r.result.State = state
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	r.result.TimingsMs[key] = elapsed.Milliseconds()
	StepDuration.WithLabelValues(key).Observe(elapsed.Seconds())
}

func (s *RecommendService) Recommend(ctx context.Context, input RecommendInput) (*RecommendResult, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}

	requestID := input.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	run := &pipelineRun{
		question: question,
		input:    input,
		result: &RecommendResult{
			RequestID:    requestID,
			Courses:      []CourseView{},
			Skills:       []string{},
			FailedSkills: []string{},
			TimingsMs:    make(map[string]int64),
			Usage:        make(map[string]ai.Usage),
		},
		logger: s.logger.With(zap.String("request_id", requestID)),
	}
	res := run.result

	var cls *ai.Classification
	err := run.step(StepClassification, StateClassifying, func() error {
		var err error
		cls, err = retry.Do(ctx, s.opts.Retry, func(ctx context.Context) (*ai.Classification, error) {
			return s.collab.Classifier.Classify(ctx, question)
		})
		return err
	})
	if err != nil {
		return nil, s.fail(run, StepClassification, err)
	}
	res.Usage[StepClassification] = cls.Usage
	res.Category = cls.Category
	switch cls.Category {
	case ai.CategoryIrrelevant:
		return s.reject(run, RejectIrrelevant, s.opts.Fallbacks.Irrelevant), nil
	case ai.CategoryDangerous:
		return s.reject(run, RejectDangerous, s.opts.Fallbacks.Dangerous), nil
	}

	var profile *ai.Profile
	err = run.step(StepProfile, StateProfileBuilding, func() error {
		var err error
		profile, err = retry.Do(ctx, s.opts.Retry, func(ctx context.Context) (*ai.Profile, error) {
			return s.collab.Profiles.BuildProfile(ctx, question)
		})
		return err
	})
	if err != nil {
		return nil, s.fail(run, StepProfile, err)
	}
	res.Usage[StepProfile] = profile.Usage

	var skills []retrieval.Skill
	err = run.step(StepSkillExpansion, StateSkillExpanding, func() error {
		expansion, err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) (*ai.SkillExpansion, error) {
			return s.collab.Expander.ExpandSkills(ctx, question, profile)
		})
		if err != nil {
			return err
		}
		res.Usage[StepSkillExpansion] = expansion.Usage
		skills = uniqueSkills(expansion.Skills)
		if len(skills) == 0 {
			return fmt.Errorf("%w: no skills expanded", ai.ErrSchemaValidation)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(run, StepSkillExpansion, err)
	}
	for _, sk := range skills {
		res.Skills = append(res.Skills, sk.Name)
	}

	var matches map[string][]retrieval.SkillMatch
	err = run.step(StepRetrieval, StateRetrieving, func() error {
		var err error
		matches, err = s.retrieve(ctx, run, skills)
		return err
	})
	if err != nil {
		return nil, s.fail(run, StepRetrieval, err)
	}

	var filtered []FilteredMatch
	err = run.step(StepRelevanceFilter, StateRelevanceFiltering, func() error {
		var err error
		filtered, err = s.filterRelevance(ctx, run, skills, matches)
		return err
	})
	if err != nil {
		return nil, s.fail(run, StepRelevanceFilter, err)
	}

	run.timed(StepAggregation, StateAggregating, func() {
		res.Courses = Aggregate(filtered)
	})
	if len(res.Courses) == 0 {
		return s.reject(run, RejectEmptyResults, s.opts.Fallbacks.EmptyResults), nil
	}

	err = run.step(StepSynthesis, StateSynthesizing, func() error {
		syn, err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) (*ai.Synthesis, error) {
			return s.collab.Synthesizer.Synthesize(ctx, question, synthesisContext(profile, res.Courses))
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSynthesis, err)
		}
		res.Usage[StepSynthesis] = syn.Usage
		res.Answer = syn.Answer
		res.SuggestedFollowUp = syn.SuggestedFollowUp
		return nil
	})
	if err != nil {
		return nil, s.fail(run, StepSynthesis, err)
	}

	res.Status = StatusAnswered
	res.State = StateDone
	ResultsTotal.WithLabelValues(string(StatusAnswered), "").Inc()
	run.logger.Info("recommendation answered",
		zap.Int("skills", len(res.Skills)),
		zap.Int("failed_skills", len(res.FailedSkills)),
		zap.Int("courses", len(res.Courses)))
	return res, nil
}

func (s *RecommendService) reject(run *pipelineRun, reason RejectReason, fb FallbackMessage) *RecommendResult {
	res := run.result
	res.Status = StatusRejected
	res.State = StateRejected
	res.RejectReason = reason
	res.Answer = fb.Message
	res.SuggestedFollowUp = fb.SuggestedFollowUp
	ResultsTotal.WithLabelValues(string(StatusRejected), string(reason)).Inc()
	run.logger.Info("recommendation rejected", zap.String("reason", string(reason)))
	return res
}

func (s *RecommendService) fail(run *pipelineRun, step string, err error) error {
	ResultsTotal.WithLabelValues("failed", step).Inc()
	run.logger.Error("recommendation pipeline failed", zap.String("step", step), zap.Error(err))
	return fmt.Errorf("%w: step %s failed: %w", ErrPipeline, step, err)
}

type skillRetrieval struct {
	matches []retrieval.SkillMatch
	usage   []retrieval.UsageRecord
	err     error
}

// retrieve matches every skill through the limiter. A failed skill is
// recorded and dropped; the step fails only when every skill failed.
func (s *RecommendService) retrieve(ctx context.Context, run *pipelineRun, skills []retrieval.Skill) (map[string][]retrieval.SkillMatch, error) {
	embCfg := s.opts.Embedding
	if run.input.Embedding != nil {
		embCfg = *run.input.Embedding
	}

	outcomes := make([]skillRetrieval, len(skills))
	var wg sync.WaitGroup
	for i, sk := range skills {
		wg.Add(1)
		go func(i int, sk retrieval.Skill) {
			defer wg.Done()
			res, err := limiter.Run(ctx, s.limiter, func(ctx context.Context) (*retrieval.MatchResult, error) {
				s.observeLimiter()
				defer s.observeLimiter()
				return retry.Do(ctx, s.opts.Retry, func(ctx context.Context) (*retrieval.MatchResult, error) {
					r, err := s.finder.FindMatches(ctx, retrieval.MatchRequest{
						Skills:    []retrieval.Skill{sk},
						Threshold: s.opts.Threshold,
						TopN:      s.opts.TopN,
						Embedding: embCfg,
						Filters:   run.input.Filters,
					})
					if errors.Is(err, retrieval.ErrInvalidArgument) || errors.Is(err, embedding.ErrUnsupportedConfiguration) {
						return nil, retry.Permanent(err)
					}
					return r, err
				})
			})
			if err != nil {
				outcomes[i].err = err
				return
			}
			outcomes[i].matches = res.BySkill[sk.Name]
			outcomes[i].usage = res.EmbeddingUsage.BySkill
		}(i, sk)
	}
	wg.Wait()

	res := run.result
	matches := make(map[string][]retrieval.SkillMatch, len(skills))
	var errs []error
	for i, sk := range skills {
		o := outcomes[i]
		if o.err != nil {
			errs = append(errs, o.err)
			s.skillFailed(run, StepRetrieval, sk.Name, o.err)
			continue
		}
		matches[sk.Name] = o.matches
		res.EmbeddingUsage.BySkill = append(res.EmbeddingUsage.BySkill, o.usage...)
		for _, u := range o.usage {
			if u.TotalTokens != nil {
				res.EmbeddingUsage.TotalTokens += *u.TotalTokens
			}
		}
	}
	if res.EmbeddingUsage.BySkill == nil {
		res.EmbeddingUsage.BySkill = []retrieval.UsageRecord{}
	}
	res.Usage[StepRetrieval] = embeddingTokens(res.EmbeddingUsage.BySkill)

	if len(matches) == 0 {
		return nil, fmt.Errorf("every skill failed retrieval: %w", errors.Join(errs...))
	}
	return matches, nil
}

type skillRelevance struct {
	attempted bool
	kept      []FilteredMatch
	usage     ai.Usage
	err       error
}

// filterRelevance scores each skill's courses and keeps the best ones.
// Skills without matches are not sent to the scorer.
func (s *RecommendService) filterRelevance(ctx context.Context, run *pipelineRun, skills []retrieval.Skill, matches map[string][]retrieval.SkillMatch) ([]FilteredMatch, error) {
	outcomes := make([]skillRelevance, len(skills))
	var wg sync.WaitGroup
	for i, sk := range skills {
		skillMatches := matches[sk.Name]
		if len(skillMatches) == 0 {
			continue
		}
		outcomes[i].attempted = true
		wg.Add(1)
		go func(i int, name string, skillMatches []retrieval.SkillMatch) {
			defer wg.Done()
			candidates, codes := courseCandidates(skillMatches)
			scored, err := limiter.Run(ctx, s.limiter, func(ctx context.Context) (*ai.RelevanceResult, error) {
				s.observeLimiter()
				defer s.observeLimiter()
				return retry.Do(ctx, s.opts.Retry, func(ctx context.Context) (*ai.RelevanceResult, error) {
					return s.collab.Scorer.ScoreRelevance(ctx, run.question, name, candidates)
				})
			})
			if err != nil {
				outcomes[i].err = fmt.Errorf("%w: %w", ErrRelevanceFilter, err)
				return
			}
			outcomes[i].usage = scored.Usage
			outcomes[i].kept = s.keepRelevant(name, skillMatches, codes, scored.Courses)
		}(i, sk.Name, skillMatches)
	}
	wg.Wait()

	var (
		filtered  []FilteredMatch
		errs      []error
		attempted int
		usage     ai.Usage
	)
	for i, sk := range skills {
		o := outcomes[i]
		if !o.attempted {
			continue
		}
		attempted++
		if o.err != nil {
			errs = append(errs, o.err)
			s.skillFailed(run, StepRelevanceFilter, sk.Name, o.err)
			continue
		}
		usage = usage.Add(o.usage)
		filtered = append(filtered, o.kept...)
	}
	run.result.Usage[StepRelevanceFilter] = usage

	if attempted > 0 && len(errs) == attempted {
		return nil, fmt.Errorf("every skill failed relevance filtering: %w", errors.Join(errs...))
	}
	return filtered, nil
}

// keepRelevant keeps outcomes of courses scored at least the minimum, best
// courses first, up to the per-skill cap.
func (s *RecommendService) keepRelevant(skill string, matches []retrieval.SkillMatch, codes map[string]uint, scored []ai.ScoredCourse) []FilteredMatch {
	best := make(map[uint]float64)
	for _, m := range matches {
		if m.SimilarityScore > best[m.CourseID] {
			best[m.CourseID] = m.SimilarityScore
		}
	}

	type keptCourse struct {
		id     uint
		score  int
		reason string
	}
	seen := make(map[uint]bool)
	var kept []keptCourse
	for _, sc := range scored {
		id, ok := codes[sc.Code]
		if !ok || seen[id] || sc.Score < s.opts.MinRelevanceScore {
			continue
		}
		seen[id] = true
		kept = append(kept, keptCourse{id: id, score: sc.Score, reason: sc.Reason})
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		if best[kept[i].id] != best[kept[j].id] {
			return best[kept[i].id] > best[kept[j].id]
		}
		return kept[i].id < kept[j].id
	})
	if len(kept) > s.opts.MaxCoursesPerSkill {
		kept = kept[:s.opts.MaxCoursesPerSkill]
	}

	byID := make(map[uint]keptCourse, len(kept))
	for _, k := range kept {
		byID[k.id] = k
	}
	var out []FilteredMatch
	for _, m := range matches {
		k, ok := byID[m.CourseID]
		if !ok {
			continue
		}
		out = append(out, FilteredMatch{
			Skill:       skill,
			CourseID:    m.CourseID,
			LOID:        m.LOID,
			Score:       m.SimilarityScore,
			Relevance:   k.score,
			SubjectCode: m.Metadata.SubjectCode,
			CourseName:  m.Metadata.CourseName,
			CLOText:     m.Metadata.CLOText,
			Reason:      k.reason,
		})
	}
	return out
}

func (s *RecommendService) skillFailed(run *pipelineRun, step, skill string, err error) {
	run.result.FailedSkills = appendUnique(run.result.FailedSkills, skill)
	SkillFailures.WithLabelValues(step).Inc()
	run.logger.Warn("skill dropped", zap.String("step", step), zap.String("skill", skill), zap.Error(err))
}

func (s *RecommendService) observeLimiter() {
	LimiterRunning.Set(float64(s.limiter.RunningCount()))
	LimiterQueued.Set(float64(s.limiter.QueueLength()))
}

// courseCandidates groups matches by course in match order. codes maps the
// code shown to the scorer back to the course id.
func courseCandidates(matches []retrieval.SkillMatch) ([]ai.CourseCandidate, map[string]uint) {
	codes := make(map[string]uint)
	index := make(map[uint]int)
	var out []ai.CourseCandidate
	for _, m := range matches {
		i, ok := index[m.CourseID]
		if !ok {
			code := m.Metadata.SubjectCode
			if _, taken := codes[code]; code == "" || taken {
				code = strconv.FormatUint(uint64(m.CourseID), 10)
			}
			codes[code] = m.CourseID
			index[m.CourseID] = len(out)
			out = append(out, ai.CourseCandidate{Code: code, Name: m.Metadata.CourseName})
			i = len(out) - 1
		}
		out[i].Outcomes = append(out[i].Outcomes, m.Metadata.CLOText)
	}
	return out, codes
}

func uniqueSkills(expanded []ai.ExpandedSkill) []retrieval.Skill {
	seen := make(map[string]bool, len(expanded))
	skills := make([]retrieval.Skill, 0, len(expanded))
	for _, e := range expanded {
		name := strings.TrimSpace(e.Skill)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		skills = append(skills, retrieval.Skill{Name: name, Context: strings.TrimSpace(e.Reason)})
	}
	return skills
}

func synthesisContext(profile *ai.Profile, courses []CourseView) ai.SynthesisContext {
	sc := ai.SynthesisContext{Courses: make([]ai.SynthesisCourse, 0, len(courses))}
	if profile != nil {
		sc.Profile = *profile
	}
	for _, c := range courses {
		outcomes := make([]string, 0, len(c.Outcomes))
		for _, o := range c.Outcomes {
			outcomes = append(outcomes, o.Text)
		}
		sc.Courses = append(sc.Courses, ai.SynthesisCourse{
			Code:     c.SubjectCode,
			Name:     c.CourseName,
			Skills:   c.Skills,
			Outcomes: outcomes,
			Reasons:  c.Reasons,
		})
	}
	return sc
}

func embeddingTokens(records []retrieval.UsageRecord) ai.Usage {
	var u ai.Usage
	for _, r := range records {
		if r.PromptTokens != nil {
			u.PromptTokens += *r.PromptTokens
		}
		if r.TotalTokens != nil {
			u.TotalTokens += *r.TotalTokens
		}
	}
	return u
}
