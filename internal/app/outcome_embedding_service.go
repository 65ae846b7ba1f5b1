package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"course-advisor/internal/embedding"
	"course-advisor/internal/model"
	"course-advisor/internal/repository"
	"course-advisor/internal/retrieval"
)

const (
	embeddingBatchSize = 10
	backfillLimit      = 500
)

// EmbeddingJob asks for outcomes to be embedded with one provider. An empty
// OutcomeIDs list backfills outcomes still missing that dimension.
type EmbeddingJob struct {
	OutcomeIDs  []uint    `json:"outcome_ids"`
	Model       string    `json:"model"`
	Provider    string    `json:"provider"`
	RequestedAt time.Time `json:"requested_at"`
}

type EmbeddingJobPublisher interface {
	PublishEmbeddingJob(ctx context.Context, job EmbeddingJob) error
}

type EmbeddingReport struct {
	Outcomes      int `json:"outcomes"`
	Skipped       int `json:"skipped"`
	TextsEmbedded int `json:"texts_embedded"`
	Linked        int `json:"linked"`
	PromptTokens  int `json:"prompt_tokens"`
}

// OutcomeEmbeddingService fills outcome embeddings. Vectors are shared by
// every outcome with the same cleaned text, and a stored embedding is never
// replaced.
type OutcomeEmbeddingService struct {
	providers retrieval.ProviderLookup
	outcomes  *repository.OutcomeRepository
	vectors   *repository.EmbeddingVectorRepository
	publisher EmbeddingJobPublisher
	logger    *zap.Logger
}

func NewOutcomeEmbeddingService(
	providers retrieval.ProviderLookup,
	outcomes *repository.OutcomeRepository,
	vectors *repository.EmbeddingVectorRepository,
	publisher EmbeddingJobPublisher,
	logger *zap.Logger,
) *OutcomeEmbeddingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutcomeEmbeddingService{
		providers: providers,
		outcomes:  outcomes,
		vectors:   vectors,
		publisher: publisher,
		logger:    logger,
	}
}

// Enqueue validates the job and hands it to the worker queue.
func (s *OutcomeEmbeddingService) Enqueue(ctx context.Context, job EmbeddingJob) error {
	if job.Model == "" || job.Provider == "" {
		return fmt.Errorf("%w: model and provider are required", ErrInvalidInput)
	}
	if _, err := s.providers.Lookup(job.Model, job.Provider); err != nil {
		return err
	}
	if job.RequestedAt.IsZero() {
		job.RequestedAt = time.Now()
	}
	if err := s.publisher.PublishEmbeddingJob(ctx, job); err != nil {
		return fmt.Errorf("publish embedding job failed: %w", err)
	}
	return nil
}

type pendingText struct {
	vector   *model.EmbeddingVector
	outcomes []uint
}

// Process embeds the job's outcomes. Work already stored is skipped, so a
// job can be replayed safely.
func (s *OutcomeEmbeddingService) Process(ctx context.Context, job EmbeddingJob) (*EmbeddingReport, error) {
	provider, err := s.providers.Lookup(job.Model, job.Provider)
	if err != nil {
		return nil, err
	}
	dim := provider.Spec().Dimension
	if _, err := model.EmbeddingColumn(dim); err != nil {
		return nil, err
	}

	var outcomes []model.CourseLearningOutcome
	if len(job.OutcomeIDs) == 0 {
		outcomes, err = s.outcomes.ListMissingEmbedding(ctx, dim, backfillLimit)
	} else {
		outcomes, err = s.outcomes.ListByIDs(ctx, job.OutcomeIDs)
	}
	if err != nil {
		return nil, err
	}

	report := &EmbeddingReport{Outcomes: len(outcomes)}
	byText := make(map[string]*pendingText)
	var order []string
	for _, o := range outcomes {
		text := model.CleanText(o.Text)
		if text == "" || o.HasEmbeddingFor(dim) {
			report.Skipped++
			continue
		}
		p, ok := byText[text]
		if !ok {
			p = &pendingText{}
			byText[text] = p
			order = append(order, text)
		}
		p.outcomes = append(p.outcomes, o.ID)
	}

	var toEmbed []string
	for _, text := range order {
		v, err := s.vectors.FindOrCreate(ctx, text)
		if err != nil {
			return nil, err
		}
		byText[text].vector = v
		if v.EmbeddingFor(dim) == nil {
			toEmbed = append(toEmbed, text)
		}
	}

	for start := 0; start < len(toEmbed); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(toEmbed) {
			end = len(toEmbed)
		}
		batch := toEmbed[start:end]
		vectors, usage, err := embedding.EmbedManyAligned(ctx, provider, batch, embedding.RolePassage)
		if err != nil {
			return nil, fmt.Errorf("embed outcome batch failed: %w", err)
		}
		if usage != nil {
			report.PromptTokens += usage.PromptTokens
		}
		for i, text := range batch {
			if _, err := s.vectors.SetEmbeddingIfEmpty(ctx, byText[text].vector.ID, vectors[i]); err != nil {
				return nil, err
			}
			report.TextsEmbedded++
		}
	}

	for _, text := range order {
		p := byText[text]
		for _, id := range p.outcomes {
			if err := s.outcomes.LinkVector(ctx, id, p.vector.ID, dim); err != nil {
				return nil, err
			}
			report.Linked++
		}
	}
	OutcomesEmbedded.WithLabelValues(strconv.Itoa(dim)).Add(float64(report.Linked))

	s.logger.Info("outcome embeddings stored",
		zap.String("provider", job.Provider),
		zap.String("model", job.Model),
		zap.Int("outcomes", report.Outcomes),
		zap.Int("texts_embedded", report.TextsEmbedded),
		zap.Int("linked", report.Linked))
	return report, nil
}
