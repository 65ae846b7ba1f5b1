package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"course-advisor/internal/embedding"
	"course-advisor/internal/model"
	"course-advisor/internal/platform/database"
	"course-advisor/internal/repository"
)

type batchProvider struct {
	batches [][]string
	fail    bool
}

func (p *batchProvider) Spec() embedding.Spec {
	return embedding.Spec{Model: "e5", Provider: "tei", Dimension: 768}
}

func (p *batchProvider) EmbedOne(context.Context, string, embedding.Role) (*embedding.Result, error) {
	return nil, errors.New("not used")
}

func (p *batchProvider) EmbedMany(_ context.Context, texts []string, role embedding.Role) (*embedding.BatchResult, error) {
	if p.fail {
		return nil, errors.New("provider down")
	}
	if role != embedding.RolePassage {
		return nil, errors.New("outcomes are passages")
	}
	p.batches = append(p.batches, texts)
	items := make([]embedding.BatchItem, len(texts))
	for i := range texts {
		vec := make([]float32, 768)
		vec[i%768] = 1
		items[i] = embedding.BatchItem{Embedding: vec}
	}
	return &embedding.BatchResult{Items: items, Usage: &embedding.Usage{PromptTokens: len(texts)}}, nil
}

type recordingPublisher struct {
	jobs []EmbeddingJob
}

func (r *recordingPublisher) PublishEmbeddingJob(_ context.Context, job EmbeddingJob) error {
	r.jobs = append(r.jobs, job)
	return nil
}

func newEmbeddingService(t *testing.T, p embedding.Provider) (*OutcomeEmbeddingService, *gorm.DB, *recordingPublisher) {
	t.Helper()
	db, err := database.New(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	reg, err := embedding.NewRegistry(p)
	require.NoError(t, err)
	pub := &recordingPublisher{}
	svc := NewOutcomeEmbeddingService(reg, repository.NewOutcomeRepository(db), repository.NewEmbeddingVectorRepository(db), pub, nil)
	return svc, db, pub
}

func TestOutcomeEmbeddingService_Process(t *testing.T) {
	p := &batchProvider{}
	svc, db, _ := newEmbeddingService(t, p)
	ctx := context.Background()

	texts := []string{"analyze  data", "analyze data", "  ", "write essays"}
	for i := 0; i < 12; i++ {
		texts = append(texts, "outcome "+string(rune('a'+i)))
	}
	var ids []uint
	for i, text := range texts {
		o := model.CourseLearningOutcome{ID: uint(i + 1), CourseID: 1, Text: text}
		require.NoError(t, db.Create(&o).Error)
		ids = append(ids, o.ID)
	}

	report, err := svc.Process(ctx, EmbeddingJob{OutcomeIDs: ids, Model: "e5", Provider: "tei"})
	require.NoError(t, err)
	assert.Equal(t, len(texts), report.Outcomes)
	assert.Equal(t, 1, report.Skipped, "blank text is skipped")
	assert.Equal(t, 14, report.TextsEmbedded, "identical cleaned texts share one vector")
	assert.Equal(t, 15, report.Linked)
	require.Len(t, p.batches, 2)
	assert.Len(t, p.batches[0], 10)

	var first, second model.CourseLearningOutcome
	require.NoError(t, db.First(&first, 1).Error)
	require.NoError(t, db.First(&second, 2).Error)
	require.NotNil(t, first.VectorID)
	assert.Equal(t, *first.VectorID, *second.VectorID)
	assert.True(t, first.HasEmbedding768)

	again, err := svc.Process(ctx, EmbeddingJob{OutcomeIDs: ids, Model: "e5", Provider: "tei"})
	require.NoError(t, err)
	assert.Zero(t, again.TextsEmbedded, "replayed jobs embed nothing")
	assert.Len(t, p.batches, 2)
}

func TestOutcomeEmbeddingService_BackfillReusesVectors(t *testing.T) {
	p := &batchProvider{}
	svc, db, _ := newEmbeddingService(t, p)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.CourseLearningOutcome{ID: 1, CourseID: 1, Text: "analyze data"}).Error)
	_, err := svc.Process(ctx, EmbeddingJob{Model: "e5", Provider: "tei"})
	require.NoError(t, err)

	require.NoError(t, db.Create(&model.CourseLearningOutcome{ID: 2, CourseID: 2, Text: "analyze   data"}).Error)
	report, err := svc.Process(ctx, EmbeddingJob{Model: "e5", Provider: "tei"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Outcomes)
	assert.Zero(t, report.TextsEmbedded)
	assert.Equal(t, 1, report.Linked)
	assert.Len(t, p.batches, 1)
}

func TestOutcomeEmbeddingService_ProviderFailure(t *testing.T) {
	svc, db, _ := newEmbeddingService(t, &batchProvider{fail: true})
	require.NoError(t, db.Create(&model.CourseLearningOutcome{ID: 1, CourseID: 1, Text: "analyze data"}).Error)

	_, err := svc.Process(context.Background(), EmbeddingJob{Model: "e5", Provider: "tei"})
	require.Error(t, err)

	var o model.CourseLearningOutcome
	require.NoError(t, db.First(&o, 1).Error)
	assert.False(t, o.HasEmbedding768)
}

func TestOutcomeEmbeddingService_Enqueue(t *testing.T) {
	svc, _, pub := newEmbeddingService(t, &batchProvider{})
	ctx := context.Background()

	require.NoError(t, svc.Enqueue(ctx, EmbeddingJob{OutcomeIDs: []uint{1}, Model: "e5", Provider: "tei"}))
	require.Len(t, pub.jobs, 1)
	assert.False(t, pub.jobs[0].RequestedAt.IsZero())

	err := svc.Enqueue(ctx, EmbeddingJob{Model: "e5", Provider: "openai"})
	require.ErrorIs(t, err, embedding.ErrUnsupportedConfiguration)

	err = svc.Enqueue(ctx, EmbeddingJob{})
	require.ErrorIs(t, err, ErrInvalidInput)
}
