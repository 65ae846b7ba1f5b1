package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"course-advisor/internal/app"
)

type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAck) Ack(bool) error {
	f.acked = true
	return nil
}

func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

type fakeProcessor struct {
	jobs []app.EmbeddingJob
	err  error
}

func (f *fakeProcessor) Process(_ context.Context, job app.EmbeddingJob) (*app.EmbeddingReport, error) {
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return nil, f.err
	}
	return &app.EmbeddingReport{Linked: len(job.OutcomeIDs)}, nil
}

func TestOutcomeEmbeddingWorker_Handle(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		processErr  error
		wantAck     bool
		wantRequeue bool
		wantJobs    int
	}{
		{name: "processed", body: `{"outcome_ids":[1,2],"model":"e5","provider":"tei"}`, wantAck: true, wantJobs: 1},
		{name: "bad payload", body: `{`, wantJobs: 0},
		{name: "failed job requeued", body: `{"model":"e5","provider":"tei"}`, processErr: errors.New("provider down"), wantRequeue: true, wantJobs: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{err: tt.processErr}
			w := NewOutcomeEmbeddingWorker(nil, p, "clo.embedding", zaptest.NewLogger(t))
			ack := &fakeAck{}

			w.handle(context.Background(), []byte(tt.body), ack)

			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, !tt.wantAck, ack.nacked)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
			assert.Len(t, p.jobs, tt.wantJobs)
		})
	}
}

func TestOutcomeEmbeddingWorker_DecodesJob(t *testing.T) {
	p := &fakeProcessor{}
	w := NewOutcomeEmbeddingWorker(nil, p, "q", nil)

	w.handle(context.Background(), []byte(`{"outcome_ids":[4],"model":"text-embedding-3-small","provider":"openai"}`), &fakeAck{})

	assert.Equal(t, []uint{4}, p.jobs[0].OutcomeIDs)
	assert.Equal(t, "openai", p.jobs[0].Provider)
}
