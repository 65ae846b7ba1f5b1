package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"course-advisor/internal/app"
	"course-advisor/internal/platform/rabbitmq"
)

// JobProcessor handles one decoded embedding job.
type JobProcessor interface {
	Process(ctx context.Context, job app.EmbeddingJob) (*app.EmbeddingReport, error)
}

// OutcomeEmbeddingWorker consumes embedding jobs one at a time.
type OutcomeEmbeddingWorker struct {
	conn       *amqp.Connection
	processor  JobProcessor
	queueName  string
	jobTimeout time.Duration
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOutcomeEmbeddingWorker(conn *amqp.Connection, processor JobProcessor, queueName string, logger *zap.Logger) *OutcomeEmbeddingWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutcomeEmbeddingWorker{
		conn:       conn,
		processor:  processor,
		queueName:  queueName,
		jobTimeout: 5 * time.Minute,
		logger:     logger,
	}
}

func (w *OutcomeEmbeddingWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()
		w.consume(workerCtx, deliveries)
	}()

	w.logger.Info("outcome embedding worker started", zap.String("queue", w.queueName))
	return nil
}

// Acknowledger is the part of amqp.Delivery the worker settles.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (w *OutcomeEmbeddingWorker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.handle(ctx, d.Body, &d)
		}
	}
}

// handle acks processed jobs. Undecodable jobs are dropped; failed jobs are
// requeued once and dropped when redelivered failing again.
func (w *OutcomeEmbeddingWorker) handle(ctx context.Context, body []byte, ack Acknowledger) {
	var job app.EmbeddingJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.logger.Error("worker decode embedding job failed", zap.Error(err))
		_ = ack.Nack(false, false)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	report, err := w.processor.Process(jobCtx, job)
	if err != nil {
		redelivered := false
		if d, ok := ack.(*amqp.Delivery); ok {
			redelivered = d.Redelivered
		}
		w.logger.Error("worker embedding job failed",
			zap.String("provider", job.Provider),
			zap.String("model", job.Model),
			zap.Int("outcomes", len(job.OutcomeIDs)),
			zap.Bool("redelivered", redelivered),
			zap.Error(err))
		_ = ack.Nack(false, !redelivered)
		return
	}

	w.logger.Info("worker embedding job done",
		zap.String("provider", job.Provider),
		zap.Int("linked", report.Linked),
		zap.Int("texts_embedded", report.TextsEmbedded))
	_ = ack.Ack(false)
}

func (w *OutcomeEmbeddingWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
