package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"course-advisor/internal/app"
	"course-advisor/internal/retrieval"
	"course-advisor/internal/transport/http/response"
)

type EmbeddingJobQueue interface {
	Enqueue(ctx context.Context, job app.EmbeddingJob) error
}

type OutcomeHandler struct {
	queue    EmbeddingJobQueue
	fallback retrieval.EmbeddingConfig
}

type embedOutcomesRequest struct {
	OutcomeIDs []uint `json:"outcome_ids" binding:"omitempty,max=1000,dive,gt=0"`
	Model      string `json:"model"`
	Provider   string `json:"provider"`
}

// NewOutcomeHandler queues embedding jobs. fallback is used when a request
// names no model.
func NewOutcomeHandler(queue EmbeddingJobQueue, fallback retrieval.EmbeddingConfig) *OutcomeHandler {
	return &OutcomeHandler{queue: queue, fallback: fallback}
}

// EmbedOutcomes queues outcomes for embedding. No ids means backfill every
// outcome still missing the model's dimension.
func (h *OutcomeHandler) EmbedOutcomes(c *gin.Context) {
	var req embedOutcomesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if req.Model == "" && req.Provider == "" {
		req.Model = h.fallback.Model
		req.Provider = h.fallback.Provider
	}

	job := app.EmbeddingJob{
		OutcomeIDs:  req.OutcomeIDs,
		Model:       req.Model,
		Provider:    req.Provider,
		RequestedAt: time.Now(),
	}
	if err := h.queue.Enqueue(c.Request.Context(), job); err != nil {
		writeError(c, err, "queue embedding job failed")
		return
	}
	response.Accepted(c, job)
}
