package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"course-advisor/internal/app"
	"course-advisor/internal/model"
	"course-advisor/internal/retrieval"
	"course-advisor/internal/transport/http/middleware"
	"course-advisor/internal/transport/http/response"
)

type Recommender interface {
	Recommend(ctx context.Context, input app.RecommendInput) (*app.RecommendResult, error)
}

type RecommendationHandler struct {
	service Recommender
}

type recommendRequest struct {
	Question  string                     `json:"question" binding:"required,max=2000"`
	Filters   model.RetrievalFilters     `json:"filters"`
	Embedding *retrieval.EmbeddingConfig `json:"embedding"`
}

func NewRecommendationHandler(service Recommender) *RecommendationHandler {
	return &RecommendationHandler{service: service}
}

// Recommend answers a question with recommended courses. Rejected questions
// are a normal outcome and come back with status 200 and a fallback answer.
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.service.Recommend(c.Request.Context(), app.RecommendInput{
		RequestID: c.GetString(middleware.RequestIDKey),
		Question:  req.Question,
		Filters:   req.Filters,
		Embedding: req.Embedding,
	})
	if err != nil {
		writeError(c, err, "recommendation failed")
		return
	}
	response.OK(c, result)
}
