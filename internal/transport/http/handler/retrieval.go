package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"course-advisor/internal/model"
	"course-advisor/internal/retrieval"
	"course-advisor/internal/transport/http/response"
)

type MatchFinder interface {
	FindMatches(ctx context.Context, req retrieval.MatchRequest) (*retrieval.MatchResult, error)
}

// RetrievalDefaults fill fields a match request leaves out.
type RetrievalDefaults struct {
	Threshold float64
	TopN      int
	Embedding retrieval.EmbeddingConfig
}

type RetrievalHandler struct {
	finder   MatchFinder
	defaults RetrievalDefaults
}

type matchRequest struct {
	Skills    []retrieval.Skill          `json:"skills" binding:"required,min=1,dive"`
	Threshold *float64                   `json:"threshold" binding:"omitempty,gte=0,lte=1"`
	TopN      *int                       `json:"top_n" binding:"omitempty,gte=1"`
	Embedding *retrieval.EmbeddingConfig `json:"embedding"`
	Filters   model.RetrievalFilters     `json:"filters"`
}

func NewRetrievalHandler(finder MatchFinder, defaults RetrievalDefaults) *RetrievalHandler {
	return &RetrievalHandler{finder: finder, defaults: defaults}
}

func (h *RetrievalHandler) FindMatches(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	query := retrieval.MatchRequest{
		Skills:    req.Skills,
		Threshold: h.defaults.Threshold,
		TopN:      h.defaults.TopN,
		Embedding: h.defaults.Embedding,
		Filters:   req.Filters,
	}
	if req.Threshold != nil {
		query.Threshold = *req.Threshold
	}
	if req.TopN != nil {
		query.TopN = *req.TopN
	}
	if req.Embedding != nil {
		query.Embedding = *req.Embedding
	}

	result, err := h.finder.FindMatches(c.Request.Context(), query)
	if err != nil {
		writeError(c, err, "find matches failed")
		return
	}
	response.OK(c, result)
}
