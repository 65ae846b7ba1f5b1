package handler

import (
	"github.com/gin-gonic/gin"

	"course-advisor/internal/embedding"
	"course-advisor/internal/transport/http/response"
)

type SpecLister interface {
	Specs() []embedding.Spec
}

type EmbeddingHandler struct {
	specs SpecLister
}

func NewEmbeddingHandler(specs SpecLister) *EmbeddingHandler {
	return &EmbeddingHandler{specs: specs}
}

// ListProviders returns the (model, provider) pairs requests may select.
func (h *EmbeddingHandler) ListProviders(c *gin.Context) {
	response.OK(c, gin.H{"providers": h.specs.Specs()})
}
