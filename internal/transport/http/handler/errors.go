package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"course-advisor/internal/app"
	"course-advisor/internal/embedding"
	"course-advisor/internal/retrieval"
	"course-advisor/internal/transport/http/response"
)

// writeError maps service errors to HTTP responses. Only caller mistakes are
// echoed back; everything else is logged through c.Error and answered with a
// generic message.
func writeError(c *gin.Context, err error, internalMsg string) {
	switch {
	case errors.Is(err, embedding.ErrUnsupportedConfiguration):
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedEmbedding, err.Error())
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, retrieval.ErrInvalidArgument):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrPipeline), errors.Is(err, app.ErrRelevanceFilter), errors.Is(err, app.ErrSynthesis),
		errors.Is(err, embedding.ErrEmbeddingFailure), errors.Is(err, embedding.ErrAlignmentFailure):
		_ = c.Error(err)
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailure, internalMsg)
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, internalMsg)
	}
}
