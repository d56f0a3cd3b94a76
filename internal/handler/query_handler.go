package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/errcode"
	"github.com/xxxsen/mrag/internal/pkg/response"
	"github.com/xxxsen/mrag/internal/service"
)

type QueryHandler struct {
	query *service.QueryService
}

type queryRequest struct {
	Query string `json:"query" form:"query"`
}

func NewQueryHandler(query *service.QueryService) *QueryHandler {
	return &QueryHandler{query: query}
}

// Query accepts a form field or a JSON body named query.
func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return
	}
	answer, err := h.query.Answer(c.Request.Context(), req.Query)
	if err != nil {
		handleError(c, err)
		return
	}
	if answer.Status == model.AnswerStatusNoDocuments {
		response.Error(c, errcode.ErrNoDocuments, answer.Text)
		return
	}
	response.Success(c, answer)
}
