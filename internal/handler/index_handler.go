package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/response"
	"github.com/xxxsen/mrag/internal/service"
)

const recentIngestLimit = 10

type IngestLogLister interface {
	ListRecent(ctx context.Context, limit uint) ([]*model.IngestLog, error)
}

type IndexHandler struct {
	ingest *service.IngestService
	logs   IngestLogLister
}

// NewIndexHandler builds the status endpoint. logs may be nil when no
// database is configured.
func NewIndexHandler(ingest *service.IngestService, logs IngestLogLister) *IndexHandler {
	return &IndexHandler{ingest: ingest, logs: logs}
}

func (h *IndexHandler) Status(c *gin.Context) {
	status := h.ingest.Status()
	if h.logs != nil {
		items, err := h.logs.ListRecent(c.Request.Context(), recentIngestLimit)
		if err != nil {
			logutil.GetLogger(c.Request.Context()).Warn("list ingest logs failed", zap.Error(err))
		} else {
			status.RecentIngests = items
		}
	}
	response.Success(c, status)
}

func Ping(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
