package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/middleware"
)

type RouterDeps struct {
	Upload      *UploadHandler
	Query       *QueryHandler
	Index       *IndexHandler
	QueryWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/ping", Ping)
	api.GET("/index/status", deps.Index.Status)
	api.POST("/upload", deps.Upload.Upload)

	limited := api.Group("")
	limited.Use(middleware.RateLimit(deps.QueryWindow))
	limited.POST("/query", deps.Query.Query)
}
