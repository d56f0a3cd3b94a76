package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/middleware"
	"github.com/xxxsen/mrag/internal/pkg/errcode"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/pkg/response"
)

// handleError logs err with the request context and answers with a code.
// Provider and storage messages stay in the log; callers only see the
// validation text of their own mistakes.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("stage", string(appErr.StageOf(err))),
		zap.Error(err),
	)
	code, msg := errorCode(err)
	response.Error(c, code, msg)
}

// errorCode maps err to a response code and message. Anything raised inside
// the pipeline is a server fault, so its stage wins over the error kind.
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, appErr.ErrTooMany):
		return errcode.ErrTooMany, "too many requests"
	case errors.Is(err, ai.ErrUnavailable):
		return errcode.ErrAIUnavailable, "ai not configured"
	}
	switch appErr.StageOf(err) {
	case appErr.StageEmbed:
		return errcode.ErrEmbedFailed, "embedding failed"
	case appErr.StageGenerate:
		return errcode.ErrGenerateFailed, "answer generation failed"
	case appErr.StageIndex, appErr.StageChunk, appErr.StageRetrieve:
		return errcode.ErrIndexFailed, "index operation failed"
	case appErr.StagePersist:
		return errcode.ErrStorage, "saving the index failed"
	}
	switch {
	case appErr.IsInvalid(err):
		return errcode.ErrInvalid, err.Error()
	case errors.Is(err, appErr.ErrUnsupportedFile):
		return errcode.ErrUnsupportedFile, err.Error()
	case errors.Is(err, appErr.ErrUploadTooLarge):
		return errcode.ErrUploadFailed, err.Error()
	case appErr.IsNotFound(err):
		return errcode.ErrNotFound, "not found"
	}
	if appErr.IsStorage(err) {
		return errcode.ErrStorage, "storage failure"
	}
	return errcode.ErrInternal, "internal error"
}
