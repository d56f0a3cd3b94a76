package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/extract"
	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/errcode"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/pkg/response"
	"github.com/xxxsen/mrag/internal/service"
)

const uploadField = "files"

type UploadHandler struct {
	ingest *service.IngestService
	limits UploadLimits
}

type UploadResponse struct {
	Status         string   `json:"status"`
	DocumentsAdded int      `json:"documents_added"`
	TotalChunks    int      `json:"total_chunks"`
	Files          []string `json:"files"`
	Skipped        []string `json:"skipped,omitempty"`
}

func NewUploadHandler(ingest *service.IngestService, limits UploadLimits) *UploadHandler {
	return &UploadHandler{ingest: ingest, limits: limits}
}

// Upload extracts every file in the request and ingests them as one batch.
// Files whose text is blank or whose type is not supported are reported as
// skipped.
func (h *UploadHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "multipart form is required")
		return
	}
	files := form.File[uploadField]
	if len(files) == 0 {
		response.Error(c, errcode.ErrInvalid, "no files uploaded")
		return
	}
	if h.limits.MaxFiles > 0 && len(files) > h.limits.MaxFiles {
		response.Error(c, errcode.ErrUploadFailed, fmt.Sprintf("at most %d files per upload", h.limits.MaxFiles))
		return
	}

	docs := make([]model.Document, 0, len(files))
	resp := UploadResponse{Status: "success"}
	for _, fh := range files {
		text, err := h.readFile(fh)
		if errors.Is(err, appErr.ErrUnsupportedFile) {
			logutil.GetLogger(c.Request.Context()).Warn("skip unsupported file",
				zap.String("file", fh.Filename), zap.Error(err))
			resp.Skipped = append(resp.Skipped, fh.Filename)
			continue
		}
		if err != nil {
			handleError(c, err)
			return
		}
		if strings.TrimSpace(text) == "" {
			resp.Skipped = append(resp.Skipped, fh.Filename)
			continue
		}
		docs = append(docs, model.Document{Source: fh.Filename, Content: text})
		resp.Files = append(resp.Files, fh.Filename)
	}

	result, err := h.ingest.Ingest(c.Request.Context(), docs)
	if err != nil {
		handleError(c, err)
		return
	}
	logutil.GetLogger(c.Request.Context()).Info("upload ingested",
		zap.Strings("files", resp.Files),
		zap.Int("skipped", len(resp.Skipped)),
		zap.Int("chunks_added", result.ChunksAdded),
	)
	resp.DocumentsAdded = result.ChunksAdded
	resp.TotalChunks = result.TotalChunks
	response.Success(c, resp)
}

func (h *UploadHandler) readFile(fh *multipart.FileHeader) (string, error) {
	if h.limits.MaxBytes > 0 && fh.Size > h.limits.MaxBytes {
		return "", fmt.Errorf("%s exceeds %s: %w", fh.Filename, formatUploadLimit(h.limits.MaxBytes), appErr.ErrUploadTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	var r io.Reader = f
	if h.limits.MaxBytes > 0 {
		r = io.LimitReader(f, h.limits.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	if h.limits.MaxBytes > 0 && int64(len(data)) > h.limits.MaxBytes {
		return "", fmt.Errorf("%s exceeds %s: %w", fh.Filename, formatUploadLimit(h.limits.MaxBytes), appErr.ErrUploadTooLarge)
	}
	return extract.Text(fh.Filename, data)
}
