package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/handler"
	"github.com/xxxsen/mrag/internal/middleware"
	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/service"
	"github.com/xxxsen/mrag/internal/snapshot"
	"github.com/xxxsen/mrag/internal/vectorindex"
)

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "blue") && strings.Contains(prompt, "sky?") {
		return "The sky is blue.", nil
	}
	return "I don't know.", nil
}

type stubLogs struct {
	items []*model.IngestLog
}

func (s *stubLogs) Append(ctx context.Context, item *model.IngestLog) error {
	s.items = append([]*model.IngestLog{item}, s.items...)
	return nil
}

func (s *stubLogs) ListRecent(ctx context.Context, limit uint) ([]*model.IngestLog, error) {
	if uint(len(s.items)) > limit {
		return s.items[:limit], nil
	}
	return s.items, nil
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"message"`
	Data json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T, limits handler.UploadLimits) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	embedder := ai.NewEmbedder(ai.NewLocalEmbedProvider(128), "hash")
	chunker, err := ai.NewChunker(ai.DefaultChunkSize, ai.DefaultChunkOverlap)
	require.NoError(t, err)
	index := vectorindex.New()
	store := snapshot.NewMemory()
	logs := &stubLogs{}

	ingest := service.NewIngestService(chunker, embedder, index, store, logs, service.IngestConfig{})
	query := service.NewQueryService(embedder, index, ai.NewManager(stubGenerator{}, ai.ManagerConfig{}),
		service.NewAnswerPolicy("", nil), service.QueryConfig{})

	deps := handler.RouterDeps{
		Upload: handler.NewUploadHandler(ingest, limits),
		Query:  handler.NewQueryHandler(query),
		Index:  handler.NewIndexHandler(ingest, logs),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine
}

func doRequest(t *testing.T, h http.Handler, req *http.Request) envelope {
	t.Helper()
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env
}

func uploadRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func queryRequest(q string) *http.Request {
	payload, _ := json.Marshal(map[string]string{"query": q})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}
