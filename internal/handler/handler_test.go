package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mrag/internal/handler"
	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/errcode"
	"github.com/xxxsen/mrag/internal/service"
)

func TestQueryBeforeUpload(t *testing.T) {
	router := setupRouter(t, handler.UploadLimits{})
	env := doRequest(t, router, queryRequest("What color is the sky?"))
	require.Equal(t, errcode.ErrNoDocuments, env.Code)
	require.Equal(t, service.NoDocumentsMessage, env.Msg)

	env = doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/index/status", nil))
	require.Equal(t, 0, env.Code)
	var status model.IndexStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	require.Equal(t, model.IndexStateUninitialized, status.State)
	require.Equal(t, "memory", status.Store)
}

func TestUploadThenQuery(t *testing.T) {
	router := setupRouter(t, handler.UploadLimits{})
	env := doRequest(t, router, uploadRequest(t, map[string]string{
		"sky.txt":   "The sky is blue.",
		"blank.txt": "   \n",
	}))
	require.Equal(t, 0, env.Code)
	var up handler.UploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &up))
	require.Equal(t, "success", up.Status)
	require.Equal(t, 1, up.DocumentsAdded)
	require.Equal(t, []string{"sky.txt"}, up.Files)
	require.Equal(t, []string{"blank.txt"}, up.Skipped)

	env = doRequest(t, router, queryRequest("What color is the sky?"))
	require.Equal(t, 0, env.Code)
	var ans model.Answer
	require.NoError(t, json.Unmarshal(env.Data, &ans))
	require.Equal(t, "What color is the sky?", ans.Query)
	require.Contains(t, strings.ToLower(ans.Text), "blue")

	env = doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/index/status", nil))
	var status model.IndexStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	require.Equal(t, model.IndexStateReady, status.State)
	require.Equal(t, 1, status.Records)
	require.Len(t, status.RecentIngests, 1)
	require.Equal(t, "local/hash", status.EmbedModel)
}

func TestQueryFormAndFallback(t *testing.T) {
	router := setupRouter(t, handler.UploadLimits{})
	doRequest(t, router, uploadRequest(t, map[string]string{"sky.md": "# Sky\n\nThe sky is blue."}))

	form := url.Values{"query": {"Who won the 1998 World Cup?"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	env := doRequest(t, router, req)
	require.Equal(t, 0, env.Code)
	var ans model.Answer
	require.NoError(t, json.Unmarshal(env.Data, &ans))
	require.Equal(t, service.DefaultFallbackAnswer, ans.Text)
	require.Equal(t, model.AnswerStatusNotFound, ans.Status)
}

func TestQueryValidation(t *testing.T) {
	router := setupRouter(t, handler.UploadLimits{})
	env := doRequest(t, router, queryRequest("   "))
	require.Equal(t, errcode.ErrInvalid, env.Code)
}

func TestUploadRejections(t *testing.T) {
	router := setupRouter(t, handler.UploadLimits{MaxBytes: 8, MaxFiles: 1})

	env := doRequest(t, router, uploadRequest(t, map[string]string{"a.txt": "a", "b.txt": "b"}))
	require.Equal(t, errcode.ErrUploadFailed, env.Code)

	env = doRequest(t, router, uploadRequest(t, map[string]string{"big.txt": "more than eight bytes"}))
	require.Equal(t, errcode.ErrUploadFailed, env.Code)
	require.Contains(t, env.Msg, "1MB")

	env = doRequest(t, router, uploadRequest(t, map[string]string{}))
	require.Equal(t, errcode.ErrInvalid, env.Code)
}

func TestUploadSkipsUnsupportedFiles(t *testing.T) {
	router := setupRouter(t, handler.UploadLimits{})
	env := doRequest(t, router, uploadRequest(t, map[string]string{
		"sky.txt":   "The sky is blue.",
		"photo.png": "binary",
	}))
	require.Equal(t, 0, env.Code)
	var up handler.UploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &up))
	require.Equal(t, 1, up.DocumentsAdded)
	require.Equal(t, []string{"sky.txt"}, up.Files)
	require.Equal(t, []string{"photo.png"}, up.Skipped)

	env = doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/index/status", nil))
	var status model.IndexStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	require.Equal(t, model.IndexStateReady, status.State)
	require.Equal(t, 1, status.Records)

	env = doRequest(t, router, uploadRequest(t, map[string]string{"img.png": "x"}))
	require.Equal(t, 0, env.Code)
	up = handler.UploadResponse{}
	require.NoError(t, json.Unmarshal(env.Data, &up))
	require.Equal(t, 0, up.DocumentsAdded)
	require.Equal(t, []string{"img.png"}, up.Skipped)
}

func TestPing(t *testing.T) {
	router := setupRouter(t, handler.UploadLimits{})
	env := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	require.Equal(t, 0, env.Code)
}
