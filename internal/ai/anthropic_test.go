package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const anthropicReply = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"model": "claude-test",
	"stop_reason": "end_turn",
	"content": [
		{"type": "thinking", "thinking": "skip me", "signature": "sig"},
		{"type": "text", "text": " The sky is blue. "}
	],
	"usage": {"input_tokens": 10, "output_tokens": 5}
}`

func TestAnthropicGenerateKeepsTextBlocks(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(anthropicReply))
	}))
	defer srv.Close()

	p, err := createAnthropicFactory(map[string]interface{}{"api_key": "test-key", "base_url": srv.URL})
	require.NoError(t, err)
	out, err := p.Generate(context.Background(), "claude-test", "What color is the sky?")
	require.NoError(t, err)
	require.Equal(t, "The sky is blue.", out)
	require.Equal(t, "/v1/messages", path)
}

func TestAnthropicWithoutKeyIsUnavailable(t *testing.T) {
	p, err := createAnthropicFactory(nil)
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "claude-test", "hi")
	require.ErrorIs(t, err, ErrUnavailable)
}
