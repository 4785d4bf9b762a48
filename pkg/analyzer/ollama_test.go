package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOllamaAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "llava", req.Model)
		require.Len(t, req.Messages, 2)
		require.Len(t, req.Messages[1].Images, 1)

		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: `{"recommendation":"approve","reliability":0.8}`},
			Done:    true,
		})
	}))
	defer srv.Close()

	o := NewOllama(srv.URL+"/", "", time.Second)
	res, err := o.Analyze(context.Background(), []byte("png"))
	require.NoError(t, err)
	require.Equal(t, "approve", res.Recommendation)
	require.Equal(t, "ollama:llava", o.Name())
}

func TestOllamaAnalyzeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "llava", time.Second).Analyze(context.Background(), []byte("png"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "model not loaded")
}
