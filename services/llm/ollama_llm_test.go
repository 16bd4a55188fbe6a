package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOllamaClient_ExplicitConfigWinsOverEnv(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-host:11434")
	t.Setenv("OLLAMA_MODEL", "env-model")

	client, err := NewOllamaClient("http://cfg-host:11434/", "codellama")
	require.NoError(t, err)
	assert.Equal(t, "http://cfg-host:11434", client.baseURL)
	assert.Equal(t, "codellama", client.model)
}

func TestNewOllamaClient_EnvFallback(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-host:11434")
	t.Setenv("OLLAMA_MODEL", "env-model")

	client, err := NewOllamaClient("", "")
	require.NoError(t, err)
	assert.Equal(t, "http://env-host:11434", client.baseURL)
	assert.Equal(t, "env-model", client.model)
}

func TestNewOllamaClient_MissingBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")

	_, err := NewOllamaClient("", "llama3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL")
}

func TestNewOllamaClient_DefaultModel(t *testing.T) {
	t.Setenv("OLLAMA_MODEL", "")

	client, err := NewOllamaClient("http://localhost:11434", "")
	require.NoError(t, err)
	assert.Equal(t, "llama3", client.model)
}

func TestOllamaClient_Generate(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    req.Model,
			Response: "MATCH (n) RETURN n.id",
			Done:     true,
		})
	}))
	defer server.Close()

	client, err := NewOllamaClient(server.URL, "codellama")
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), "list nodes", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n) RETURN n.id", out)
	assert.Equal(t, "codellama", gotModel)
}

func TestOllamaClient_Generate_ServerDownIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, err := NewOllamaClient(server.URL, "codellama")
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "list nodes", GenerationParams{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestOllamaClient_Generate_CanceledContextIsNotUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "ok", Done: true})
	}))
	defer server.Close()

	client, err := NewOllamaClient(server.URL, "codellama")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Generate(ctx, "list nodes", GenerationParams{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrUnavailable),
		"cancellation must not trigger the deterministic fallback")
}

func TestOllamaClient_Generate_MissingModelIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'codellama' not found"})
	}))
	defer server.Close()

	client, err := NewOllamaClient(server.URL, "codellama")
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "list nodes", GenerationParams{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "ollama pull")
}
