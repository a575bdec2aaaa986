package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPChunkSink_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "chunks")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(EmbedResult{Status: "completed", IDs: []string{"id1"}})
	}))
	defer srv.Close()

	sink := NewHTTPChunkSink(srv.URL, srv.URL+"/upsert", "test-token", 5*time.Second)
	result, err := sink.Embed(context.Background(), []Chunk{{ChunkID: "c1"}})
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, []string{"id1"}, result.IDs)
}

func TestHTTPChunkSink_EmbedServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewHTTPChunkSink(srv.URL, srv.URL, "tok", 5*time.Second)
	_, err := sink.Embed(context.Background(), []Chunk{{ChunkID: "c1"}})
	require.Error(t, err)
	assert.False(t, isPermanentSinkErr(err))
}

func TestHTTPChunkSink_EmbedClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	sink := NewHTTPChunkSink(srv.URL, srv.URL, "tok", 5*time.Second)
	_, err := sink.Embed(context.Background(), []Chunk{{ChunkID: "c1"}})
	require.Error(t, err)
	assert.True(t, isPermanentSinkErr(err))
}

func TestHTTPChunkSink_Poll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(EmbedResult{Status: "completed"})
	}))
	defer srv.Close()

	sink := NewHTTPChunkSink(srv.URL, srv.URL, "tok", 5*time.Second)
	result, err := sink.Poll(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Status)
}
