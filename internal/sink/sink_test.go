package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nameFly-top/vscode-codeBase/internal/config"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

func testBatch(n int) []types.Chunk {
	batch := make([]types.Chunk, n)
	for i := range batch {
		batch[i] = types.Chunk{
			ID:        types.ComputeChunkID("a.py", i+1, i+1),
			FilePath:  "a.py",
			Language:  "python",
			StartLine: i + 1,
			EndLine:   i + 1,
			Content:   "x = 1",
			Type:      types.ChunkVariable,
			Parser:    "python_parser",
		}
	}
	return batch
}

func clientFor(srv *httptest.Server) *HTTPClient {
	return NewHTTPClient(config.SinkConfig{
		EndpointEmbed:   srv.URL + "/embed",
		EndpointUpsert:  srv.URL + "/upsert",
		EndpointSearch:  srv.URL + "/search",
		Token:           "tok-123",
		TimeoutMs:       5000,
		PollIntervalMs:  1,
		MaxPollAttempts: 5,
	})
}

func TestEmbed_Synchronous(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		ids := make([]string, len(req.Chunks))
		for i, c := range req.Chunks {
			ids[i] = c.ID
		}
		_ = json.NewEncoder(w).Encode(EmbedResult{Status: StatusCompleted, IDs: ids})
	}))
	defer srv.Close()

	batch := testBatch(3)
	res, err := clientFor(srv).Embed(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Len(t, res.IDs, 3)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestEmbed_AsyncPollsUntilComplete(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(EmbedResult{Status: StatusProcessing, JobID: "job-1"})
		default:
			if polls.Add(1) < 3 {
				_ = json.NewEncoder(w).Encode(EmbedResult{Status: StatusProcessing, JobID: "job-1"})
				return
			}
			_ = json.NewEncoder(w).Encode(EmbedResult{Status: StatusCompleted, IDs: []string{"id-1"}})
		}
	}))
	defer srv.Close()

	res, err := clientFor(srv).Embed(context.Background(), testBatch(1))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, int32(3), polls.Load())
}

func TestEmbed_PollBudgetExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(EmbedResult{Status: StatusProcessing, JobID: "job-1"})
			return
		}
		_ = json.NewEncoder(w).Encode(EmbedResult{Status: StatusProcessing, JobID: "job-1"})
	}))
	defer srv.Close()

	_, err := clientFor(srv).Embed(context.Background(), testBatch(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrSink)
}

func TestEmbed_4xxIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad batch", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := clientFor(srv).Embed(context.Background(), testBatch(1))
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, types.ErrSink)
}

func TestEmbed_5xxIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "flaky", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := clientFor(srv).Embed(context.Background(), testBatch(1))
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestEmbed_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately: connection refused

	_, err := clientFor(srv).Embed(context.Background(), testBatch(1))
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
	assert.ErrorIs(t, err, types.ErrSink)
}

func TestEmbed_EmptyBatch(t *testing.T) {
	res, err := clientFor(httptest.NewUnstartedServer(nil)).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
}

func TestUpsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req upsertRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Vectors, 2)
		_ = json.NewEncoder(w).Encode(upsertResponse{Ack: true})
	}))
	defer srv.Close()

	err := clientFor(srv).Upsert(context.Background(), []Vector{
		{ID: "a", Vector: []float32{0.1, 0.2}},
		{ID: "b", Vector: []float32{0.3, 0.4}},
	})
	assert.NoError(t, err)
}

func TestUpsert_NotAcknowledged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(upsertResponse{Ack: false})
	}))
	defer srv.Close()

	err := clientFor(srv).Upsert(context.Background(), []Vector{{ID: "a"}})
	assert.ErrorIs(t, err, types.ErrSink)
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "worker pool", req.Query)
		assert.Equal(t, 5, req.TopK)
		_ = json.NewEncoder(w).Encode(searchResponse{Hits: []types.SearchHit{
			{ChunkID: "c1", Rank: 1, Score: 0.91, FilePath: "pool.go"},
		}})
	}))
	defer srv.Close()

	hits, err := clientFor(srv).Search(context.Background(), "worker pool", 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "pool.go", hits[0].FilePath)
}
