package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nameFly-top/vscode-codeBase/internal/config"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// HTTPClient talks to the embedding service over JSON with a bearer token.
// It implements both ChunkSink and Searcher.
type HTTPClient struct {
	endpointEmbed  string
	endpointUpsert string
	endpointSearch string
	token          string
	client         *http.Client

	pollInterval    time.Duration
	maxPollAttempts int
}

// NewHTTPClient creates a sink client from the sink configuration.
func NewHTTPClient(cfg config.SinkConfig) *HTTPClient {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpointEmbed:  cfg.EndpointEmbed,
		endpointUpsert: cfg.EndpointUpsert,
		endpointSearch: cfg.EndpointSearch,
		token:          cfg.Token,
		client:         &http.Client{Timeout: timeout},

		pollInterval:    time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		maxPollAttempts: cfg.MaxPollAttempts,
	}
}

type embedRequest struct {
	Chunks []types.Chunk `json:"chunks"`
}

// Embed ships a batch for embedding. When the service answers with a job in
// progress, the call polls the status endpoint until the job completes,
// fails, or the poll budget is exhausted.
func (c *HTTPClient) Embed(ctx context.Context, batch []types.Chunk) (*EmbedResult, error) {
	if len(batch) == 0 {
		return &EmbedResult{Status: StatusCompleted}, nil
	}

	var result EmbedResult
	if err := c.postJSON(ctx, c.endpointEmbed, embedRequest{Chunks: batch}, &result); err != nil {
		return nil, err
	}

	if result.Status == StatusProcessing && result.JobID != "" {
		return c.pollEmbed(ctx, result.JobID)
	}
	if result.Status == StatusFailed {
		return nil, &Error{StatusCode: http.StatusUnprocessableEntity, Body: "embed job failed"}
	}
	if len(result.IDs) != len(batch) {
		return nil, fmt.Errorf("%w: expected %d ids, got %d", types.ErrSink, len(batch), len(result.IDs))
	}
	return &result, nil
}

// pollEmbed polls the embed status endpoint up to maxPollAttempts times at
// pollInterval.
func (c *HTTPClient) pollEmbed(ctx context.Context, jobID string) (*EmbedResult, error) {
	statusURL := fmt.Sprintf("%s/status/%s", c.endpointEmbed, jobID)

	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", types.ErrCancelled, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		var result EmbedResult
		if err := c.getJSON(ctx, statusURL, &result); err != nil {
			return nil, err
		}
		switch result.Status {
		case StatusCompleted:
			return &result, nil
		case StatusFailed:
			return nil, &Error{StatusCode: http.StatusUnprocessableEntity, Body: "embed job failed"}
		}
		log.Debug().Str("job", jobID).Int("attempt", attempt+1).Msg("sink: embed job still processing")
	}
	return nil, fmt.Errorf("%w: embed job %s did not complete after %d polls", types.ErrSink, jobID, c.maxPollAttempts)
}

type upsertRequest struct {
	Vectors []Vector `json:"vectors"`
}

type upsertResponse struct {
	Ack bool `json:"ack"`
}

// Upsert writes embedded vectors to the remote store.
func (c *HTTPClient) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	var resp upsertResponse
	if err := c.postJSON(ctx, c.endpointUpsert, upsertRequest{Vectors: vectors}, &resp); err != nil {
		return err
	}
	if !resp.Ack {
		return fmt.Errorf("%w: upsert not acknowledged", types.ErrSink)
	}
	return nil
}

type searchRequest struct {
	Query   string               `json:"query"`
	TopK    int                  `json:"topK"`
	Filters *types.SearchFilters `json:"filters,omitempty"`
}

type searchResponse struct {
	Hits []types.SearchHit `json:"hits"`
}

// Search queries the remote vector store.
func (c *HTTPClient) Search(ctx context.Context, query string, topK int, filters *types.SearchFilters) ([]types.SearchHit, error) {
	var resp searchResponse
	if err := c.postJSON(ctx, c.endpointSearch, searchRequest{Query: query, TopK: topK, Filters: filters}, &resp); err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", types.ErrSink, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", types.ErrSink, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", types.ErrSink, err)
	}
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Transport errors are transient: no status code, never permanent.
		return fmt.Errorf("%w: %v", types.ErrSink, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", types.ErrSink, err)
	}
	return nil
}
