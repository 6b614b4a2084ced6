// Package knowledge is the client for the external knowledge search service.
// The chat handler queries it when no playbook is active or triggered; the
// engine itself never calls it.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultSearchTimeout = 5 * time.Second

// Query is one knowledge search request.
type Query struct {
	Text                string  `json:"query"`
	BusinessID          string  `json:"business_id"`
	BotID               string  `json:"bot_id,omitempty"`
	MaxChunks           int     `json:"max_chunks,omitempty"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
}

// Chunk is one ranked search result.
type Chunk struct {
	Content    string  `json:"content"`
	URL        string  `json:"url,omitempty"`
	Similarity float64 `json:"similarity"`
}

// Searcher answers text queries against a business's ingested knowledge.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Chunk, error)
}

// HTTPSearcher is the HTTP client for the knowledge search service.
type HTTPSearcher struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPSearcher creates a searcher against baseURL. A nil client gets a
// default with a 5s timeout so a slow search cannot stall a conversation turn.
func NewHTTPSearcher(baseURL string, client *http.Client, logger *slog.Logger) *HTTPSearcher {
	if client == nil {
		client = &http.Client{Timeout: defaultSearchTimeout}
	}
	return &HTTPSearcher{baseURL: baseURL, client: client, logger: logger}
}

// Search POSTs the query and decodes the ranked chunk list.
func (s *HTTPSearcher) Search(ctx context.Context, q Query) ([]Chunk, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("knowledge search: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Chunks []Chunk `json:"chunks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	s.logger.DebugContext(ctx, "knowledge search completed",
		slog.Int("chunks", len(out.Chunks)))
	return out.Chunks, nil
}

var _ Searcher = (*HTTPSearcher)(nil)
