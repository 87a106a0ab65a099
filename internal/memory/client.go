package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the memory service's HTTP API. It is stateless apart from
// its shared http.Client and safe for concurrent use across requests.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a memory service client. The http.Client carries a
// generous outer timeout; per-call deadlines come from the caller's context
// via WithTimeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type searchRequest struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k"`
	Rerank  bool              `json:"rerank"`
	Filters map[string]string `json:"filters"`
}

type searchResponse struct {
	Results []Record `json:"results"`
}

// Search returns the top-ranked memories for the query, scoped to a user.
// Deleted facts are filtered out by the service.
func (c *Client) Search(ctx context.Context, query string, topK int, userID string, rerank bool) ([]Record, error) {
	body := searchRequest{
		Query:   query,
		TopK:    topK,
		Rerank:  rerank,
		Filters: map[string]string{"user_id": userID},
	}

	var resp searchResponse
	if err := c.post(ctx, "/v2/memories/search/", body, &resp); err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}
	return resp.Results, nil
}

// GetAll returns every stored memory for a user.
func (c *Client) GetAll(ctx context.Context, userID string) ([]Record, error) {
	query := url.Values{"user_id": []string{userID}}

	var records []Record
	if err := c.get(ctx, "/v2/memories/?"+query.Encode(), &records); err != nil {
		return nil, fmt.Errorf("fetching all memories: %w", err)
	}
	return records, nil
}

type addRequest struct {
	Messages         []Message           `json:"messages"`
	UserID           string              `json:"user_id"`
	Includes         string              `json:"includes,omitempty"`
	CustomCategories []map[string]string `json:"custom_categories,omitempty"`
}

// Add submits recent conversation turns for fact extraction. Best effort:
// the service decides which facts, if any, to store.
func (c *Client) Add(ctx context.Context, messages []Message, userID, includes string, customCategories []map[string]string) error {
	body := addRequest{
		Messages:         messages,
		UserID:           userID,
		Includes:         includes,
		CustomCategories: customCategories,
	}
	if err := c.post(ctx, "/v1/memories/", body, nil); err != nil {
		return fmt.Errorf("adding memories: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("memory service returned %d: %s", resp.StatusCode, b)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
