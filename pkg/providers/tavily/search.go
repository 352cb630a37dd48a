// Package tavily runs web searches used to ground assistant replies.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/bytegate/pkg/adapters/info"
	"github.com/harunnryd/bytegate/pkg/errorsx"
)

const defaultBaseURL = "https://api.tavily.com"

// Client holds a server-side key; search is not a per-session credential.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "tavily" }

func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]info.Snippet, error) {
	if !c.Configured() {
		return nil, errorsx.New(errorsx.ReasonMissingCredential, "tavily api key is not configured")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if limit <= 0 {
		limit = 5
	}

	body, err := json.Marshal(map[string]any{
		"query":        query,
		"search_depth": "basic",
		"max_results":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("create request: %w", err), errorsx.ReasonTransportFault)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errorsx.FromTransport(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return nil, errorsx.FromStatus("tavily", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("decode response: %w", err), errorsx.ReasonMalformedResponse)
	}
	out := make([]info.Snippet, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if len(out) == limit {
			break
		}
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		out = append(out, info.Snippet{Title: r.Title, URL: r.URL, Text: strings.TrimSpace(r.Content)})
	}
	return out, nil
}
