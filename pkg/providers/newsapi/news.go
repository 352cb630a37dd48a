// Package newsapi fetches headlines from newsapi.org.
package newsapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/resilience"
)

const defaultBaseURL = "https://newsapi.org/v2"

type Config struct {
	BaseURL  string
	Category string
	Language string
	Timeout  time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Category == "" {
		cfg.Category = "technology"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) Name() string { return "newsapi" }

// Headlines returns up to limit non-empty titles in the order the API ranks them.
func (c *Client) Headlines(ctx context.Context, credential string, limit int) ([]string, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, errorsx.New(errorsx.ReasonMissingCredential, "newsapi: api key is empty")
	}
	if limit <= 0 {
		limit = 5
	}
	q := url.Values{}
	q.Set("category", c.cfg.Category)
	q.Set("language", c.cfg.Language)
	q.Set("pageSize", "20")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/top-headlines?"+q.Encode(), nil)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTransportFault)
	}
	req.Header.Set("X-Api-Key", credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errorsx.FromTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errorsx.Wrap(resilience.RateLimitError{Provider: "newsapi", Message: string(b)}, errorsx.ReasonUpstreamRejected)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errorsx.FromStatus("newsapi", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded struct {
		Status   string `json:"status"`
		Articles []struct {
			Title string `json:"title"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMalformedResponse)
	}
	titles := make([]string, 0, limit)
	for _, a := range decoded.Articles {
		if len(titles) == limit {
			break
		}
		if t := strings.TrimSpace(a.Title); t != "" {
			titles = append(titles, t)
		}
	}
	return titles, nil
}
