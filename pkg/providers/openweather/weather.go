// Package openweather reads current conditions from OpenWeatherMap.
package openweather

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harunnryd/bytegate/pkg/adapters/info"
	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/resilience"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

type Config struct {
	BaseURL string
	Units   string
	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) Name() string { return "openweather" }

func (c *Client) Current(ctx context.Context, credential, city string) (info.WeatherReport, error) {
	if strings.TrimSpace(credential) == "" {
		return info.WeatherReport{}, errorsx.New(errorsx.ReasonMissingCredential, "openweather: api key is empty")
	}
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", credential)
	q.Set("units", c.cfg.Units)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return info.WeatherReport{}, errorsx.Wrap(err, errorsx.ReasonTransportFault)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return info.WeatherReport{}, errorsx.FromTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return info.WeatherReport{}, errorsx.Wrap(resilience.RateLimitError{Provider: "openweather", Message: string(b)}, errorsx.ReasonUpstreamRejected)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return info.WeatherReport{}, errorsx.FromStatus("openweather", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded struct {
		Name string `json:"name"`
		Main *struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return info.WeatherReport{}, errorsx.Wrap(err, errorsx.ReasonMalformedResponse)
	}
	if decoded.Main == nil || len(decoded.Weather) == 0 {
		return info.WeatherReport{}, errorsx.New(errorsx.ReasonMalformedResponse, "openweather: incomplete report")
	}
	return info.WeatherReport{
		City:        city,
		TempC:       decoded.Main.Temp,
		Description: decoded.Weather[0].Description,
	}, nil
}
