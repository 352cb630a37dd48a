package mock

import (
	"context"
	"strings"

	"github.com/harunnryd/bytegate/pkg/adapters/info"
	"github.com/harunnryd/bytegate/pkg/errorsx"
)

type News struct {
	Titles []string
	Err    error
}

func (n *News) Name() string { return "mock_news" }

func (n *News) Headlines(ctx context.Context, credential string, limit int) ([]string, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, errorsx.New(errorsx.ReasonMissingCredential, "mock news: no key")
	}
	if n.Err != nil {
		return nil, n.Err
	}
	if limit > 0 && len(n.Titles) > limit {
		return n.Titles[:limit], nil
	}
	return n.Titles, nil
}

type Weather struct {
	Report info.WeatherReport
	Err    error
}

func (w *Weather) Name() string { return "mock_weather" }

func (w *Weather) Current(ctx context.Context, credential, city string) (info.WeatherReport, error) {
	if strings.TrimSpace(credential) == "" {
		return info.WeatherReport{}, errorsx.New(errorsx.ReasonMissingCredential, "mock weather: no key")
	}
	if w.Err != nil {
		return info.WeatherReport{}, w.Err
	}
	r := w.Report
	r.City = city
	return r, nil
}

type Searcher struct {
	Snippets []info.Snippet
	Err      error
	Queries  []string
}

func (s *Searcher) Name() string { return "mock_search" }

func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]info.Snippet, error) {
	s.Queries = append(s.Queries, query)
	if s.Err != nil {
		return nil, s.Err
	}
	if limit > 0 && len(s.Snippets) > limit {
		return s.Snippets[:limit], nil
	}
	return s.Snippets, nil
}
