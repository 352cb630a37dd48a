// Package info defines the auxiliary lookups used by skills and web augmentation.
package info

import "context"

// NewsProvider returns current headlines.
type NewsProvider interface {
	Name() string
	Headlines(ctx context.Context, credential string, limit int) ([]string, error)
}

// WeatherReport is the current conditions for one city.
type WeatherReport struct {
	City        string
	TempC       float64
	Description string
}

// WeatherProvider returns current weather.
type WeatherProvider interface {
	Name() string
	Current(ctx context.Context, credential, city string) (WeatherReport, error)
}

// Snippet is one search hit reduced to text.
type Snippet struct {
	Title string
	URL   string
	Text  string
}

// Searcher runs a web search with a server-held credential.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Snippet, error)
}
