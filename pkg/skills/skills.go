// Package skills serves the one-shot informational commands a client can
// invoke directly, outside of any turn.
package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/bytegate/pkg/adapters/info"
	"github.com/harunnryd/bytegate/pkg/credentials"
	"github.com/harunnryd/bytegate/pkg/errorsx"
)

const (
	NameNews    = "news"
	NameWeather = "weather"
)

// Skill produces a single assistant reply. Errors carry an errorsx reason;
// Reply turns them into client text.
type Skill interface {
	Name() string
	Credential() credentials.Key
	Run(ctx context.Context, credential string) (string, error)
	// Reply maps a failure to the text sent to the client.
	Reply(err error) string
}

type newsSkill struct {
	provider info.NewsProvider
	count    int
}

// NewNews lists top technology headlines.
func NewNews(provider info.NewsProvider, count int) Skill {
	if count <= 0 || count > 5 {
		count = 5
	}
	return &newsSkill{provider: provider, count: count}
}

func (s *newsSkill) Name() string                { return NameNews }
func (s *newsSkill) Credential() credentials.Key { return credentials.News }

func (s *newsSkill) Run(ctx context.Context, credential string) (string, error) {
	titles, err := s.provider.Headlines(ctx, credential, s.count)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("📰 Tech News:")
	n := 0
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		b.WriteString("\n- ")
		b.WriteString(t)
		if n++; n == s.count {
			break
		}
	}
	if n == 0 {
		return "⚠️ No tech headlines.", nil
	}
	return b.String(), nil
}

func (s *newsSkill) Reply(err error) string {
	switch reason := errorsx.Reason(err); reason {
	case errorsx.ReasonMissingCredential:
		return "❗ No NewsAPI key provided."
	default:
		return fmt.Sprintf("⚠️ News API error (%s).", errorsx.Describe(reason))
	}
}

type weatherSkill struct {
	provider info.WeatherProvider
	city     string
}

// NewWeather reports current conditions for a fixed city.
func NewWeather(provider info.WeatherProvider, city string) Skill {
	if strings.TrimSpace(city) == "" {
		city = "Lucknow"
	}
	return &weatherSkill{provider: provider, city: city}
}

func (s *weatherSkill) Name() string                { return NameWeather }
func (s *weatherSkill) Credential() credentials.Key { return credentials.Weather }

func (s *weatherSkill) Run(ctx context.Context, credential string) (string, error) {
	r, err := s.provider.Current(ctx, credential, s.city)
	if err != nil {
		return "", err
	}
	city := r.City
	if city == "" {
		city = s.city
	}
	return fmt.Sprintf("☁️ %s: %s°C, %s", city, formatTemp(r.TempC), r.Description), nil
}

func (s *weatherSkill) Reply(err error) string {
	if errorsx.HasReason(err, errorsx.ReasonMissingCredential) {
		return "❗ No Weather key provided."
	}
	return "❌ Could not fetch weather."
}

func formatTemp(c float64) string {
	s := fmt.Sprintf("%.1f", c)
	return strings.TrimSuffix(s, ".0")
}
