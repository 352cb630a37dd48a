package skills

import (
	"context"
	"testing"
	"time"

	"github.com/harunnryd/bytegate/pkg/adapters/info"
	"github.com/harunnryd/bytegate/pkg/credentials"
	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/metrics"
	"github.com/harunnryd/bytegate/pkg/providers/mock"
)

func newDispatcher(news info.NewsProvider, weather info.WeatherProvider, obs metrics.Observer) *Dispatcher {
	return NewDispatcher(Options{Timeout: time.Second, Retries: 1, RetryBackoff: time.Millisecond, Observer: obs},
		NewNews(news, 5), NewWeather(weather, ""))
}

func TestWeatherWithoutKey(t *testing.T) {
	d := newDispatcher(&mock.News{}, &mock.Weather{}, nil)
	reply, ok := d.Invoke(context.Background(), Request{Name: "weather"})
	if !ok || reply != "❗ No Weather key provided." {
		t.Fatalf("unexpected reply %q (ok=%v)", reply, ok)
	}
}

func TestWeatherFormatsReport(t *testing.T) {
	weather := &mock.Weather{Report: info.WeatherReport{TempC: 31, Description: "haze"}}
	d := newDispatcher(&mock.News{}, weather, nil)
	reply, _ := d.Invoke(context.Background(), Request{Name: "Weather", Creds: credentials.Store{Weather: "w"}})
	if reply != "☁️ Lucknow: 31°C, haze" {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestWeatherFailure(t *testing.T) {
	weather := &mock.Weather{Err: errorsx.New(errorsx.ReasonUpstreamRejected, "404")}
	d := newDispatcher(&mock.News{}, weather, nil)
	reply, _ := d.Invoke(context.Background(), Request{Name: "weather", Creds: credentials.Store{Weather: "w"}})
	if reply != "❌ Could not fetch weather." {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestNewsHeadlines(t *testing.T) {
	news := &mock.News{Titles: []string{"a", " ", "b", "c", "d", "e", "f"}}
	obs := metrics.NewMemoryObserver()
	d := newDispatcher(news, &mock.Weather{}, obs)
	reply, _ := d.Invoke(context.Background(), Request{SessionID: "s1", Name: "news", Creds: credentials.Store{News: "n"}})
	want := "📰 Tech News:\n- a\n- b\n- c\n- d"
	if reply != want {
		t.Fatalf("unexpected reply %q", reply)
	}
	evs := obs.Named(metrics.EventSkillLatency)
	if len(evs) != 1 || evs[0].Tag(metrics.TagSessionID) != "s1" || evs[0].Tag(metrics.TagOutcome) != "ok" {
		t.Fatalf("unexpected metrics: %+v", evs)
	}
}

func TestNewsEmptyAndMissingKey(t *testing.T) {
	d := newDispatcher(&mock.News{}, &mock.Weather{}, nil)
	if reply, _ := d.Invoke(context.Background(), Request{Name: "news", Creds: credentials.Store{News: "n"}}); reply != "⚠️ No tech headlines." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if reply, _ := d.Invoke(context.Background(), Request{Name: "news"}); reply != "❗ No NewsAPI key provided." {
		t.Fatalf("unexpected reply %q", reply)
	}
}

type flakyNews struct{ calls int }

func (f *flakyNews) Name() string { return "flaky" }

func (f *flakyNews) Headlines(ctx context.Context, credential string, limit int) ([]string, error) {
	f.calls++
	if f.calls == 1 {
		return nil, errorsx.New(errorsx.ReasonTransportFault, "reset")
	}
	return []string{"ok"}, nil
}

func TestTransportFaultIsRetried(t *testing.T) {
	news := &flakyNews{}
	d := newDispatcher(news, &mock.Weather{}, nil)
	reply, _ := d.Invoke(context.Background(), Request{Name: "news", Creds: credentials.Store{News: "n"}})
	if reply != "📰 Tech News:\n- ok" || news.calls != 2 {
		t.Fatalf("unexpected reply %q after %d calls", reply, news.calls)
	}
}

func TestUnknownSkillIsIgnored(t *testing.T) {
	d := newDispatcher(&mock.News{}, &mock.Weather{}, nil)
	if _, ok := d.Invoke(context.Background(), Request{Name: "jokes"}); ok {
		t.Fatalf("unknown skill should not reply")
	}
	if d.Known("jokes") || !d.Known(" NEWS ") {
		t.Fatalf("unexpected Known results")
	}
}
