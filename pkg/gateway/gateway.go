package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/harunnryd/bytegate/pkg/logging"
	"github.com/harunnryd/bytegate/pkg/metrics"
	"github.com/harunnryd/bytegate/pkg/observers"
	"github.com/harunnryd/bytegate/pkg/pipeline"
	"github.com/harunnryd/bytegate/pkg/redact"
	"github.com/harunnryd/bytegate/pkg/runner"
	"github.com/harunnryd/bytegate/pkg/session"
	"github.com/harunnryd/bytegate/pkg/skills"
	"github.com/harunnryd/bytegate/pkg/transports"
	ws "github.com/harunnryd/bytegate/pkg/transports/websocket"
)

type Options struct {
	// Providers overrides the default vendor registry.
	Providers *ProviderRegistry
	Logger    *slog.Logger
	// Banner receives the startup banner. Nil prints nothing.
	Banner io.Writer
}

// Gateway owns everything shared between sessions: vendor clients, the skill
// dispatcher, the session registry and the metrics chain.
type Gateway struct {
	cfg       Config
	base      *slog.Logger
	log       *slog.Logger
	banner    io.Writer
	providers Providers
	skills    *skills.Dispatcher
	registry  *pipeline.SessionRegistry
	server    *ws.Server

	obs     metrics.Observer
	async   *metrics.AsyncObserver
	jsonl   *metrics.JSONLObserver
	latency *observers.LatencyObserver
	usage   *observers.UsageObserver

	closeOnce sync.Once
	closeErr  error
}

func New(cfg Config, opts Options) (*Gateway, error) {
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}
	reg := opts.Providers
	if reg == nil {
		reg = NewProviderRegistry()
		RegisterDefaults(reg)
	}
	providers, err := reg.Build(cfg.Vendors)
	if err != nil {
		return nil, err
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	g := &Gateway{
		cfg:       cfg,
		base:      base,
		log:       logging.NewComponentLogger(base, "gateway"),
		banner:    opts.Banner,
		providers: providers,
		registry:  pipeline.NewSessionRegistry(),
	}
	if err := g.initObservers(base); err != nil {
		return nil, err
	}

	var list []skills.Skill
	if providers.News != nil {
		list = append(list, skills.NewNews(providers.News, cfg.Skills.NewsCount))
	}
	if providers.Weather != nil {
		list = append(list, skills.NewWeather(providers.Weather, cfg.Skills.WeatherCity))
	}
	g.skills = skills.NewDispatcher(skills.Options{
		Timeout:  cfg.Skills.Timeout,
		Retries:  cfg.Skills.Retries,
		Observer: g.obs,
		Logger:   base,
	}, list...)

	g.server = ws.New(cfg.serverConfig(), g, base)
	g.log.Info("providers_ready",
		"llm", providers.LLM.Name(),
		"stt", providerName(providers.Streamer),
		"batch_stt", providerName(providers.Transcriber),
		"tts", providerName(providers.TTS),
		"search", providerName(providers.Search),
	)
	return g, nil
}

type named interface{ Name() string }

func providerName(p named) string {
	if p == nil {
		return "none"
	}
	return p.Name()
}

func (g *Gateway) initObservers(base *slog.Logger) error {
	g.latency = observers.NewLatencyObserver(base)
	g.usage = observers.NewUsageObserver(g.cfg.Observability.UsageDir, base)
	chain := []metrics.Observer{observers.NewLoggerObserver(base), g.latency, g.usage}
	if path := g.cfg.Observability.MetricsFile; path != "" {
		jsonl, err := metrics.OpenJSONL(path)
		if err != nil {
			return fmt.Errorf("observability.metrics_file: %w", err)
		}
		g.jsonl = jsonl
		chain = append(chain, jsonl)
	}
	g.async = metrics.NewAsyncObserver(observers.NewMultiObserver(chain...), 1024)
	g.obs = g.async
	return nil
}

// Handler exposes the HTTP routes without binding a listener.
func (g *Gateway) Handler() http.Handler { return g.server.Routes() }

func (g *Gateway) Sessions() int64 { return g.registry.Count() }

func (g *Gateway) Usage(sessionID string) (observers.UsageSummary, bool) {
	return g.usage.Snapshot(sessionID)
}

// ServeConn runs one client session to completion.
func (g *Gateway) ServeConn(ctx context.Context, conn transports.Conn, info transports.ConnInfo) error {
	p, err := pipeline.New(g.cfg.pipelineConfig(), pipeline.Options{
		SessionID:   info.SessionID,
		LLM:         g.providers.LLM,
		TTS:         g.providers.TTS,
		Search:      g.providers.Search,
		Transcriber: g.providers.Transcriber,
		Observer:    g.obs,
		Logger:      g.base,
	})
	if err != nil {
		return err
	}
	s, err := session.New(info.SessionID, conn, g.cfg.sessionConfig(), session.Deps{
		Pipeline: p,
		Streamer: g.providers.Streamer,
		Skills:   g.skills,
		Fallback: g.cfg.FallbackKeys.Store(),
		Registry: g.registry,
		Observer: g.obs,
		Logger:   g.base.With("remote", info.RemoteAddr),
	})
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// Drain refuses new connections and closes the open ones.
func (g *Gateway) Drain(ctx context.Context) error {
	g.server.SetDraining(true)
	g.log.Info("gateway_draining", "sessions", g.registry.Count())
	return g.registry.Drain(ctx)
}

// Run listens on the configured address until ctx ends.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.cfg.Server.Addr)
	if err != nil {
		return err
	}
	return g.Serve(ctx, ln)
}

// Serve accepts sessions on ln until ctx ends, then drains them and flushes
// the metrics chain.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	serveCtx, stopServe := context.WithCancel(context.WithoutCancel(ctx))
	defer stopServe()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- g.server.Serve(serveCtx, ln)
		cancel()
	}()

	lr := runner.NewLifecycleRunner(g, runner.Hooks{
		OnStart: func() {
			g.log.Info("gateway_ready", "ws_url", "ws://"+ln.Addr().String()+g.cfg.Server.Path, "version", runner.Version)
		},
		OnStop: stopServe,
	}, g.cfg.Server.DrainTimeout).WithBanner(g.banner)

	runErr := lr.Run(runCtx)
	err := <-serveErr
	return errors.Join(err, runErr, g.Close())
}

// Close flushes and closes the metrics sinks.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		var errs []error
		if g.async != nil {
			errs = append(errs, g.async.Close())
			if d := g.async.Dropped(); d > 0 {
				g.log.Warn("metrics_dropped", "count", d)
			}
		}
		if g.jsonl != nil {
			errs = append(errs, g.jsonl.Close())
		}
		g.closeErr = errors.Join(errs...)
	})
	return g.closeErr
}
