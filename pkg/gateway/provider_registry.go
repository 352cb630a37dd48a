package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/bytegate/pkg/adapters/info"
	"github.com/harunnryd/bytegate/pkg/adapters/stt"
	"github.com/harunnryd/bytegate/pkg/adapters/tts"
	"github.com/harunnryd/bytegate/pkg/llm"
)

type (
	STTFactory         func(settings map[string]any) (stt.StreamingSTT, error)
	TranscriberFactory func(settings map[string]any) (stt.Transcriber, error)
	LLMFactory         func(settings map[string]any) (llm.Adapter, error)
	TTSFactory         func(settings map[string]any) (tts.Synthesizer, error)
	SearchFactory      func(settings map[string]any) (info.Searcher, error)
	NewsFactory        func(settings map[string]any) (info.NewsProvider, error)
	WeatherFactory     func(settings map[string]any) (info.WeatherProvider, error)
)

// ProviderRegistry maps vendor names to constructors.
type ProviderRegistry struct {
	stt         map[string]STTFactory
	transcriber map[string]TranscriberFactory
	llm         map[string]LLMFactory
	tts         map[string]TTSFactory
	search      map[string]SearchFactory
	news        map[string]NewsFactory
	weather     map[string]WeatherFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt:         make(map[string]STTFactory),
		transcriber: make(map[string]TranscriberFactory),
		llm:         make(map[string]LLMFactory),
		tts:         make(map[string]TTSFactory),
		search:      make(map[string]SearchFactory),
		news:        make(map[string]NewsFactory),
		weather:     make(map[string]WeatherFactory),
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// disabled reports whether a vendor slot was left empty on purpose.
func disabled(name string) bool {
	n := normalizeName(name)
	return n == "" || n == "none"
}

func (r *ProviderRegistry) RegisterSTT(name string, f STTFactory) { r.stt[normalizeName(name)] = f }
func (r *ProviderRegistry) RegisterTranscriber(name string, f TranscriberFactory) {
	r.transcriber[normalizeName(name)] = f
}
func (r *ProviderRegistry) RegisterLLM(name string, f LLMFactory) { r.llm[normalizeName(name)] = f }
func (r *ProviderRegistry) RegisterTTS(name string, f TTSFactory) { r.tts[normalizeName(name)] = f }
func (r *ProviderRegistry) RegisterSearch(name string, f SearchFactory) {
	r.search[normalizeName(name)] = f
}
func (r *ProviderRegistry) RegisterNews(name string, f NewsFactory) { r.news[normalizeName(name)] = f }
func (r *ProviderRegistry) RegisterWeather(name string, f WeatherFactory) {
	r.weather[normalizeName(name)] = f
}

func lookup[F any](kind string, m map[string]F, name string) (F, error) {
	f, ok := m[normalizeName(name)]
	if !ok {
		var zero F
		known := make([]string, 0, len(m))
		for k := range m {
			known = append(known, k)
		}
		sort.Strings(known)
		return zero, fmt.Errorf("%s provider not registered: %s (known: %s)", kind, name, strings.Join(known, ", "))
	}
	return f, nil
}

// Providers is the set of vendor clients shared by every session. A nil
// field means the capability is switched off.
type Providers struct {
	Streamer    stt.StreamingSTT
	Transcriber stt.Transcriber
	LLM         llm.Adapter
	TTS         tts.Synthesizer
	Search      info.Searcher
	News        info.NewsProvider
	Weather     info.WeatherProvider
}

// Build constructs every configured vendor. Only the language model is mandatory.
func (r *ProviderRegistry) Build(v VendorsConfig) (Providers, error) {
	var p Providers
	f, err := lookup("llm", r.llm, v.LLM.Provider)
	if err != nil {
		return p, err
	}
	if p.LLM, err = f(v.LLM.Settings); err != nil {
		return p, fmt.Errorf("vendors.llm: %w", err)
	}
	if !disabled(v.STT.Provider) {
		f, err := lookup("stt", r.stt, v.STT.Provider)
		if err != nil {
			return p, err
		}
		if p.Streamer, err = f(v.STT.Settings); err != nil {
			return p, fmt.Errorf("vendors.stt: %w", err)
		}
	}
	if !disabled(v.STT.BatchProvider) {
		f, err := lookup("batch stt", r.transcriber, v.STT.BatchProvider)
		if err != nil {
			return p, err
		}
		if p.Transcriber, err = f(v.STT.BatchSettings); err != nil {
			return p, fmt.Errorf("vendors.stt.batch: %w", err)
		}
	}
	if !disabled(v.TTS.Provider) {
		f, err := lookup("tts", r.tts, v.TTS.Provider)
		if err != nil {
			return p, err
		}
		if p.TTS, err = f(v.TTS.Settings); err != nil {
			return p, fmt.Errorf("vendors.tts: %w", err)
		}
	}
	if !disabled(v.Search.Provider) {
		f, err := lookup("search", r.search, v.Search.Provider)
		if err != nil {
			return p, err
		}
		if p.Search, err = f(v.Search.Settings); err != nil {
			return p, fmt.Errorf("vendors.search: %w", err)
		}
		// a search vendor without its server key turns augmentation off
		if c, ok := p.Search.(interface{ Configured() bool }); ok && !c.Configured() {
			p.Search = nil
		}
	}
	if !disabled(v.News.Provider) {
		f, err := lookup("news", r.news, v.News.Provider)
		if err != nil {
			return p, err
		}
		if p.News, err = f(v.News.Settings); err != nil {
			return p, fmt.Errorf("vendors.news: %w", err)
		}
	}
	if !disabled(v.Weather.Provider) {
		f, err := lookup("weather", r.weather, v.Weather.Provider)
		if err != nil {
			return p, err
		}
		if p.Weather, err = f(v.Weather.Settings); err != nil {
			return p, fmt.Errorf("vendors.weather: %w", err)
		}
	}
	return p, nil
}
