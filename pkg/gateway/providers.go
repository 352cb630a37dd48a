package gateway

import (
	"fmt"
	"time"

	"github.com/harunnryd/bytegate/pkg/adapters/info"
	"github.com/harunnryd/bytegate/pkg/adapters/stt"
	"github.com/harunnryd/bytegate/pkg/adapters/tts"
	"github.com/harunnryd/bytegate/pkg/configutil"
	"github.com/harunnryd/bytegate/pkg/llm"
	"github.com/harunnryd/bytegate/pkg/providers/assemblyai"
	"github.com/harunnryd/bytegate/pkg/providers/deepgram"
	"github.com/harunnryd/bytegate/pkg/providers/elevenlabs"
	"github.com/harunnryd/bytegate/pkg/providers/gemini"
	"github.com/harunnryd/bytegate/pkg/providers/mock"
	"github.com/harunnryd/bytegate/pkg/providers/murf"
	"github.com/harunnryd/bytegate/pkg/providers/newsapi"
	"github.com/harunnryd/bytegate/pkg/providers/openai"
	"github.com/harunnryd/bytegate/pkg/providers/openweather"
	"github.com/harunnryd/bytegate/pkg/providers/tavily"
)

type assemblyStreamSettings struct {
	URL                string `mapstructure:"url"`
	SampleRate         int    `mapstructure:"sample_rate"`
	HandshakeTimeoutMS int    `mapstructure:"handshake_timeout_ms"`
	WriteTimeoutMS     int    `mapstructure:"write_timeout_ms"`
	MinChunkBytes      int    `mapstructure:"min_chunk_bytes"`
}

type assemblyBatchSettings struct {
	BaseURL        string `mapstructure:"base_url"`
	PollIntervalMS int    `mapstructure:"poll_interval_ms"`
	PollTimeoutMS  int    `mapstructure:"poll_timeout_ms"`
	HTTPTimeoutMS  int    `mapstructure:"http_timeout_ms"`
}

type deepgramSettings struct {
	Model          string `mapstructure:"model"`
	Language       string `mapstructure:"language"`
	SampleRate     int    `mapstructure:"sample_rate"`
	Encoding       string `mapstructure:"encoding"`
	Interim        *bool  `mapstructure:"interim"`
	VADEvents      *bool  `mapstructure:"vad_events"`
	UtteranceEndMS *int   `mapstructure:"utterance_end_ms"`
}

type llmSettings struct {
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
	Retries   *int   `mapstructure:"retries"`
}

type murfSettings struct {
	BaseURL   string `mapstructure:"base_url"`
	VoiceID   string `mapstructure:"voice_id"`
	Format    string `mapstructure:"format"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

type elevenlabsSettings struct {
	BaseURL      string `mapstructure:"base_url"`
	VoiceID      string `mapstructure:"voice_id"`
	ModelID      string `mapstructure:"model_id"`
	OutputFormat string `mapstructure:"output_format"`
	TimeoutMS    int    `mapstructure:"timeout_ms"`
}

type tavilySettings struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

type newsSettings struct {
	BaseURL   string `mapstructure:"base_url"`
	Category  string `mapstructure:"category"`
	Language  string `mapstructure:"language"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

type weatherSettings struct {
	BaseURL   string `mapstructure:"base_url"`
	Units     string `mapstructure:"units"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

type mockSTTSettings struct {
	Transcript         string `mapstructure:"transcript"`
	InterimTranscript  string `mapstructure:"interim_transcript"`
	ChunksPerUtterance int    `mapstructure:"chunks_per_utterance"`
}

type mockLLMSettings struct {
	ResponseText string `mapstructure:"response_text"`
	Classify     string `mapstructure:"classify"`
	Echo         bool   `mapstructure:"echo"`
	DelayMS      int    `mapstructure:"delay_ms"`
}

type mockTTSSettings struct {
	Audio string `mapstructure:"audio"`
	MIME  string `mapstructure:"mime"`
}

type mockInfoSettings struct {
	Text        string   `mapstructure:"text"`
	Titles      []string `mapstructure:"titles"`
	TempC       float64  `mapstructure:"temp_c"`
	Description string   `mapstructure:"description"`
	Snippets    []string `mapstructure:"snippets"`
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// retrying wraps a language model so transient failures are retried.
func retrying(adapter llm.Adapter, retries *int) llm.Adapter {
	attempts := configutil.IntValue(retries, 2) + 1
	if attempts <= 1 {
		return adapter
	}
	return llm.NewRetryAdapter(adapter, llm.RetryConfig{MaxAttempts: attempts, Jitter: 0.2})
}

// RegisterDefaults installs every built-in vendor.
func RegisterDefaults(reg *ProviderRegistry) {
	reg.RegisterSTT("assemblyai", func(settings map[string]any) (stt.StreamingSTT, error) {
		var s assemblyStreamSettings
		if err := configutil.Decode("vendors.stt.settings", settings, configutil.Schema{
			Optional: []string{"url", "sample_rate", "handshake_timeout_ms", "write_timeout_ms", "min_chunk_bytes"},
		}, &s); err != nil {
			return nil, err
		}
		if s.SampleRate < 0 {
			return nil, fmt.Errorf("vendors.stt.settings.sample_rate must be positive, got %d", s.SampleRate)
		}
		return assemblyai.NewStreamer(assemblyai.StreamConfig{
			URL:              s.URL,
			SampleRate:       s.SampleRate,
			HandshakeTimeout: ms(s.HandshakeTimeoutMS),
			WriteTimeout:     ms(s.WriteTimeoutMS),
			MinChunkBytes:    s.MinChunkBytes,
		}), nil
	})

	reg.RegisterSTT("deepgram", func(settings map[string]any) (stt.StreamingSTT, error) {
		var s deepgramSettings
		if err := configutil.Decode("vendors.stt.settings", settings, configutil.Schema{
			Optional: []string{"model", "language", "sample_rate", "encoding", "interim", "vad_events", "utterance_end_ms"},
		}, &s); err != nil {
			return nil, err
		}
		switch s.Encoding {
		case "", "linear16", "mulaw":
		default:
			return nil, fmt.Errorf("vendors.stt.settings.encoding must be one of [linear16, mulaw], got %s", s.Encoding)
		}
		utteranceEnd := configutil.IntValue(s.UtteranceEndMS, 1000)
		if utteranceEnd < 0 || utteranceEnd > 5000 {
			return nil, fmt.Errorf("vendors.stt.settings.utterance_end_ms must be between 0 and 5000, got %d", utteranceEnd)
		}
		return deepgram.New(deepgram.Config{
			Model:          s.Model,
			Language:       s.Language,
			SampleRate:     s.SampleRate,
			Encoding:       s.Encoding,
			Interim:        configutil.BoolValue(s.Interim, true),
			VADEvents:      configutil.BoolValue(s.VADEvents, true),
			UtteranceEndMS: utteranceEnd,
		}), nil
	})

	reg.RegisterSTT("mock", func(settings map[string]any) (stt.StreamingSTT, error) {
		var s mockSTTSettings
		if err := configutil.Decode("vendors.stt.settings", settings, configutil.Schema{
			Optional: []string{"transcript", "interim_transcript", "chunks_per_utterance"},
		}, &s); err != nil {
			return nil, err
		}
		return mock.NewSTT(mock.STTConfig{
			Transcript:         s.Transcript,
			InterimTranscript:  s.InterimTranscript,
			ChunksPerUtterance: s.ChunksPerUtterance,
		}), nil
	})

	reg.RegisterTranscriber("assemblyai", func(settings map[string]any) (stt.Transcriber, error) {
		var s assemblyBatchSettings
		if err := configutil.Decode("vendors.stt.batch_settings", settings, configutil.Schema{
			Optional: []string{"base_url", "poll_interval_ms", "poll_timeout_ms", "http_timeout_ms"},
		}, &s); err != nil {
			return nil, err
		}
		return assemblyai.NewTranscriber(assemblyai.BatchConfig{
			BaseURL:      s.BaseURL,
			PollInterval: ms(s.PollIntervalMS),
			PollTimeout:  ms(s.PollTimeoutMS),
			HTTPTimeout:  ms(s.HTTPTimeoutMS),
		}), nil
	})

	reg.RegisterTranscriber("mock", func(settings map[string]any) (stt.Transcriber, error) {
		var s mockInfoSettings
		if err := configutil.Decode("vendors.stt.batch_settings", settings, configutil.Schema{
			Optional: []string{"text"},
		}, &s); err != nil {
			return nil, err
		}
		if s.Text == "" {
			s.Text = "mock transcript"
		}
		return &mock.Transcriber{Text: s.Text}, nil
	})

	reg.RegisterLLM("gemini", func(settings map[string]any) (llm.Adapter, error) {
		var s llmSettings
		if err := configutil.Decode("vendors.llm.settings", settings, configutil.Schema{
			Optional: []string{"model", "base_url", "retries"},
		}, &s); err != nil {
			return nil, err
		}
		return retrying(gemini.NewAdapter(s.Model, s.BaseURL), s.Retries), nil
	})

	reg.RegisterLLM("openai", func(settings map[string]any) (llm.Adapter, error) {
		var s llmSettings
		if err := configutil.Decode("vendors.llm.settings", settings, configutil.Schema{
			Optional: []string{"model", "base_url", "timeout_ms", "retries"},
		}, &s); err != nil {
			return nil, err
		}
		return retrying(openai.NewAdapter(s.Model, s.BaseURL, ms(s.TimeoutMS)), s.Retries), nil
	})

	reg.RegisterLLM("mock", func(settings map[string]any) (llm.Adapter, error) {
		var s mockLLMSettings
		if err := configutil.Decode("vendors.llm.settings", settings, configutil.Schema{
			Optional: []string{"response_text", "classify", "echo", "delay_ms"},
		}, &s); err != nil {
			return nil, err
		}
		return mock.NewLLMAdapter(mock.LLMConfig{
			ResponseText: s.ResponseText,
			Classify:     s.Classify,
			Echo:         s.Echo,
			Delay:        ms(s.DelayMS),
		}), nil
	})

	reg.RegisterTTS("murf", func(settings map[string]any) (tts.Synthesizer, error) {
		var s murfSettings
		if err := configutil.Decode("vendors.tts.settings", settings, configutil.Schema{
			Optional: []string{"base_url", "voice_id", "format", "timeout_ms"},
		}, &s); err != nil {
			return nil, err
		}
		return murf.New(murf.Config{BaseURL: s.BaseURL, VoiceID: s.VoiceID, Format: s.Format, Timeout: ms(s.TimeoutMS)}), nil
	})

	reg.RegisterTTS("elevenlabs", func(settings map[string]any) (tts.Synthesizer, error) {
		var s elevenlabsSettings
		if err := configutil.Decode("vendors.tts.settings", settings, configutil.Schema{
			Optional: []string{"base_url", "voice_id", "model_id", "output_format", "timeout_ms"},
		}, &s); err != nil {
			return nil, err
		}
		return elevenlabs.New(elevenlabs.Config{
			BaseURL:      s.BaseURL,
			VoiceID:      s.VoiceID,
			ModelID:      s.ModelID,
			OutputFormat: s.OutputFormat,
			Timeout:      ms(s.TimeoutMS),
		}), nil
	})

	reg.RegisterTTS("mock", func(settings map[string]any) (tts.Synthesizer, error) {
		var s mockTTSSettings
		if err := configutil.Decode("vendors.tts.settings", settings, configutil.Schema{
			Optional: []string{"audio", "mime"},
		}, &s); err != nil {
			return nil, err
		}
		return mock.NewTTS(mock.TTSConfig{Audio: []byte(s.Audio), MIME: s.MIME}), nil
	})

	reg.RegisterSearch("tavily", func(settings map[string]any) (info.Searcher, error) {
		var s tavilySettings
		if err := configutil.Decode("vendors.search.settings", settings, configutil.Schema{
			Optional: []string{"api_key", "base_url", "timeout_ms"},
		}, &s); err != nil {
			return nil, err
		}
		return tavily.NewClient(s.APIKey, s.BaseURL, ms(s.TimeoutMS)), nil
	})

	reg.RegisterSearch("mock", func(settings map[string]any) (info.Searcher, error) {
		var s mockInfoSettings
		if err := configutil.Decode("vendors.search.settings", settings, configutil.Schema{
			Optional: []string{"snippets"},
		}, &s); err != nil {
			return nil, err
		}
		out := &mock.Searcher{}
		for _, text := range s.Snippets {
			out.Snippets = append(out.Snippets, info.Snippet{Text: text})
		}
		return out, nil
	})

	reg.RegisterNews("newsapi", func(settings map[string]any) (info.NewsProvider, error) {
		var s newsSettings
		if err := configutil.Decode("vendors.news.settings", settings, configutil.Schema{
			Optional: []string{"base_url", "category", "language", "timeout_ms"},
		}, &s); err != nil {
			return nil, err
		}
		return newsapi.NewClient(newsapi.Config{BaseURL: s.BaseURL, Category: s.Category, Language: s.Language, Timeout: ms(s.TimeoutMS)}), nil
	})

	reg.RegisterNews("mock", func(settings map[string]any) (info.NewsProvider, error) {
		var s mockInfoSettings
		if err := configutil.Decode("vendors.news.settings", settings, configutil.Schema{
			Optional: []string{"titles"},
		}, &s); err != nil {
			return nil, err
		}
		return &mock.News{Titles: s.Titles}, nil
	})

	reg.RegisterWeather("openweather", func(settings map[string]any) (info.WeatherProvider, error) {
		var s weatherSettings
		if err := configutil.Decode("vendors.weather.settings", settings, configutil.Schema{
			Optional: []string{"base_url", "units", "timeout_ms"},
		}, &s); err != nil {
			return nil, err
		}
		return openweather.NewClient(openweather.Config{BaseURL: s.BaseURL, Units: s.Units, Timeout: ms(s.TimeoutMS)}), nil
	})

	reg.RegisterWeather("mock", func(settings map[string]any) (info.WeatherProvider, error) {
		var s mockInfoSettings
		if err := configutil.Decode("vendors.weather.settings", settings, configutil.Schema{
			Optional: []string{"temp_c", "description"},
		}, &s); err != nil {
			return nil, err
		}
		return &mock.Weather{Report: info.WeatherReport{TempC: s.TempC, Description: s.Description}}, nil
	})
}
