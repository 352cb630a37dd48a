// Package gateway loads configuration, builds providers and serves sessions.
package gateway

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/harunnryd/bytegate/pkg/configutil"
	"github.com/harunnryd/bytegate/pkg/credentials"
	"github.com/harunnryd/bytegate/pkg/logging"
	"github.com/harunnryd/bytegate/pkg/pipeline"
	"github.com/harunnryd/bytegate/pkg/session"
	ws "github.com/harunnryd/bytegate/pkg/transports/websocket"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Logging       logging.Config      `mapstructure:"logging"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Session       SessionConfig       `mapstructure:"session"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Skills        SkillsConfig        `mapstructure:"skills"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	FallbackKeys  FallbackKeys        `mapstructure:"fallback_keys"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	Path              string        `mapstructure:"path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	OutboundBuffer    int           `mapstructure:"outbound_buffer"`
	ReadLimit         int64         `mapstructure:"read_limit"`
	DrainTimeout      time.Duration `mapstructure:"drain_timeout"`
	AllowAnyOrigin    bool          `mapstructure:"allow_any_origin"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

type SessionConfig struct {
	ForwardPartial bool `mapstructure:"forward_partial"`
	TurnQueue      int  `mapstructure:"turn_queue"`
}

type PipelineConfig struct {
	SystemPrompt      string        `mapstructure:"system_prompt"`
	MaxHistory        int           `mapstructure:"max_history"`
	WebAugmentation   bool          `mapstructure:"web_augmentation"`
	MaxSnippets       int           `mapstructure:"max_snippets"`
	SpeechMaxChars    int           `mapstructure:"speech_max_chars"`
	LLMTimeout        time.Duration `mapstructure:"llm_timeout"`
	ClassifyTimeout   time.Duration `mapstructure:"classify_timeout"`
	TTSTimeout        time.Duration `mapstructure:"tts_timeout"`
	TranscribeTimeout time.Duration `mapstructure:"transcribe_timeout"`
}

type SkillsConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
	WeatherCity string        `mapstructure:"weather_city"`
	NewsCount   int           `mapstructure:"news_count"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type STTVendorConfig struct {
	Provider      string         `mapstructure:"provider"`
	Settings      map[string]any `mapstructure:"settings"`
	BatchProvider string         `mapstructure:"batch_provider"`
	BatchSettings map[string]any `mapstructure:"batch_settings"`
}

type VendorsConfig struct {
	STT     STTVendorConfig `mapstructure:"stt"`
	LLM     VendorConfig    `mapstructure:"llm"`
	TTS     VendorConfig    `mapstructure:"tts"`
	Search  VendorConfig    `mapstructure:"search"`
	News    VendorConfig    `mapstructure:"news"`
	Weather VendorConfig    `mapstructure:"weather"`
}

// FallbackKeys are server-side credentials used when a client sends none.
type FallbackKeys struct {
	SpeechToText  string `mapstructure:"speech_to_text"`
	LanguageModel string `mapstructure:"language_model"`
	TextToSpeech  string `mapstructure:"text_to_speech"`
	News          string `mapstructure:"news"`
	Weather       string `mapstructure:"weather"`
}

func (f FallbackKeys) Store() credentials.Store {
	return credentials.Store{
		SpeechToText:  f.SpeechToText,
		LanguageModel: f.LanguageModel,
		TextToSpeech:  f.TextToSpeech,
		News:          f.News,
		Weather:       f.Weather,
	}
}

type ObservabilityConfig struct {
	MetricsFile string `mapstructure:"metrics_file"`
	UsageDir    string `mapstructure:"usage_dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.path", "/ws")
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.write_timeout", "5s")
	v.SetDefault("server.ping_interval", "20s")
	v.SetDefault("server.outbound_buffer", 64)
	v.SetDefault("server.read_limit", 16<<20)
	v.SetDefault("server.drain_timeout", "20s")
	v.SetDefault("server.allow_any_origin", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("session.forward_partial", false)
	v.SetDefault("session.turn_queue", 8)
	v.SetDefault("pipeline.max_history", 12)
	v.SetDefault("pipeline.web_augmentation", false)
	v.SetDefault("pipeline.max_snippets", 3)
	v.SetDefault("pipeline.speech_max_chars", 3000)
	v.SetDefault("pipeline.llm_timeout", "30s")
	v.SetDefault("pipeline.classify_timeout", "5s")
	v.SetDefault("pipeline.tts_timeout", "30s")
	v.SetDefault("pipeline.transcribe_timeout", "90s")
	v.SetDefault("skills.timeout", "10s")
	v.SetDefault("skills.retries", 1)
	v.SetDefault("skills.weather_city", "Lucknow")
	v.SetDefault("skills.news_count", 5)
	v.SetDefault("vendors.stt.provider", "assemblyai")
	v.SetDefault("vendors.stt.batch_provider", "assemblyai")
	v.SetDefault("vendors.llm.provider", "gemini")
	v.SetDefault("vendors.tts.provider", "murf")
	v.SetDefault("vendors.news.provider", "newsapi")
	v.SetDefault("vendors.weather.provider", "openweather")
}

// DefaultConfig is the configuration used when no file is given.
func DefaultConfig() (Config, error) {
	v := viper.New()
	setDefaults(v)
	return decodeConfig(v)
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return decodeConfig(v)
}

func decodeConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	expandEnvStrings(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Path) == "" || !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with /")
	}
	if err := configutil.RequireString(c.Vendors.LLM.Provider, "vendors.llm.provider"); err != nil {
		return err
	}
	if c.Pipeline.MaxHistory < 0 {
		return fmt.Errorf("pipeline.max_history must not be negative")
	}
	if c.Pipeline.MaxSnippets < 0 || c.Pipeline.MaxSnippets > 5 {
		return fmt.Errorf("pipeline.max_snippets must be between 0 and 5, got %d", c.Pipeline.MaxSnippets)
	}
	if c.Session.TurnQueue < 0 {
		return fmt.Errorf("session.turn_queue must not be negative")
	}
	if c.Skills.NewsCount < 0 || c.Skills.NewsCount > 5 {
		return fmt.Errorf("skills.news_count must be between 0 and 5, got %d", c.Skills.NewsCount)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %s", c.Logging.Format)
	}
	return nil
}

func (c Config) serverConfig() ws.Config {
	return ws.Config{
		Addr:              c.Server.Addr,
		Path:              c.Server.Path,
		ReadHeaderTimeout: c.Server.ReadHeaderTimeout,
		ReadLimit:         c.Server.ReadLimit,
		AllowAnyOrigin:    c.Server.AllowAnyOrigin,
		AllowedOrigins:    c.Server.AllowedOrigins,
	}
}

func (c Config) sessionConfig() session.Config {
	return session.Config{
		ForwardPartial: c.Session.ForwardPartial,
		TurnQueue:      c.Session.TurnQueue,
		OutboundBuffer: c.Server.OutboundBuffer,
		WriteTimeout:   c.Server.WriteTimeout,
		PingInterval:   c.Server.PingInterval,
	}
}

func (c Config) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		SystemPrompt:      c.Pipeline.SystemPrompt,
		MaxHistory:        c.Pipeline.MaxHistory,
		WebAugmentation:   c.Pipeline.WebAugmentation,
		MaxSnippets:       c.Pipeline.MaxSnippets,
		SpeechMaxChars:    c.Pipeline.SpeechMaxChars,
		LLMTimeout:        c.Pipeline.LLMTimeout,
		ClassifyTimeout:   c.Pipeline.ClassifyTimeout,
		TTSTimeout:        c.Pipeline.TTSTimeout,
		TranscribeTimeout: c.Pipeline.TranscribeTimeout,
	}
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.STT.BatchSettings = expandSettings(cfg.Vendors.STT.BatchSettings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.Search.Settings = expandSettings(cfg.Vendors.Search.Settings)
	cfg.Vendors.News.Settings = expandSettings(cfg.Vendors.News.Settings)
	cfg.Vendors.Weather.Settings = expandSettings(cfg.Vendors.Weather.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

// expandValue expands ${VAR} in every settable string field.
func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			expandValue(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
