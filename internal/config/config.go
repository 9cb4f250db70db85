package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Negotiator NegotiatorConfig `mapstructure:"negotiator"`
	Model      ModelConfig      `mapstructure:"model"`
	Doubao     DoubaoConfig     `mapstructure:"doubao"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Qwen       QwenConfig       `mapstructure:"qwen"`
	Ollama     OllamaConfig     `mapstructure:"ollama"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Cart       CartConfig       `mapstructure:"cart"`
	Setup      SetupConfig      `mapstructure:"setup"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// RelayConfig points the storefront relay at the negotiator. A zero timeout
// leaves the upstream call unbounded.
type RelayConfig struct {
	UpstreamURL string        `mapstructure:"upstream_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type NegotiatorConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	SystemPrompt  string  `mapstructure:"system_prompt"`
	HistoryWindow int     `mapstructure:"history_window"`
	Temperature   float32 `mapstructure:"temperature"`
}

type ModelConfig struct {
	Provider string `mapstructure:"provider"`
}

type DoubaoConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type QwenConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	TopP         float32       `mapstructure:"top_p"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DebugRequest bool          `mapstructure:"debug_request"`
}

// OllamaConfig is used both for chat completions (through the OpenAI
// compatible /v1 API) and for the native health, tags and pull endpoints.
type OllamaConfig struct {
	APIURL      string        `mapstructure:"api_url"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PullTimeout time.Duration `mapstructure:"pull_timeout"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type CartConfig struct {
	SeedDemoItems   bool          `mapstructure:"seed_demo_items"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type SetupConfig struct {
	ProbeCron    string        `mapstructure:"probe_cron"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"`
	DataDir   string `mapstructure:"data_dir"`
	CacheSize int    `mapstructure:"cache_size"`
}

var cfg *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("relay.upstream_url", "http://localhost:8000/api/negotiate")
	v.SetDefault("negotiator.base_url", "http://localhost:8000")
	v.SetDefault("negotiator.history_window", 10)
	v.SetDefault("negotiator.temperature", 0.7)

	v.SetDefault("model.provider", "ollama")
	v.SetDefault("ollama.api_url", "http://localhost:11434/api")
	v.SetDefault("ollama.model", "llama3.2")
	v.SetDefault("ollama.timeout", 30*time.Second)
	v.SetDefault("ollama.pull_timeout", 60*time.Second)

	v.SetDefault("cart.ttl", 24*time.Hour)
	v.SetDefault("cart.cleanup_interval", time.Hour)

	v.SetDefault("setup.probe_cron", "* * * * *")
	v.SetDefault("setup.probe_timeout", 2*time.Second)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 43200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("rate_limit.requests_per_minute", 6)
	v.SetDefault("rate_limit.burst", 2)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.cache_size", 256)
}

// Load reads the YAML file at configPath. Environment variables prefixed with
// RUPPED_ override file values (RUPPED_RELAY_UPSTREAM_URL and so on).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("RUPPED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, err
	}

	// 配置文件优先，未配置时回退到常见的环境变量
	if loaded.Doubao.APIKey == "" {
		if apiKey := os.Getenv("ARK_API_KEY"); apiKey != "" {
			loaded.Doubao.APIKey = apiKey
		}
	}
	if loaded.OpenAI.APIKey == "" {
		loaded.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if loaded.Qwen.APIKey == "" {
		loaded.Qwen.APIKey = os.Getenv("DASHSCOPE_API_KEY")
	}
	if url := os.Getenv("OLLAMA_API_URL"); url != "" {
		loaded.Ollama.APIURL = url
	}
	if m := os.Getenv("LLAMA_MODEL"); m != "" {
		loaded.Ollama.Model = m
	}

	cfg = loaded
	return cfg, nil
}

func Get() *Config {
	return cfg
}
