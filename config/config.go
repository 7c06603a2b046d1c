package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the question-answering service.
type Config struct {
	DataDir   string          `yaml:"data_dir" mapstructure:"data_dir"`
	Retrieve  RetrieveConfig  `yaml:"retrieve" mapstructure:"retrieve"`
	Models    ModelsConfig    `yaml:"models" mapstructure:"models"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Reranker  RerankerConfig  `yaml:"reranker" mapstructure:"reranker"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Index     IndexConfig     `yaml:"index" mapstructure:"index"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK           int     `yaml:"top_k" mapstructure:"top_k"`
	RMin           int     `yaml:"r_min" mapstructure:"r_min"`
	RMax           int     `yaml:"r_max" mapstructure:"r_max"`
	SpreadLow      float64 `yaml:"spread_low" mapstructure:"spread_low"`   // below: scores are bunched, widen to r_max
	SpreadHigh     float64 `yaml:"spread_high" mapstructure:"spread_high"` // at or above: one match dominates, narrow to r_min
	MinAnswerScore float64 `yaml:"min_answer_score" mapstructure:"min_answer_score"`
	DocsTopK       int     `yaml:"docs_top_k" mapstructure:"docs_top_k"`
}

// ModelsConfig holds language model tier configuration.
type ModelsConfig struct {
	Provider        string        `yaml:"provider" mapstructure:"provider"` // "openai", "ollama"
	BaseURL         string        `yaml:"base_url" mapstructure:"base_url"`
	APIKeyEnv       string        `yaml:"api_key_env" mapstructure:"api_key_env"`
	FastModel       string        `yaml:"fast_model" mapstructure:"fast_model"`
	HighModel       string        `yaml:"high_model" mapstructure:"high_model"`
	Temperature     float64       `yaml:"temperature" mapstructure:"temperature"`
	Tiering         bool          `yaml:"tiering" mapstructure:"tiering"`
	ScoreThreshold  float64       `yaml:"score_threshold" mapstructure:"score_threshold"`
	RerankThreshold float64       `yaml:"rerank_threshold" mapstructure:"rerank_threshold"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // "openai", "jina", "ollama", "mock"
	Model     string `yaml:"model" mapstructure:"model"`
	APIKeyEnv string `yaml:"api_key_env" mapstructure:"api_key_env"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Dimension int    `yaml:"dimension" mapstructure:"dimension"`
}

// RerankerConfig holds cross-encoder configuration.
type RerankerConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // "cohere", "simple", "none"
	Model     string `yaml:"model" mapstructure:"model"`
	APIKeyEnv string `yaml:"api_key_env" mapstructure:"api_key_env"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
}

// CacheConfig holds response cache configuration.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
	RedisURL string        `yaml:"redis_url" mapstructure:"redis_url"` // empty: in-process cache
}

// IndexConfig holds session index configuration.
type IndexConfig struct {
	HandleTTL time.Duration `yaml:"handle_ttl" mapstructure:"handle_ttl"`
}

// TelemetryConfig holds trace log configuration.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	File   string `yaml:"file" mapstructure:"file"`
	Format string `yaml:"format" mapstructure:"format"` // "console", "json"
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address string `yaml:"address" mapstructure:"address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "data",
		Retrieve: RetrieveConfig{
			TopK:           4,
			RMin:           3,
			RMax:           8,
			SpreadLow:      0.05,
			SpreadHigh:     0.15,
			MinAnswerScore: 0.05,
			DocsTopK:       12,
		},
		Models: ModelsConfig{
			Provider:        "openai",
			APIKeyEnv:       "OPENAI_API_KEY",
			FastModel:       "gpt-3.5-turbo",
			HighModel:       "gpt-4o",
			Temperature:     0.2,
			Tiering:         true,
			ScoreThreshold:  0.18,
			RerankThreshold: 0.15,
			Timeout:         60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
		},
		Reranker: RerankerConfig{
			Provider:  "cohere",
			Model:     "rerank-english-v3.0",
			APIKeyEnv: "COHERE_API_KEY",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
		},
		Index: IndexConfig{
			HandleTTL: 10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			Dir:     filepath.Join("data", "trace_logs"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   filepath.Join("logs", "askcode.log"),
			Format: "console",
		},
		Server: ServerConfig{
			Address: ":8080",
		},
	}
}

// envAliases maps config keys to conventional unprefixed variables.
var envAliases = map[string]string{
	"cache.redis_url": "REDIS_URL",
}

// Load loads configuration from a YAML file, layered over the defaults and
// under ASKCODE_* environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	// .env is optional; system environment wins either way.
	_ = godotenv.Load()

	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to read defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("ASKCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, "ASKCODE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for askcode.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "askcode.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".askcode", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return Load("")
}

// Validate checks value ranges that would otherwise fail deep inside a query.
func (c *Config) Validate() error {
	r := c.Retrieve
	if r.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive, got %d", r.TopK)
	}
	if r.RMin <= 0 || r.RMax < r.RMin {
		return fmt.Errorf("retrieve.r_min/r_max invalid: %d/%d", r.RMin, r.RMax)
	}
	if r.SpreadLow < 0 || r.SpreadHigh < r.SpreadLow {
		return fmt.Errorf("retrieve.spread_low/spread_high invalid: %.3f/%.3f", r.SpreadLow, r.SpreadHigh)
	}
	if r.DocsTopK <= 0 {
		return fmt.Errorf("retrieve.docs_top_k must be positive, got %d", r.DocsTopK)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when the cache is enabled")
	}
	switch c.Reranker.Provider {
	case "cohere", "simple", "none", "":
	default:
		return fmt.Errorf("unknown reranker provider: %s", c.Reranker.Provider)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SessionIndexPath returns the path to a session's index database.
func SessionIndexPath(dataDir, sessionID string) string {
	return filepath.Join(dataDir, "sessions", sessionID, "index.db")
}
