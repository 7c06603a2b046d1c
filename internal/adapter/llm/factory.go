package llm

import (
	"os"

	"askcode/config"
	"askcode/internal/port"
)

var providerURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com/v1",
	"ollama":   "http://localhost:11434/v1",
}

// Tiers holds the configured language models. Either may be absent when
// credentials are missing.
type Tiers struct {
	Fast port.Optional[port.LLM]
	High port.Optional[port.LLM]
}

// NewTiers builds the fast and high tier clients from cfg. A tier whose
// model is unset, or whose hosted provider has no API key, is absent.
func NewTiers(cfg config.ModelsConfig) (Tiers, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = providerURLs[cfg.Provider]
	}

	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	if apiKey == "" && cfg.Provider != "ollama" {
		return Tiers{Fast: port.None[port.LLM](), High: port.None[port.LLM]()}, nil
	}

	build := func(model string) (port.Optional[port.LLM], error) {
		if model == "" || baseURL == "" {
			return port.None[port.LLM](), nil
		}
		c, err := NewClient(Options{
			BaseURL:     baseURL,
			APIKey:      apiKey,
			Model:       model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return port.None[port.LLM](), err
		}
		return port.Some[port.LLM](c), nil
	}

	fast, err := build(cfg.FastModel)
	if err != nil {
		return Tiers{}, err
	}
	high, err := build(cfg.HighModel)
	if err != nil {
		return Tiers{}, err
	}
	return Tiers{Fast: fast, High: high}, nil
}
