// Package config provides configuration loading for personasim.
//
// Configuration is loaded from an optional YAML file with environment
// variable overrides. Defaults are production-ready for a local run against
// OpenRouter.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete personasim configuration.
type Config struct {
	API       APIConfig       `koanf:"api"`
	Run       RunConfig       `koanf:"run"`
	Output    OutputConfig    `koanf:"output"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// APIConfig holds the agent endpoint configuration for both roles.
type APIConfig struct {
	// Provider selects the chat completion backend: "openai", "openrouter"
	// or "custom" (explicit URLs).
	Provider string `koanf:"provider"`

	OpenAIKey     Secret `koanf:"openai_api_key"`
	OpenRouterKey Secret `koanf:"openrouter_api_key"`

	// SUTURL / ProxyURL override the provider base URL when set
	// (provider "custom", or a locally hosted SUT endpoint).
	SUTURL   string `koanf:"sut_url"`
	ProxyURL string `koanf:"proxy_url"`

	SUTModel   string `koanf:"sut_model"`
	ProxyModel string `koanf:"proxy_model"`
}

// RunConfig holds the conversation engine parameters.
type RunConfig struct {
	MaxTurns       int      `koanf:"max_turns"`
	MinTurns       int      `koanf:"min_turns"`
	Timeout        Duration `koanf:"timeout"`         // whole conversation
	RequestTimeout Duration `koanf:"request_timeout"` // per client call
	RetryAttempts  int      `koanf:"retry_attempts"`
	RetryDelay     Duration `koanf:"retry_delay"`

	Temperature float64 `koanf:"temperature"`
	TopP        float64 `koanf:"top_p"`
	Seed        int64   `koanf:"seed"` // 0 = derive a fresh seed per run

	BudgetBoost     float64 `koanf:"budget_boost"`
	TangentCooldown int     `koanf:"tangent_cooldown"`
}

// OutputConfig holds transcript output settings.
type OutputConfig struct {
	Dir           string `koanf:"dir"`
	SUTPromptPath string `koanf:"sut_prompt_path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds the trace sink settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
	Insecure    bool   `koanf:"insecure"`
}

// Endpoint is a resolved chat completion endpoint for one agent role.
type Endpoint struct {
	BaseURL string
	APIKey  Secret
	Model   string
}

// Providers understood by ResolveSUT/ResolveProxy.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderCustom     = "custom"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Provider:   ProviderOpenRouter,
			SUTModel:   "openai/gpt-4o-mini",
			ProxyModel: "openai/gpt-4o-mini",
		},
		Run: RunConfig{
			MaxTurns:        18,
			MinTurns:        4,
			Timeout:         Duration(120 * time.Second),
			RequestTimeout:  Duration(30 * time.Second),
			RetryAttempts:   3,
			RetryDelay:      Duration(time.Second),
			Temperature:     0.7,
			TopP:            1.0,
			BudgetBoost:     0.05,
			TangentCooldown: 2,
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "personasim",
		},
	}
}

// Validate checks cross-field consistency and required credentials.
func (c *Config) Validate() error {
	switch c.API.Provider {
	case ProviderOpenAI:
		if !c.API.OpenAIKey.IsSet() {
			return fmt.Errorf("openai provider requires api.openai_api_key (OPENAI_API_KEY)")
		}
	case ProviderOpenRouter:
		if !c.API.OpenRouterKey.IsSet() {
			return fmt.Errorf("openrouter provider requires api.openrouter_api_key (OPENROUTER_API_KEY)")
		}
	case ProviderCustom:
		if c.API.SUTURL == "" || c.API.ProxyURL == "" {
			return fmt.Errorf("custom provider requires api.sut_url and api.proxy_url")
		}
	default:
		return fmt.Errorf("unknown api provider %q", c.API.Provider)
	}

	if c.Run.MaxTurns <= 0 {
		return fmt.Errorf("run.max_turns must be positive, got %d", c.Run.MaxTurns)
	}
	if c.Run.Timeout.Duration() <= 0 {
		return fmt.Errorf("run.timeout must be positive")
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("telemetry.service_name required when telemetry is enabled")
	}
	return nil
}

// ResolveSUT returns the endpoint for the system-under-test role.
func (c *Config) ResolveSUT() Endpoint {
	ep := c.resolveProvider(c.API.SUTModel)
	if c.API.SUTURL != "" {
		ep.BaseURL = c.API.SUTURL
	}
	return ep
}

// ResolveProxy returns the endpoint for the proxy role.
func (c *Config) ResolveProxy() Endpoint {
	ep := c.resolveProvider(c.API.ProxyModel)
	if c.API.ProxyURL != "" {
		ep.BaseURL = c.API.ProxyURL
	}
	return ep
}

func (c *Config) resolveProvider(model string) Endpoint {
	switch c.API.Provider {
	case ProviderOpenAI:
		return Endpoint{BaseURL: openAIBaseURL, APIKey: c.API.OpenAIKey, Model: model}
	case ProviderOpenRouter:
		return Endpoint{BaseURL: openRouterBaseURL, APIKey: c.API.OpenRouterKey, Model: model}
	default:
		return Endpoint{Model: model}
	}
}
