package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load builds the configuration from defaults, an optional YAML file, and
// environment variable overrides.
//
// Precedence (highest to lowest):
//  1. Environment variables (RUN_MAX_TURNS, API_OPENROUTER_API_KEY, ...)
//  2. YAML config file (when configPath is non-empty)
//  3. Defaults
//
// Environment variables map onto config keys by lowercasing and splitting
// on the first underscore:
//
//	RUN_MAX_TURNS      -> run.max_turns
//	API_PROVIDER       -> api.provider
//	OUTPUT_DIR         -> output.dir
//	TELEMETRY_ENDPOINT -> telemetry.endpoint
//
// Credential variables keep their conventional names as aliases:
// OPENAI_API_KEY and OPENROUTER_API_KEY.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// transformEnvKey maps SECTION_FIELD_NAME to section.field_name. The first
// underscore splits section from field; remaining underscores stay in the
// field name.
func transformEnvKey(s string) string {
	// Conventional credential aliases.
	switch s {
	case "OPENAI_API_KEY":
		return "api.openai_api_key"
	case "OPENROUTER_API_KEY":
		return "api.openrouter_api_key"
	}

	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
