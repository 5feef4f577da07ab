package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// sectionPrefixes are the environment variable prefixes recognized by the
// loader. Anything else in the environment is ignored.
var sectionPrefixes = []string{"QDRANT", "NEO4J", "OPENAI", "CHUNKER", "RETRIEVAL", "LOGGING"}

// Load loads configuration with the following precedence (highest first):
//
//  1. Environment variables (QDRANT_HOST, OPENAI_API_KEY, CHUNKER_MAX_CHUNK_SIZE, ...)
//  2. YAML config file (optional; skipped when configPath is empty or missing)
//  3. Defaults from Default()
//
// Environment variables map to config keys by lowercasing and splitting on
// the first underscore: QDRANT_VECTOR_SIZE -> qdrant.vector_size.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			content, err := readConfigFile(configPath)
			if err != nil {
				return nil, err
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// readConfigFile reads the file while enforcing the size bound.
func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file exceeds maximum size of %d bytes", maxConfigFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// transformEnvKey maps an environment variable name to a config key.
// Returns "" for variables outside the recognized sections.
func transformEnvKey(s string) string {
	for _, prefix := range sectionPrefixes {
		if strings.HasPrefix(s, prefix+"_") {
			rest := strings.TrimPrefix(s, prefix+"_")
			if rest == "" {
				return ""
			}
			return strings.ToLower(prefix) + "." + strings.ToLower(rest)
		}
	}
	return ""
}
