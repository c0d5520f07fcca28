// Package config loads the small set of environment variables this
// service reads at startup (spec.md §6, SPEC_FULL.md §6).
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full set of environment-driven startup configuration.
type Config struct {
	// DataPath selects the storage backend: "memory://" (the default) for
	// MemoryStore, or a postgres DSN for BunStore.
	DataPath string
	Port     string
	LogLevel string

	// AgentsBootstrapFile optionally names a YAML file pre-registering
	// agents at startup, so a CI harness can rely on a stable agent id
	// across runs instead of registering over HTTP first.
	AgentsBootstrapFile string
}

// Load reads Config from the environment, applying defaults.
func Load() *Config {
	return &Config{
		DataPath:            getEnv("DATA_PATH", "memory://"),
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		AgentsBootstrapFile: getEnv("AGENTS_BOOTSTRAP_FILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// IsMemoryBackend reports whether DataPath selects the in-memory store
// rather than a Postgres DSN.
func (c *Config) IsMemoryBackend() bool {
	return c.DataPath == "" || c.DataPath == "memory://"
}

// BootstrapAgent is one entry of an AGENTS_BOOTSTRAP_FILE document.
type BootstrapAgent struct {
	ID             string         `yaml:"id"`
	DisplayName    string         `yaml:"display_name"`
	ProviderConfig map[string]any `yaml:"provider_config"`
}

// LoadAgentBootstrap parses an AGENTS_BOOTSTRAP_FILE document. An empty
// path is not an error: it simply yields no entries.
func LoadAgentBootstrap(path string) ([]BootstrapAgent, error) {
	if path == "" {
		return nil, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Agents []BootstrapAgent `yaml:"agents"`
	}
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, err
	}
	return doc.Agents, nil
}
