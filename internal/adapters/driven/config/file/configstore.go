// Package file provides the TOML configuration file for docstash.
// Settings live under ~/.docstash/config.toml; command-line flags
// override whatever the file carries.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// ModelConfig configures one generative model role.
type ModelConfig struct {
	// Provider selects the adapter: "openai" or "ollama".
	Provider string `toml:"provider,omitempty"`

	// Model is the provider-specific model name.
	Model string `toml:"model,omitempty"`

	// APIKey authenticates against hosted providers.
	APIKey string `toml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url,omitempty"`

	// Vision overrides the model-name-based vision capability check.
	Vision *bool `toml:"vision,omitempty"`
}

// EmbedderConfig configures the embedding model.
type EmbedderConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Model      string `toml:"model,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	BaseURL    string `toml:"base_url,omitempty"`
	Dimensions int    `toml:"dimensions,omitempty"`
}

// IngestConfig tunes the ingest pipeline.
type IngestConfig struct {
	// RequestsPerSecond throttles generative calls. Zero uses the
	// adapter default.
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`

	// BurstSize is the rate limiter burst. Zero uses the adapter
	// default.
	BurstSize int `toml:"burst_size,omitempty"`
}

// ServeConfig tunes the resource server.
type ServeConfig struct {
	// MaxBlobSize caps served binary payloads in bytes. Zero uses the
	// server default.
	MaxBlobSize int64 `toml:"max_blob_size,omitempty"`
}

// Config is the full configuration file shape.
type Config struct {
	// Database is the default database path when the flag is omitted.
	Database string `toml:"database,omitempty"`

	Abstracter ModelConfig    `toml:"abstracter,omitempty"`
	Summarizer ModelConfig    `toml:"summarizer,omitempty"`
	Vision     ModelConfig    `toml:"vision,omitempty"`
	Embedder   EmbedderConfig `toml:"embedder,omitempty"`
	Ingest     IngestConfig   `toml:"ingest,omitempty"`
	Serve      ServeConfig    `toml:"serve,omitempty"`
}

// ConfigStore loads and persists the docstash configuration file.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	config   Config
}

// NewConfigStore creates a config store rooted at configDir.
// If configDir is empty, defaults to ~/.docstash/config.toml.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".docstash")
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
	}

	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns a copy of the current configuration.
func (s *ConfigStore) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Update replaces the configuration and persists it immediately.
func (s *ConfigStore) Update(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = cfg
	return s.save()
}

// save writes configuration to the TOML file (caller must hold lock).
func (s *ConfigStore) save() error {
	data, err := toml.Marshal(s.config)
	if err != nil {
		return err
	}

	// Write with restricted permissions, the file may hold API keys
	return os.WriteFile(s.filePath, data, 0600)
}

// Load reads configuration from the TOML file. A missing file yields
// an empty configuration.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.config = Config{}
			return nil
		}
		return err
	}

	var loaded Config
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}

	s.config = loaded
	return nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}
