package config

import (
	"errors"
	"fmt"
	"strings"
)

// Errors for config management
var (
	ErrKeyNotFound      = errors.New("api key not found")
	ErrDuplicateKey     = errors.New("api key already exists")
	ErrInvalidStrategy  = errors.New("invalid key strategy")
	ErrInvalidNitterURL = errors.New("invalid nitter url")
)

// ConfigManager edits persisted configuration entries
type ConfigManager struct {
	config     *Config
	configPath string
}

// NewConfigManager creates a new config manager
func NewConfigManager(cfg *Config, configPath string) *ConfigManager {
	return &ConfigManager{
		config:     cfg,
		configPath: configPath,
	}
}

// APIKey is a configured key as shown to the user
type APIKey struct {
	Index  int
	Masked string
}

// AddAPIKey appends a Supadata key
func (m *ConfigManager) AddAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("api key is required")
	}

	for _, existing := range m.config.Supadata.APIKeys {
		if existing == key {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, MaskKey(key))
		}
	}

	m.config.Supadata.APIKeys = append(m.config.Supadata.APIKeys, key)
	return Save(m.config, m.configPath)
}

// ListAPIKeys returns all keys, masked
func (m *ConfigManager) ListAPIKeys() []APIKey {
	result := make([]APIKey, 0, len(m.config.Supadata.APIKeys))
	for i, key := range m.config.Supadata.APIKeys {
		result = append(result, APIKey{Index: i + 1, Masked: MaskKey(key)})
	}
	return result
}

// RemoveAPIKey removes a key by its full value or by its 1-based list index
func (m *ConfigManager) RemoveAPIKey(ref string) error {
	ref = strings.TrimSpace(ref)
	keys := m.config.Supadata.APIKeys

	idx := -1
	for i, key := range keys {
		if key == ref || fmt.Sprint(i+1) == ref {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, ref)
	}

	m.config.Supadata.APIKeys = append(keys[:idx], keys[idx+1:]...)
	return Save(m.config, m.configPath)
}

// SetKeyStrategy sets how keys are rotated (round_robin or random)
func (m *ConfigManager) SetKeyStrategy(strategy string) error {
	strategy = strings.ToLower(strings.TrimSpace(strategy))
	if strategy != "round_robin" && strategy != "random" {
		return fmt.Errorf("%w: %q (use round_robin or random)", ErrInvalidStrategy, strategy)
	}

	m.config.Supadata.KeyStrategy = strategy
	return Save(m.config, m.configPath)
}

// SetNitterURL sets the Nitter instance base URL
func (m *ConfigManager) SetNitterURL(url string) error {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("%w: %q", ErrInvalidNitterURL, url)
	}

	m.config.Nitter.URL = url
	return Save(m.config, m.configPath)
}

// MaskKey hides all but the last four characters of key
func MaskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// SuggestAddKeyCommand returns the command that adds a Supadata key
func SuggestAddKeyCommand() string {
	return `media-harvest config add-key <key>   (or set SUPADATA_API_KEYS="key1,key2")`
}
