package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// clearEnv unsets variables that would leak from the developer's shell
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OUTPUT_DIR", "SUPADATA_API_KEYS", "NITTER_URL", "WHISPER_MODEL", "YOUTUBE_API_KEY", "YOUTUBE_LISTER", "KEEP_AUDIO"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Nitter.URL != "http://localhost:8080" {
		t.Errorf("unexpected nitter url %q", cfg.Nitter.URL)
	}
	if cfg.Supadata.KeyStrategy != "round_robin" {
		t.Errorf("unexpected key strategy %q", cfg.Supadata.KeyStrategy)
	}
	if cfg.Pagination.MaxPages != 50 || cfg.Pagination.PageDelay != 2*time.Second || cfg.Pagination.Backoff != 5*time.Second {
		t.Errorf("unexpected pagination defaults %+v", cfg.Pagination)
	}
	if cfg.Download.MinCandidateBytes != 1000 {
		t.Errorf("unexpected min candidate bytes %d", cfg.Download.MinCandidateBytes)
	}
	home, _ := homedir.Dir()
	if cfg.Whisper.Model != filepath.Join(home, ".whisper/models/ggml-large-v3.bin") {
		t.Errorf("model path not expanded: %q", cfg.Whisper.Model)
	}
}

func TestLoad_FileAndEnvOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
nitter:
  url: http://nitter.lan:8080
  include_replies: true
supadata:
  api_keys: [file-key]
  key_strategy: random
pagination:
  max_pages: 10
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SUPADATA_API_KEYS", "env-key-1,env-key-2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Nitter.URL != "http://nitter.lan:8080" || !cfg.Nitter.IncludeReplies {
		t.Errorf("unexpected nitter config %+v", cfg.Nitter)
	}
	if cfg.Supadata.KeyStrategy != "random" {
		t.Errorf("unexpected strategy %q", cfg.Supadata.KeyStrategy)
	}
	if len(cfg.Supadata.APIKeys) != 2 || cfg.Supadata.APIKeys[0] != "env-key-1" {
		t.Errorf("env should override file keys, got %v", cfg.Supadata.APIKeys)
	}
	if cfg.Pagination.MaxPages != 10 {
		t.Errorf("unexpected max pages %d", cfg.Pagination.MaxPages)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("nitter: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSave_RoundTripsThroughYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &Config{}
	cfg.Supadata.APIKeys = []string{"k1"}
	cfg.Nitter.URL = "http://nitter.example"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved file is not valid yaml: %v", err)
	}
	if raw["nitter"]["url"] != "http://nitter.example" {
		t.Errorf("unexpected saved nitter section %v", raw["nitter"])
	}
}

func TestWorkDir(t *testing.T) {
	cfg := &Config{}
	if cfg.WorkDir() != os.TempDir() {
		t.Errorf("expected temp dir fallback, got %q", cfg.WorkDir())
	}
	cfg.Output.WorkDirectory = "/var/tmp/harvest"
	if cfg.WorkDir() != "/var/tmp/harvest" {
		t.Errorf("unexpected work dir %q", cfg.WorkDir())
	}
}
