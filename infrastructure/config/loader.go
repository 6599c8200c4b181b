package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Output     OutputConfig     `yaml:"output"`
	Supadata   SupadataConfig   `yaml:"supadata"`
	Nitter     NitterConfig     `yaml:"nitter"`
	Whisper    WhisperConfig    `yaml:"whisper"`
	Download   DownloadConfig   `yaml:"download"`
	YouTube    YouTubeConfig    `yaml:"youtube"`
	Bilibili   BilibiliConfig   `yaml:"bilibili"`
	Pagination PaginationConfig `yaml:"pagination"`
}

// OutputConfig controls where results are written
type OutputConfig struct {
	Directory     string `yaml:"directory" env:"OUTPUT_DIR" env-default:"."`
	WorkDirectory string `yaml:"work_directory" env:"WORK_DIR"`
	KeepAudio     bool   `yaml:"keep_audio" env:"KEEP_AUDIO"`
}

// SupadataConfig configures the primary transcript provider
type SupadataConfig struct {
	BaseURL           string        `yaml:"base_url" env:"SUPADATA_BASE_URL" env-default:"https://api.supadata.ai/v1"`
	APIKeys           []string      `yaml:"api_keys" env:"SUPADATA_API_KEYS" env-separator:","`
	KeyStrategy       string        `yaml:"key_strategy" env-default:"round_robin"`
	SingleKey         bool          `yaml:"single_key"`
	Timeout           time.Duration `yaml:"timeout" env-default:"30s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env-default:"2"`
}

// NitterConfig configures the Twitter RSS source
type NitterConfig struct {
	URL               string        `yaml:"url" env:"NITTER_URL" env-default:"http://localhost:8080"`
	Timeout           time.Duration `yaml:"timeout" env-default:"15s"`
	IncludeRetweets   bool          `yaml:"include_retweets"`
	IncludeReplies    bool          `yaml:"include_replies"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env-default:"1"`
}

// WhisperConfig configures local transcription
type WhisperConfig struct {
	Binary   string `yaml:"binary" env:"WHISPER_BIN" env-default:"whisper-cli"`
	Model    string `yaml:"model" env:"WHISPER_MODEL" env-default:"~/.whisper/models/ggml-large-v3.bin"`
	Language string `yaml:"language" env:"WHISPER_LANGUAGE"`
	Threads  int    `yaml:"threads" env-default:"4"`
}

// DownloadConfig configures external download and conversion tools
type DownloadConfig struct {
	YtdlpPath         string        `yaml:"ytdlp_path" env:"YTDLP_PATH" env-default:"yt-dlp"`
	BBDownPath        string        `yaml:"bbdown_path" env:"BBDOWN_PATH" env-default:"BBDown"`
	FFmpegPath        string        `yaml:"ffmpeg_path" env:"FFMPEG_PATH" env-default:"ffmpeg"`
	Proxy             string        `yaml:"proxy" env:"YTDLP_PROXY"`
	MinCandidateBytes int64         `yaml:"min_candidate_bytes" env-default:"1000"`
	Timeout           time.Duration `yaml:"timeout" env-default:"10m"`
}

// YouTubeConfig selects how channel uploads are listed
type YouTubeConfig struct {
	Lister          string `yaml:"lister" env:"YOUTUBE_LISTER" env-default:"ytdlp"`
	APIKey          string `yaml:"api_key" env:"YOUTUBE_API_KEY"`
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// BilibiliConfig configures the Bilibili web API client
type BilibiliConfig struct {
	APIBase           string        `yaml:"api_base" env:"BILIBILI_API_BASE" env-default:"https://api.bilibili.com"`
	Timeout           time.Duration `yaml:"timeout" env-default:"30s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env-default:"1"`
}

// PaginationConfig configures cursor-feed pagination
type PaginationConfig struct {
	MaxPages  int           `yaml:"max_pages" env-default:"50"`
	PageDelay time.Duration `yaml:"page_delay" env-default:"2s"`
	Backoff   time.Duration `yaml:"backoff" env-default:"5s"`
}

// Load reads the configuration from the specified YAML file and overlays
// environment variables. A missing file is not an error: defaults and
// environment apply.
func Load(path string) (*Config, error) {
	var cfg Config

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(statErr, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read config file: %w", statErr)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file or environment is present
func Default() *Config {
	var cfg Config
	// Only fails on malformed defaults in the struct tags
	_ = cleanenv.ReadEnv(&cfg)
	_ = cfg.expandPaths()
	return &cfg
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Output.Directory, &c.Output.WorkDirectory, &c.Whisper.Model, &c.YouTube.CredentialsFile} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// WorkDir returns the directory for temporary download attempts
func (c *Config) WorkDir() string {
	if c.Output.WorkDirectory != "" {
		return c.Output.WorkDirectory
	}
	return os.TempDir()
}

// Save writes the configuration to the specified YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
