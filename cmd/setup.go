package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-harvest/infrastructure/config"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// Prompter interface for interactive prompts (allows mocking in tests)
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
}

// SurveyPrompter implements Prompter using the survey library
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

// DefaultPrompter is the prompter used in production
var DefaultPrompter Prompter = &SurveyPrompter{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create configuration file interactively",
	Long: `Prompts for configuration values and creates config.yaml.

This command guides you through setting the output directory, Supadata API
keys, the Nitter instance and the local transcription model. Anything left
blank keeps its default and can still be overridden from the environment.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = "config/config.yaml"
	}
	return RunSetupWithPrompter(DefaultPrompter, path)
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(prompter Prompter, configPath string) error {
	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm("config.yaml already exists. Overwrite?", false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !overwrite {
			fmt.Fprintln(DefaultOutput, "Setup cancelled.")
			return nil
		}
	}

	fmt.Fprintln(DefaultOutput, "Welcome to media-harvest setup!")
	fmt.Fprintln(DefaultOutput)

	cfg := config.Default()

	if err := promptOutput(prompter, cfg); err != nil {
		return err
	}

	if err := promptSupadata(prompter, cfg); err != nil {
		return err
	}

	if err := promptNitter(prompter, cfg); err != nil {
		return err
	}

	if err := promptTranscription(prompter, cfg); err != nil {
		return err
	}

	if err := promptYouTube(prompter, cfg); err != nil {
		return err
	}

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(DefaultOutput)
	fmt.Fprintf(DefaultOutput, "Configuration saved to %s\n", configPath)
	return nil
}

func promptOutput(prompter Prompter, cfg *config.Config) error {
	dir, err := prompter.Input("Where should results be written?", cfg.Output.Directory)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if dir != "" {
		cfg.Output.Directory = dir
	}

	keep, err := prompter.Confirm("Keep downloaded audio after transcription?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Output.KeepAudio = keep
	return nil
}

func promptSupadata(prompter Prompter, cfg *config.Config) error {
	raw, err := prompter.Input("Supadata API keys (comma separated, blank to skip)?", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}

	cfg.Supadata.APIKeys = nil
	seen := map[string]bool{}
	for _, key := range strings.Split(raw, ",") {
		key = strings.TrimSpace(key)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		cfg.Supadata.APIKeys = append(cfg.Supadata.APIKeys, key)
	}
	if len(cfg.Supadata.APIKeys) < 2 {
		return nil
	}

	strategy, err := prompter.Input("Key rotation strategy (round_robin or random)?", "round_robin")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	strategy = strings.ToLower(strings.TrimSpace(strategy))
	switch strategy {
	case "":
		strategy = "round_robin"
	case "round_robin", "random":
	default:
		return fmt.Errorf("key strategy must be round_robin or random, got %q", strategy)
	}
	cfg.Supadata.KeyStrategy = strategy
	return nil
}

func promptNitter(prompter Prompter, cfg *config.Config) error {
	url, err := prompter.Input("Nitter instance URL?", cfg.Nitter.URL)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if url == "" {
		return nil
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("nitter URL must start with http:// or https://")
	}
	cfg.Nitter.URL = url
	return nil
}

func promptTranscription(prompter Prompter, cfg *config.Config) error {
	model, err := prompter.Input("Path to the whisper.cpp model?", cfg.Whisper.Model)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if model != "" {
		cfg.Whisper.Model = model
	}

	lang, err := prompter.Input("Transcription language (blank to auto-detect)?", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Whisper.Language = strings.TrimSpace(lang)
	return nil
}

func promptYouTube(prompter Prompter, cfg *config.Config) error {
	useAPI, err := prompter.Confirm("Add a YouTube Data API key for channel listing?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if !useAPI {
		cfg.YouTube.Lister = "ytdlp"
		return nil
	}

	key, err := prompter.Input("  YouTube Data API key:", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if key == "" {
		return fmt.Errorf("api key is required")
	}
	cfg.YouTube.Lister = "api"
	cfg.YouTube.APIKey = key
	return nil
}
