package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"media-harvest/infrastructure/config"
	"media-harvest/infrastructure/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile            string
	cfg                *config.Config
	cfgErr             error
	verbose            bool
	resetCorruptLedger bool
	outputDirFlag      string
)

var rootCmd = &cobra.Command{
	Use:   "media-harvest",
	Short: "Turn YouTube channels, Bilibili spaces and Twitter timelines into text",
	Long: `media-harvest lists the content of a source, turns every item into text and
records progress so an interrupted run can simply be started again:

  - YouTube channels: transcript API, then subtitles, then local transcription
  - Bilibili user spaces: audio download (BBDown, yt-dlp) and local transcription
  - Twitter timelines through a Nitter instance: tweets as JSON and Markdown

Example:
  media-harvest youtube @channel --max-videos 20
  media-harvest bilibili https://space.bilibili.com/12345 --start-date 2024-01-01
  media-harvest twitter jack --start-date 2024-05-01`,
	SilenceUsage: true,
}

// Execute runs the root command; Ctrl-C cancels the running command's context
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug output")
	rootCmd.PersistentFlags().BoolVar(&resetCorruptLedger, "reset-corrupt-ledger", false, "move an unreadable processing_status.json aside and start over")
	rootCmd.PersistentFlags().StringVarP(&outputDirFlag, "output", "o", "", "output directory (overrides output.directory)")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = "config/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to read .env: %v\n", err)
	}

	cfg, cfgErr = config.Load(cfgFile)
	if cfgErr != nil {
		// Commands that need config report cfgErr themselves
		cfg = nil
	}
	if cfg != nil && outputDirFlag != "" {
		cfg.Output.Directory = outputDirFlag
	}
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

func requireConfig() (*config.Config, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", cfgErr)
		}
		return nil, fmt.Errorf("configuration not loaded; run 'media-harvest setup' first")
	}
	return cfg, nil
}

func newLogManager() *logger.Manager {
	min := logger.INFO
	if verbose {
		min = logger.DEBUG
	}
	return logger.New(os.Stderr, min)
}
