package ffmpeg

import (
	"context"
	"fmt"

	"media-harvest/domain/transcript"
	"media-harvest/infrastructure/command"
)

// Converter implements transcript.AudioConverter using ffmpeg
type Converter struct {
	ffmpegPath string
	runner     command.CommandRunner
}

// ConverterOption is a functional option for configuring Converter
type ConverterOption func(*Converter)

// WithFFmpegPath sets a custom ffmpeg executable path
func WithFFmpegPath(path string) ConverterOption {
	return func(c *Converter) {
		c.ffmpegPath = path
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner command.CommandRunner) ConverterOption {
	return func(c *Converter) {
		c.runner = runner
	}
}

// NewConverter creates a new FFmpeg-based audio converter
func NewConverter(opts ...ConverterOption) *Converter {
	c := &Converter{
		ffmpegPath: "ffmpeg",
		runner:     &command.ExecCommandRunner{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ToWAV implements transcript.AudioConverter. whisper.cpp expects 16 kHz mono PCM.
func (c *Converter) ToWAV(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-i", inputPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y", // Overwrite output file if it exists
		outputPath,
	}

	if err := c.runner.Run(ctx, "", c.ffmpegPath, args...); err != nil {
		return fmt.Errorf("ffmpeg conversion failed: %w", err)
	}

	return nil
}

// VerifyInstalled checks that ffmpeg is available
func (c *Converter) VerifyInstalled(ctx context.Context) error {
	_, err := c.runner.Output(ctx, c.ffmpegPath, "-version")
	if err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}

// Ensure Converter implements transcript.AudioConverter
var _ transcript.AudioConverter = (*Converter)(nil)
