package cmd

import (
	"context"
	"fmt"

	"media-harvest/application/harvest"
	"media-harvest/domain/content"

	"github.com/spf13/cobra"
)

var videoCmd = &cobra.Command{
	Use:   "video <url>",
	Short: "Transcribe a single YouTube or Bilibili video",
	Long: `Runs one video through the same fetch chain as the batch commands and
writes the transcript into the output directory. No ledger is kept.

Example:
  media-harvest video https://www.youtube.com/watch?v=dQw4w9WgXcQ
  media-harvest video https://www.bilibili.com/video/BV1xx411c7mD -o ./out`,
	Args: cobra.ExactArgs(1),
	RunE: runVideo,
}

func init() {
	rootCmd.AddCommand(videoCmd)
}

func runVideo(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	logs := newLogManager()

	fetchers := map[content.Source]harvest.Fetcher{
		content.SourceYouTube:  newYouTubeFetcher(cfg, logs),
		content.SourceBilibili: newBilibiliFetcher(cfg, logs),
	}
	return RunVideoWithDependencies(cmd.Context(), newHarvestService(cfg, logs, DefaultOutput), fetchers, args[0], DefaultOutput)
}

// RunVideoWithDependencies runs the video command with injected dependencies (for testing)
func RunVideoWithDependencies(
	ctx context.Context,
	service *harvest.Service,
	fetchers map[content.Source]harvest.Fetcher,
	url string,
	output OutputWriter,
) error {
	result, err := service.HarvestVideo(ctx, harvest.VideoInput{URL: url}, fetchers)
	if err != nil {
		return err
	}

	switch r := result.(type) {
	case content.TranscriptSuccess:
		fmt.Fprintf(output, "Transcript from %s (%d characters)\n", r.Source, len(r.Text))
	case content.TranscriptionSuccess:
		fmt.Fprintf(output, "Transcribed locally (%d characters)\n", len(r.Text))
		if r.AudioPath != "" {
			fmt.Fprintf(output, "Audio kept at %s\n", r.AudioPath)
		}
	}
	return nil
}
