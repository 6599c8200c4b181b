package cmd

import (
	"context"
	"fmt"

	"media-harvest/application/harvest"

	"github.com/spf13/cobra"
)

var (
	youtubeMaxVideos int
	youtubeStartDate string
)

var youtubeCmd = &cobra.Command{
	Use:   "youtube <channel>",
	Short: "Transcribe every upload of a YouTube channel",
	Long: `Lists a channel's uploads and turns each video into text, trying in order:
1. The transcript API (Supadata, with key rotation)
2. Subtitles downloaded with yt-dlp
3. Audio download with yt-dlp and local transcription with whisper.cpp

Progress is stored in processing_status.json inside the output directory, so
running the same command again skips videos that already completed.

The channel may be @handle, a bare handle or a channel URL
(/@handle, /c/name, /user/name or /channel/UC...).

Example:
  media-harvest youtube @golang --max-videos 10
  media-harvest youtube https://www.youtube.com/@golang --start-date 2024-01-01`,
	Args: cobra.ExactArgs(1),
	RunE: runYouTube,
}

func init() {
	rootCmd.AddCommand(youtubeCmd)
	youtubeCmd.Flags().IntVar(&youtubeMaxVideos, "max-videos", 0, "Process at most this many videos, newest first (0 for all)")
	youtubeCmd.Flags().StringVar(&youtubeStartDate, "start-date", "", "Only process videos published on or after this date (YYYY-MM-DD)")
}

func runYouTube(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logs := newLogManager()

	lister, err := newChannelLister(ctx, cfg)
	if err != nil {
		return err
	}

	return RunYouTubeWithDependencies(
		ctx,
		newHarvestService(cfg, logs, DefaultOutput),
		lister,
		newYouTubeFetcher(cfg, logs),
		harvest.YouTubeInput{Channel: args[0], MaxVideos: youtubeMaxVideos, StartDate: youtubeStartDate},
		DefaultOutput,
	)
}

// RunYouTubeWithDependencies runs the youtube command with injected dependencies (for testing)
func RunYouTubeWithDependencies(
	ctx context.Context,
	service *harvest.Service,
	lister harvest.ChannelLister,
	fetcher harvest.Fetcher,
	input harvest.YouTubeInput,
	output OutputWriter,
) error {
	result, err := service.HarvestYouTube(ctx, input, lister, fetcher)
	if err != nil {
		return err
	}
	fmt.Fprintf(output, "Output: %s\n", result.OutputDir)
	return nil
}
