package cmd

import (
	"context"
	"fmt"

	"media-harvest/application/harvest"

	"github.com/spf13/cobra"
)

var (
	bilibiliMaxVideos int
	bilibiliStartDate string
)

var bilibiliCmd = &cobra.Command{
	Use:   "bilibili <uid|space url>",
	Short: "Transcribe every upload of a Bilibili user",
	Long: `Lists a Bilibili user's uploads and transcribes each video locally.
Audio is downloaded with BBDown, falling back to yt-dlp; downloads that turn
out to be HTML error pages or stubs are rejected before transcription.

Progress is stored in processing_status.json inside the output directory.

Example:
  media-harvest bilibili 12345
  media-harvest bilibili https://space.bilibili.com/12345 --start-date 2024-01-01 --max-videos 5`,
	Args: cobra.ExactArgs(1),
	RunE: runBilibili,
}

func init() {
	rootCmd.AddCommand(bilibiliCmd)
	bilibiliCmd.Flags().IntVar(&bilibiliMaxVideos, "max-videos", 0, "Process at most this many videos, newest first (0 for all)")
	bilibiliCmd.Flags().StringVar(&bilibiliStartDate, "start-date", "", "Only process videos published on or after this date (YYYY-MM-DD)")
}

func runBilibili(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	logs := newLogManager()

	return RunBilibiliWithDependencies(
		cmd.Context(),
		newHarvestService(cfg, logs, DefaultOutput),
		newSpaceLister(cfg, logs),
		newBilibiliFetcher(cfg, logs),
		harvest.BilibiliInput{User: args[0], MaxVideos: bilibiliMaxVideos, StartDate: bilibiliStartDate},
		DefaultOutput,
	)
}

// RunBilibiliWithDependencies runs the bilibili command with injected dependencies (for testing)
func RunBilibiliWithDependencies(
	ctx context.Context,
	service *harvest.Service,
	lister harvest.SpaceLister,
	fetcher harvest.Fetcher,
	input harvest.BilibiliInput,
	output OutputWriter,
) error {
	result, err := service.HarvestBilibili(ctx, input, lister, fetcher)
	if err != nil {
		return err
	}
	fmt.Fprintf(output, "Output: %s\n", result.OutputDir)
	return nil
}
