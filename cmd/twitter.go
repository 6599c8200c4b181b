package cmd

import (
	"context"
	"fmt"

	"media-harvest/application/harvest"
	"media-harvest/domain/feed"

	"github.com/spf13/cobra"
)

var (
	twitterStartDate       string
	twitterEndDate         string
	twitterIncludeRetweets bool
	twitterIncludeReplies  bool
)

var twitterCmd = &cobra.Command{
	Use:   "twitter <username>",
	Short: "Collect a Twitter timeline through a Nitter instance",
	Long: `Pages through a user's timeline using the Nitter RSS feed and writes
tweets.json and <username>_tweets.md into twitter_<username>.

Retweets and replies are excluded unless enabled with the flags below or in
the nitter config section.
The Nitter instance is read from nitter.url or NITTER_URL.

Example:
  media-harvest twitter jack
  media-harvest twitter @jack --start-date 2024-01-01 --end-date 2024-03-31
  media-harvest twitter jack --include-retweets`,
	Args: cobra.ExactArgs(1),
	RunE: runTwitter,
}

func init() {
	rootCmd.AddCommand(twitterCmd)
	twitterCmd.Flags().StringVar(&twitterStartDate, "start-date", "", "Only keep tweets on or after this date (YYYY-MM-DD)")
	twitterCmd.Flags().StringVar(&twitterEndDate, "end-date", "", "Only keep tweets on or before this date (YYYY-MM-DD)")
	twitterCmd.Flags().BoolVar(&twitterIncludeRetweets, "include-retweets", false, "Keep retweets")
	twitterCmd.Flags().BoolVar(&twitterIncludeReplies, "include-replies", false, "Keep replies")
}

func runTwitter(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	logs := newLogManager()
	kinds := feed.TweetKinds{
		Retweets: twitterIncludeRetweets || cfg.Nitter.IncludeRetweets,
		Replies:  twitterIncludeReplies || cfg.Nitter.IncludeReplies,
	}

	return RunTwitterWithDependencies(
		cmd.Context(),
		newHarvestService(cfg, logs, DefaultOutput),
		newNitterSource(cfg, kinds, logs),
		harvest.TwitterInput{Username: args[0], StartDate: twitterStartDate, EndDate: twitterEndDate, Kinds: kinds},
		DefaultOutput,
	)
}

// RunTwitterWithDependencies runs the twitter command with injected dependencies (for testing)
func RunTwitterWithDependencies(
	ctx context.Context,
	service *harvest.Service,
	newSource func(username string) feed.Source,
	input harvest.TwitterInput,
	output OutputWriter,
) error {
	result, err := service.HarvestTwitter(ctx, input, newSource)
	if err != nil {
		return err
	}
	fmt.Fprintf(output, "Output: %s\n", result.OutputDir)
	return nil
}
