package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-harvest/application/pagination"
	"media-harvest/application/pipeline"
	"media-harvest/domain/content"
	"media-harvest/domain/feed"
	"media-harvest/domain/ledger"
	"media-harvest/infrastructure/bilibili"
	"media-harvest/infrastructure/logger"
	"media-harvest/infrastructure/report"
)

// Fetcher turns one item into text
type Fetcher interface {
	Fetch(ctx context.Context, item content.Item) (content.FetchResult, error)
}

// ChannelLister lists a YouTube channel's uploads, newest first
type ChannelLister interface {
	ListChannel(ctx context.Context, ref content.ChannelRef, max int) ([]content.Item, error)
}

// SpaceLister lists a Bilibili user's uploads
type SpaceLister interface {
	UserInfo(ctx context.Context, uid int64) bilibili.UserInfo
	ListVideos(ctx context.Context, uid int64, opts bilibili.ListOptions) ([]content.Item, error)
}

// LedgerOpener returns the ledger store kept in a source's output directory
type LedgerOpener func(dir string) ledger.Store

// Service runs list -> snapshot -> pipeline -> summary for each source
type Service struct {
	outputRoot string
	openLedger LedgerOpener
	pageOpts   []pagination.Option
	clock      func() time.Time
	log        logger.Logger
	output     io.Writer
}

// Option is a functional option for configuring Service
type Option func(*Service)

// WithPagination sets options for the feed pagination engine
func WithPagination(opts ...pagination.Option) Option {
	return func(s *Service) {
		s.pageOpts = append(s.pageOpts, opts...)
	}
}

// WithClock overrides the current time (for date validation and file stamps)
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService creates a new harvest service writing below outputRoot
func NewService(outputRoot string, openLedger LedgerOpener, log logger.Logger, output io.Writer, opts ...Option) *Service {
	s := &Service{
		outputRoot: outputRoot,
		openLedger: openLedger,
		clock:      time.Now,
		log:        log,
		output:     output,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result describes the files and statistics of one harvest
type Result struct {
	OutputDir    string
	Listed       int
	SnapshotPath string
	SummaryPath  string
	MarkdownPath string
	// Summary is nil for sources that are only listed (Twitter)
	Summary    *pipeline.Summary
	Pagination *pagination.Result
}

// YouTubeInput contains the parameters of a channel harvest
type YouTubeInput struct {
	Channel   string // @handle, bare handle or channel URL
	MaxVideos int    // 0 means all
	StartDate string // optional YYYY-MM-DD
}

// HarvestYouTube transcribes every upload of a channel
func (s *Service) HarvestYouTube(ctx context.Context, in YouTubeInput, lister ChannelLister, fetcher Fetcher) (*Result, error) {
	startTime := s.clock()

	ref, err := content.ParseYouTubeChannel(in.Channel)
	if err != nil {
		return nil, err
	}
	dates, err := content.ParseDateRange(in.StartDate, "", s.clock())
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(s.output, "Channel: %s\n\n", ref.Identifier)

	fmt.Fprintf(s.output, "[1/3] Listing videos...\n")
	// the date filter applies after listing, so list everything when it is set
	limit := in.MaxVideos
	if !dates.IsZero() {
		limit = 0
	}
	items, err := lister.ListChannel(ctx, ref, limit)
	if err != nil {
		s.showRecoveryHints(1, "youtube "+in.Channel, "")
		return nil, fmt.Errorf("listing failed: %w", err)
	}
	items = limitItems(filterByDate(items, dates), in.MaxVideos)
	if len(items) == 0 {
		if in.StartDate != "" {
			return nil, fmt.Errorf("%w: no videos published on or after %s", content.ErrNoItems, in.StartDate)
		}
		return nil, fmt.Errorf("%w: channel has no videos", content.ErrNoItems)
	}
	fmt.Fprintf(s.output, "      Found %d videos\n\n", len(items))

	dir := filepath.Join(s.outputRoot, "youtube_"+content.SanitizeFilename(strings.TrimPrefix(ref.Identifier, "@")))
	info := map[string]any{
		"channel":      ref.Identifier,
		"channel_id":   ref.ChannelID,
		"videos_url":   ref.VideosURL,
		"total_videos": len(items),
	}
	return s.runBatch(ctx, batch{
		dir:      dir,
		infoKey:  "channel_info",
		info:     info,
		items:    items,
		fetcher:  fetcher,
		retryCmd: "youtube " + in.Channel,
		started:  startTime,
	})
}

// BilibiliInput contains the parameters of a user space harvest
type BilibiliInput struct {
	User      string // numeric UID or space.bilibili.com URL
	MaxVideos int
	StartDate string
}

// HarvestBilibili transcribes every upload of a Bilibili user
func (s *Service) HarvestBilibili(ctx context.Context, in BilibiliInput, lister SpaceLister, fetcher Fetcher) (*Result, error) {
	startTime := s.clock()

	uid, err := content.ParseBilibiliUID(in.User)
	if err != nil {
		return nil, err
	}
	dates, err := content.ParseDateRange(in.StartDate, "", s.clock())
	if err != nil {
		return nil, err
	}

	user := lister.UserInfo(ctx, uid)
	fmt.Fprintf(s.output, "User: %s (UID %d, %d followers)\n\n", user.Name, uid, user.Follower)

	fmt.Fprintf(s.output, "[1/3] Listing videos...\n")
	items, err := lister.ListVideos(ctx, uid, bilibili.ListOptions{Since: dates.Start, MaxVideos: in.MaxVideos})
	if err != nil {
		s.showRecoveryHints(1, "bilibili "+in.User, "")
		return nil, fmt.Errorf("listing failed: %w", err)
	}
	fmt.Fprintf(s.output, "      Found %d videos\n\n", len(items))

	dir := filepath.Join(s.outputRoot, fmt.Sprintf("%s_%d", content.SanitizeFilename(user.Name), uid))
	info := map[string]any{
		"uid":          user.UID,
		"name":         user.Name,
		"follower":     user.Follower,
		"following":    user.Following,
		"total_videos": len(items),
	}
	return s.runBatch(ctx, batch{
		dir:      dir,
		infoKey:  "user_info",
		info:     info,
		items:    items,
		fetcher:  fetcher,
		retryCmd: "bilibili " + in.User,
		started:  startTime,
	})
}

// TwitterInput contains the parameters of a timeline harvest
type TwitterInput struct {
	Username  string
	StartDate string
	EndDate   string
	// Kinds selects retweets and replies; originals are always kept
	Kinds feed.TweetKinds
}

// HarvestTwitter collects a timeline through the cursor feed and writes the
// tweets snapshot and markdown
func (s *Service) HarvestTwitter(ctx context.Context, in TwitterInput, newSource func(username string) feed.Source) (*Result, error) {
	startTime := s.clock()

	username, err := content.ValidateTwitterUsername(in.Username)
	if err != nil {
		return nil, err
	}
	dates, err := content.ParseDateRange(in.StartDate, in.EndDate, s.clock())
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(s.output, "User: @%s\n\n", username)

	fmt.Fprintf(s.output, "[1/2] Fetching timeline...\n")
	// filtered tweets still count as seen, so a page of retweets does not end pagination
	keep := func(it content.Item) bool {
		return in.Kinds.Keep(it) && (dates.IsZero() || dates.Contains(it.PublishedAt))
	}
	opts := append(s.pageOpts[:len(s.pageOpts):len(s.pageOpts)], pagination.WithFilter(keep))
	engine := pagination.NewEngine(s.log, opts...)
	paged, err := engine.FetchAll(ctx, newSource(username))
	if err != nil {
		s.showRecoveryHints(1, "twitter "+username, "")
		return nil, fmt.Errorf("fetching timeline failed: %w", err)
	}
	fmt.Fprintf(s.output, "      %d tweets from %d pages (%s)\n", len(paged.Items), paged.Pages, paged.StopReason)
	if paged.Partial {
		fmt.Fprintf(s.output, "      Some pages failed; the result is partial\n")
	}
	fmt.Fprintln(s.output)
	if len(paged.Items) == 0 {
		return nil, fmt.Errorf("%w: no tweets found matching filter criteria", content.ErrNoItems)
	}

	dir := filepath.Join(s.outputRoot, "twitter_"+username)
	writer := report.NewWriter(dir, report.WithClock(s.clock))
	result := &Result{OutputDir: dir, Listed: len(paged.Items), Pagination: paged}

	fmt.Fprintf(s.output, "[2/2] Saving tweets...\n")
	info := map[string]any{
		"username":     username,
		"total_tweets": len(paged.Items),
		"pages":        paged.Pages,
		"partial":      paged.Partial,
		"stop_reason":  paged.StopReason,
		"start_date":   in.StartDate,
		"end_date":     in.EndDate,
	}
	if result.SnapshotPath, err = writer.WriteSnapshot(report.TweetsFile, "user_info", info, "tweets", paged.Items); err != nil {
		return nil, err
	}
	if result.MarkdownPath, err = writer.WriteTweetsMarkdown(username, paged.Items); err != nil {
		return nil, err
	}
	fmt.Fprintf(s.output, "      Created: %s\n", result.SnapshotPath)
	fmt.Fprintf(s.output, "      Created: %s\n\n", result.MarkdownPath)

	fmt.Fprintf(s.output, "Done! Completed in %s\n", formatDuration(s.clock().Sub(startTime)))
	return result, nil
}

// VideoInput contains the parameters of a single video transcription
type VideoInput struct {
	URL string
}

// HarvestVideo transcribes one YouTube or Bilibili video without a ledger
func (s *Service) HarvestVideo(ctx context.Context, in VideoInput, fetchers map[content.Source]Fetcher) (content.FetchResult, error) {
	item, err := VideoItem(in.URL)
	if err != nil {
		return nil, err
	}
	fetcher, ok := fetchers[item.Source]
	if !ok {
		return nil, fmt.Errorf("no fetcher configured for %s", item.Source)
	}

	fmt.Fprintf(s.output, "Fetching %s...\n", item.URL)
	result, err := fetcher.Fetch(ctx, item)
	if err != nil {
		return nil, err
	}
	if f, ok := result.(content.Failure); ok {
		return nil, f.Err
	}

	writer := report.NewWriter(s.outputRoot, report.WithClock(s.clock))
	path, err := writer.WriteTranscript(item, content.ResultText(result))
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(s.output, "      Created: %s\n", path)
	return content.WithOutputPath(result, path), nil
}

// VideoItem builds an item from a single video URL
func VideoItem(url string) (content.Item, error) {
	source, err := content.DetectSource(url)
	if err != nil {
		return content.Item{}, err
	}

	var id string
	var ok bool
	switch source {
	case content.SourceYouTube:
		id, ok = content.ExtractYouTubeVideoID(url)
	case content.SourceBilibili:
		id, ok = content.ExtractBilibiliBVID(url)
	}
	if !ok {
		return content.Item{}, &content.ValidationError{
			Field:      "url",
			Message:    fmt.Sprintf("cannot find a video id in %q", url),
			Suggestion: "pass a full video URL such as https://www.youtube.com/watch?v=<id>",
		}
	}
	return content.NewItem(source, id, "", url, time.Time{}, nil)
}

type batch struct {
	dir      string
	infoKey  string
	info     map[string]any
	items    []content.Item
	fetcher  Fetcher
	retryCmd string
	started  time.Time
}

func (s *Service) runBatch(ctx context.Context, b batch) (*Result, error) {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	writer := report.NewWriter(b.dir, report.WithClock(s.clock))
	result := &Result{OutputDir: b.dir, Listed: len(b.items)}

	var err error
	if result.SnapshotPath, err = writer.WriteSnapshot(report.VideoListFile, b.infoKey, b.info, "videos", b.items); err != nil {
		return nil, err
	}

	fmt.Fprintf(s.output, "[2/3] Processing videos...\n")
	runner := pipeline.NewService(s.openLedger(b.dir), s.log, s.output)
	summary, err := runner.Run(ctx, b.items, s.processor(b.fetcher, writer))
	if err != nil {
		if summary == nil {
			s.showRecoveryHints(2, b.retryCmd, b.dir)
			return nil, err
		}
		s.log.Emit(logger.ERROR, "%v", err)
	}
	result.Summary = summary
	fmt.Fprintln(s.output)

	fmt.Fprintf(s.output, "[3/3] Writing summary...\n")
	if result.SummaryPath, err = writer.WriteSummary(b.infoKey, b.info, summary); err != nil {
		return nil, err
	}
	fmt.Fprintf(s.output, "      Created: %s\n\n", result.SummaryPath)

	st := summary.Stats
	fmt.Fprintf(s.output, "Attempted %d, succeeded %d, failed %d, skipped %d (ledger: %d completed, %d failed)\n",
		st.Attempted, st.Successful, st.Failed, st.Skipped, st.TotalCompleted, st.TotalFailed)

	switch {
	case summary.Interrupted:
		fmt.Fprintln(s.output, "Interrupted. Run the same command again to resume.")
	case st.Failed > 0:
		s.showRecoveryHints(3, b.retryCmd, b.dir)
		if keysRejected(summary) {
			fmt.Fprintf(s.output, "Every transcript API key was rejected. Add a key with:\n  %s\n", "media-harvest config add-key <key>")
		}
	default:
		fmt.Fprintf(s.output, "Done! Completed in %s\n", formatDuration(s.clock().Sub(b.started)))
	}
	return result, nil
}

// processor writes each successful result's text as a transcript file
func (s *Service) processor(fetcher Fetcher, writer *report.Writer) pipeline.ProcessFunc {
	return func(ctx context.Context, item content.Item) (content.FetchResult, error) {
		result, err := fetcher.Fetch(ctx, item)
		if err != nil || result == nil || !result.Succeeded() {
			return result, err
		}

		path, err := writer.WriteTranscript(item, content.ResultText(result))
		if err != nil {
			return nil, &content.ProcessingError{Stage: "write transcript", Err: err}
		}
		return content.WithOutputPath(result, path), nil
	}
}

func (s *Service) showRecoveryHints(failedStep int, retryCmd, dir string) {
	fmt.Fprintln(s.output)
	fmt.Fprintln(s.output, "To recover:")

	step := 1
	if failedStep <= 1 {
		fmt.Fprintf(s.output, "  %d. Check:      network access and the source identifier, then rerun\n", step)
		step++
	}
	if failedStep <= 2 && dir != "" {
		fmt.Fprintf(s.output, "  %d. Inspect:    media-harvest ledger show %q\n", step, dir)
		step++
	}
	if failedStep == 3 {
		fmt.Fprintf(s.output, "  %d. Reset:      media-harvest ledger reset-failed %q\n", step, dir)
		step++
	}
	fmt.Fprintf(s.output, "  %d. Resume:     media-harvest %s   (completed items are skipped)\n", step, retryCmd)
	fmt.Fprintln(s.output)
}

func keysRejected(summary *pipeline.Summary) bool {
	for _, r := range summary.Results {
		if f, ok := r.(content.Failure); ok && errors.Is(f.Err, content.ErrAllKeysRejected) {
			return true
		}
	}
	return false
}

func filterByDate(items []content.Item, dates content.DateRange) []content.Item {
	if dates.IsZero() {
		return items
	}
	var kept []content.Item
	for _, it := range items {
		if dates.Contains(it.PublishedAt) {
			kept = append(kept, it)
		}
	}
	return kept
}

func limitItems(items []content.Item, max int) []content.Item {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
