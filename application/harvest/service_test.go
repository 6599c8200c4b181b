package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-harvest/application/pagination"
	"media-harvest/domain/content"
	"media-harvest/domain/feed"
	"media-harvest/domain/ledger"
	"media-harvest/infrastructure/bilibili"
	"media-harvest/infrastructure/logger"
	"media-harvest/infrastructure/report"
)

// --- Mock implementations for testing ---

// memoryLedgers keeps one in-memory store per output directory
type memoryLedgers struct {
	stores  map[string]*memoryStore
	loadErr error
}

func (m *memoryLedgers) open(dir string) ledger.Store {
	if m.stores == nil {
		m.stores = make(map[string]*memoryStore)
	}
	st, ok := m.stores[dir]
	if !ok {
		st = &memoryStore{status: ledger.NewStatus(), loadErr: m.loadErr}
		m.stores[dir] = st
	}
	return st
}

type memoryStore struct {
	status  *ledger.Status
	loadErr error
}

func (m *memoryStore) Load() (*ledger.Status, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.status, nil
}

func (m *memoryStore) Save(status *ledger.Status) error {
	m.status = ledger.Reconcile(status)
	return nil
}

// mockFetcher succeeds unless the item ID has an error configured
type mockFetcher struct {
	failures map[string]error
	calls    []string
}

func (m *mockFetcher) Fetch(ctx context.Context, item content.Item) (content.FetchResult, error) {
	m.calls = append(m.calls, item.ID)
	if err, ok := m.failures[item.ID]; ok {
		return content.Failure{Item: item, Err: err}, nil
	}
	return content.TranscriptSuccess{Item: item, Source: "mock", Text: "text of " + item.ID}, nil
}

type mockChannelLister struct {
	items   []content.Item
	err     error
	refs    []content.ChannelRef
	maxSeen []int
}

func (m *mockChannelLister) ListChannel(ctx context.Context, ref content.ChannelRef, max int) ([]content.Item, error) {
	m.refs = append(m.refs, ref)
	m.maxSeen = append(m.maxSeen, max)
	return m.items, m.err
}

type mockSpaceLister struct {
	user  bilibili.UserInfo
	items []content.Item
	opts  []bilibili.ListOptions
}

func (m *mockSpaceLister) UserInfo(ctx context.Context, uid int64) bilibili.UserInfo {
	return m.user
}

func (m *mockSpaceLister) ListVideos(ctx context.Context, uid int64, opts bilibili.ListOptions) ([]content.Item, error) {
	m.opts = append(m.opts, opts)
	return m.items, nil
}

// singlePageSource serves one page and no cursor
type singlePageSource struct {
	items []content.Item
}

func (s *singlePageSource) FetchPage(ctx context.Context, cursor string) (*feed.Page, error) {
	return &feed.Page{Items: s.items}, nil
}

func (s *singlePageSource) NextCursor(ctx context.Context, cursor string) (string, bool, error) {
	return "", false, nil
}

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, d time.Duration) error { return nil }

var testNow = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

func videos(source content.Source, ids ...string) []content.Item {
	var items []content.Item
	for i, id := range ids {
		items = append(items, content.Item{
			ID:          id,
			Title:       "Video " + id,
			URL:         "https://example.com/" + id,
			Source:      source,
			PublishedAt: testNow.AddDate(0, 0, -i),
		})
	}
	return items
}

func newTestService(t *testing.T, ledgers *memoryLedgers) (*Service, *bytes.Buffer, string) {
	t.Helper()
	root := t.TempDir()
	var out bytes.Buffer
	svc := NewService(root, ledgers.open, logger.NewNop(), &out,
		WithClock(func() time.Time { return testNow }),
		WithPagination(pagination.WithSleeper(noSleep{})))
	return svc, &out, root
}

func TestHarvestYouTube_ResumesAndRecordsFailures(t *testing.T) {
	ledgers := &memoryLedgers{}
	svc, out, root := newTestService(t, ledgers)
	dir := filepath.Join(root, "youtube_golang")
	ledgers.open(dir).(*memoryStore).status.MarkCompleted("a")

	lister := &mockChannelLister{items: videos(content.SourceYouTube, "a", "b", "c")}
	fetcher := &mockFetcher{failures: map[string]error{"b": errors.New("all methods exhausted")}}

	result, err := svc.HarvestYouTube(context.Background(), YouTubeInput{Channel: "@golang"}, lister, fetcher)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.OutputDir != dir {
		t.Errorf("expected output dir %s, got %s", dir, result.OutputDir)
	}
	if got := strings.Join(fetcher.calls, ","); got != "b,c" {
		t.Errorf("expected only b and c to be fetched, got %s", got)
	}
	st := result.Summary.Stats
	if st.Attempted != 2 || st.Successful != 1 || st.Failed != 1 || st.Skipped != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.TotalCompleted != 2 || st.TotalFailed != 1 {
		t.Errorf("unexpected ledger totals: %+v", st)
	}

	for _, name := range []string{report.VideoListFile, report.SummaryFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to be written: %v", name, err)
		}
	}
	transcripts, _ := os.ReadDir(filepath.Join(dir, report.TranscriptsDir))
	if len(transcripts) != 1 {
		t.Errorf("expected one transcript file, got %d", len(transcripts))
	}

	output := out.String()
	for _, want := range []string{"[1/3] Listing videos", "[2/3] Processing videos", "ledger reset-failed", "media-harvest youtube @golang"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestHarvestYouTube_DateFilterAndMax(t *testing.T) {
	svc, _, _ := newTestService(t, &memoryLedgers{})
	lister := &mockChannelLister{items: videos(content.SourceYouTube, "a", "b", "c", "d")}
	fetcher := &mockFetcher{}

	result, err := svc.HarvestYouTube(context.Background(),
		YouTubeInput{Channel: "golang", StartDate: "2024-06-08", MaxVideos: 2}, lister, fetcher)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lister.maxSeen[0] != 0 {
		t.Errorf("expected full listing when a date filter is set, got max %d", lister.maxSeen[0])
	}
	if result.Listed != 2 {
		t.Errorf("expected 2 items after filtering, got %d", result.Listed)
	}
	if got := strings.Join(fetcher.calls, ","); got != "a,b" {
		t.Errorf("expected newest two items, got %s", got)
	}
}

func TestHarvestYouTube_EmptyChannelMessage(t *testing.T) {
	svc, _, _ := newTestService(t, &memoryLedgers{})
	// published two days before the start date
	lister := &mockChannelLister{items: videos(content.SourceYouTube, "a", "b", "c")[2:]}

	_, err := svc.HarvestYouTube(context.Background(), YouTubeInput{Channel: "@x", StartDate: "2024-06-10"}, lister, &mockFetcher{})
	if !errors.Is(err, content.ErrNoItems) || !strings.Contains(err.Error(), "on or after 2024-06-10") {
		t.Errorf("expected date in error, got %v", err)
	}

	lister.items = nil
	_, err = svc.HarvestYouTube(context.Background(), YouTubeInput{Channel: "@x"}, lister, &mockFetcher{})
	if !errors.Is(err, content.ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
	if strings.Contains(err.Error(), "on or after") {
		t.Errorf("no date was given, got %v", err)
	}
}

func TestHarvestYouTube_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input YouTubeInput
	}{
		{name: "bad channel", input: YouTubeInput{Channel: "not a channel!"}},
		{name: "future date", input: YouTubeInput{Channel: "@x", StartDate: "2030-01-01"}},
		{name: "bad date", input: YouTubeInput{Channel: "@x", StartDate: "01/02/2024"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t, &memoryLedgers{})
			lister := &mockChannelLister{}
			_, err := svc.HarvestYouTube(context.Background(), tt.input, lister, &mockFetcher{})

			var ve *content.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(lister.refs) != 0 {
				t.Error("lister should not be called for invalid input")
			}
		})
	}
}

func TestHarvestYouTube_CorruptLedgerStopsRun(t *testing.T) {
	corrupt := &content.LedgerCorruptionError{Path: "processing_status.json", Err: errors.New("bad json")}
	svc, _, _ := newTestService(t, &memoryLedgers{loadErr: corrupt})
	fetcher := &mockFetcher{}

	_, err := svc.HarvestYouTube(context.Background(), YouTubeInput{Channel: "@x"},
		&mockChannelLister{items: videos(content.SourceYouTube, "a")}, fetcher)

	var lce *content.LedgerCorruptionError
	if !errors.As(err, &lce) {
		t.Fatalf("expected LedgerCorruptionError, got %v", err)
	}
	if len(fetcher.calls) != 0 {
		t.Error("no item should be processed with a corrupt ledger")
	}
}

func TestHarvestYouTube_SuggestsKeysWhenRejected(t *testing.T) {
	svc, out, _ := newTestService(t, &memoryLedgers{})
	rejected := fmt.Errorf("%w: %w", content.ErrAllMethodsExhausted, content.ErrAllKeysRejected)
	fetcher := &mockFetcher{failures: map[string]error{"a": rejected}}

	_, err := svc.HarvestYouTube(context.Background(), YouTubeInput{Channel: "@x"},
		&mockChannelLister{items: videos(content.SourceYouTube, "a")}, fetcher)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "config add-key") {
		t.Errorf("expected add-key hint, got:\n%s", out.String())
	}
}

func TestHarvestBilibili(t *testing.T) {
	svc, out, root := newTestService(t, &memoryLedgers{})
	lister := &mockSpaceLister{
		user:  bilibili.UserInfo{UID: 42, Name: "Up Zhu", Follower: 10},
		items: videos(content.SourceBilibili, "BV1aaaaaaaaa"),
	}

	result, err := svc.HarvestBilibili(context.Background(),
		BilibiliInput{User: "https://space.bilibili.com/42", StartDate: "2024-01-01", MaxVideos: 5}, lister, &mockFetcher{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := filepath.Join(root, "Up_Zhu_42"); result.OutputDir != want {
		t.Errorf("expected %s, got %s", want, result.OutputDir)
	}
	opts := lister.opts[0]
	if opts.MaxVideos != 5 || opts.Since.Format(content.DateLayout) != "2024-01-01" {
		t.Errorf("unexpected list options: %+v", opts)
	}
	if !strings.Contains(out.String(), "Done!") {
		t.Errorf("expected completion message, got:\n%s", out.String())
	}
}

func TestHarvestTwitter(t *testing.T) {
	svc, _, root := newTestService(t, &memoryLedgers{})
	tweets := videos(content.SourceTwitter, "3", "2", "1")
	var requested string

	result, err := svc.HarvestTwitter(context.Background(),
		TwitterInput{Username: "@jack", StartDate: "2024-06-09"},
		func(username string) feed.Source {
			requested = username
			return &singlePageSource{items: tweets}
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if requested != "jack" {
		t.Errorf("expected username without @, got %q", requested)
	}
	if result.Listed != 2 {
		t.Errorf("expected 2 tweets inside the date range, got %d", result.Listed)
	}
	if result.Pagination.StopReason != pagination.StopNoCursor {
		t.Errorf("unexpected stop reason %s", result.Pagination.StopReason)
	}
	if result.Summary != nil {
		t.Error("tweets are not run through the pipeline")
	}
	for _, name := range []string{report.TweetsFile, "jack_tweets.md"} {
		if _, err := os.Stat(filepath.Join(root, "twitter_jack", name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

// pagedSource serves pages keyed by cursor and links them in order
type pagedSource struct {
	pages   map[string][]content.Item
	cursors map[string]string
}

func (s *pagedSource) FetchPage(ctx context.Context, cursor string) (*feed.Page, error) {
	return &feed.Page{Items: s.pages[cursor]}, nil
}

func (s *pagedSource) NextCursor(ctx context.Context, cursor string) (string, bool, error) {
	next, ok := s.cursors[cursor]
	return next, ok, nil
}

func tweetsOfType(tweetType string, ids ...string) []content.Item {
	items := videos(content.SourceTwitter, ids...)
	for i := range items {
		items[i].Metadata = map[string]any{feed.TweetTypeKey: tweetType}
	}
	return items
}

func TestHarvestTwitter_RetweetPageDoesNotEndTimeline(t *testing.T) {
	source := &pagedSource{
		pages: map[string][]content.Item{
			"":   tweetsOfType(feed.TweetOriginal, "1", "2"),
			"c1": tweetsOfType(feed.TweetRetweet, "10", "11"),
			"c2": tweetsOfType(feed.TweetOriginal, "3", "4"),
		},
		cursors: map[string]string{"": "c1", "c1": "c2"},
	}

	tests := []struct {
		name  string
		kinds feed.TweetKinds
		want  string
	}{
		{name: "retweets excluded", want: "1,2,3,4"},
		{name: "retweets included", kinds: feed.TweetKinds{Retweets: true}, want: "1,2,10,11,3,4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t, &memoryLedgers{})
			result, err := svc.HarvestTwitter(context.Background(),
				TwitterInput{Username: "jack", Kinds: tt.kinds},
				func(string) feed.Source { return source })
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var ids []string
			for _, it := range result.Pagination.Items {
				ids = append(ids, it.ID)
			}
			if got := strings.Join(ids, ","); got != tt.want {
				t.Errorf("expected tweets %s, got %s", tt.want, got)
			}
			if result.Pagination.Pages != 3 {
				t.Errorf("expected 3 pages, got %d", result.Pagination.Pages)
			}
			if result.Pagination.StopReason != pagination.StopNoCursor {
				t.Errorf("unexpected stop reason %s", result.Pagination.StopReason)
			}
		})
	}
}

func TestHarvestTwitter_NothingMatchesFilter(t *testing.T) {
	svc, _, root := newTestService(t, &memoryLedgers{})
	// published two days before the start date
	old := tweetsOfType(feed.TweetOriginal, "a", "b", "c")[2:]
	_, err := svc.HarvestTwitter(context.Background(),
		TwitterInput{Username: "jack", StartDate: "2024-06-10"},
		func(string) feed.Source { return &singlePageSource{items: old} })
	if !errors.Is(err, content.ErrNoItems) {
		t.Fatalf("expected ErrNoItems for tweets outside the range, got %v", err)
	}

	_, err = svc.HarvestTwitter(context.Background(),
		TwitterInput{Username: "jack"},
		func(string) feed.Source { return &singlePageSource{items: tweetsOfType(feed.TweetReply, "5", "6")} })
	if !errors.Is(err, content.ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
	if !strings.Contains(err.Error(), "no tweets found matching filter criteria") {
		t.Errorf("unexpected message: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(root, "twitter_jack", report.TweetsFile)); statErr == nil {
		t.Error("no tweets file should be written when nothing matches")
	}
}

func TestHarvestTwitter_InvalidUsername(t *testing.T) {
	svc, _, _ := newTestService(t, &memoryLedgers{})
	_, err := svc.HarvestTwitter(context.Background(), TwitterInput{Username: "this_name_is_too_long"},
		func(string) feed.Source { t.Fatal("source should not be created"); return nil })

	var ve *content.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestHarvestVideo(t *testing.T) {
	svc, _, root := newTestService(t, &memoryLedgers{})
	yt := &mockFetcher{}

	result, err := svc.HarvestVideo(context.Background(),
		VideoInput{URL: "https://youtu.be/dQw4w9WgXcQ"}, map[content.Source]Fetcher{content.SourceYouTube: yt})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ts, ok := result.(content.TranscriptSuccess)
	if !ok {
		t.Fatalf("expected TranscriptSuccess, got %T", result)
	}
	if want := filepath.Join(root, report.TranscriptsDir, "dQw4w9WgXcQ [dQw4w9WgXcQ].txt"); ts.OutputPath != want {
		t.Errorf("expected %s, got %s", want, ts.OutputPath)
	}
}

func TestHarvestVideo_Failures(t *testing.T) {
	svc, _, _ := newTestService(t, &memoryLedgers{})

	_, err := svc.HarvestVideo(context.Background(), VideoInput{URL: "https://vimeo.com/1"}, nil)
	var ve *content.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for unsupported URL, got %v", err)
	}

	failing := &mockFetcher{failures: map[string]error{"BV1xx411c7mD": content.ErrAllMethodsExhausted}}
	_, err = svc.HarvestVideo(context.Background(), VideoInput{URL: "https://www.bilibili.com/video/BV1xx411c7mD"},
		map[content.Source]Fetcher{content.SourceBilibili: failing})
	if !errors.Is(err, content.ErrAllMethodsExhausted) {
		t.Errorf("expected exhausted error, got %v", err)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{d: 5 * time.Second, want: "5s"},
		{d: 125 * time.Second, want: "2m 5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
