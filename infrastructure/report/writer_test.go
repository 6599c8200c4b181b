package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-harvest/application/pipeline"
	"media-harvest/domain/content"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	return NewWriter(t.TempDir(), WithClock(func() time.Time { return fixedNow }))
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestWriteSnapshot(t *testing.T) {
	w := newTestWriter(t)
	items := []content.Item{{ID: "a", Title: "Café <b>", URL: "https://x/a", Source: content.SourceYouTube}}

	path, err := w.WriteSnapshot(VideoListFile, "channel_info", map[string]any{"name": "chan"}, "videos", items)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Dir(), VideoListFile), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Café <b>", "output should stay human readable")

	doc := readJSON(t, path)
	assert.Equal(t, "2024-06-01T08:30:00Z", doc["generated_at"])
	assert.Equal(t, "chan", doc["channel_info"].(map[string]any)["name"])
	assert.Len(t, doc["videos"], 1)
}

func TestWriteSnapshot_EmptyListIsArray(t *testing.T) {
	w := newTestWriter(t)
	path, err := w.WriteSnapshot(TweetsFile, "user_info", nil, "tweets", nil)
	require.NoError(t, err)

	doc := readJSON(t, path)
	assert.Equal(t, []any{}, doc["tweets"])
}

func TestWriteSummary(t *testing.T) {
	w := newTestWriter(t)
	item := content.Item{ID: "v1", Title: "One", URL: "u1"}
	summary := &pipeline.Summary{
		Stats: pipeline.RunStats{Attempted: 2, Successful: 1, Failed: 1, TotalCompleted: 4, TotalFailed: 1},
		Results: []content.FetchResult{
			content.TranscriptSuccess{Item: item, Source: "supadata", Language: "en", OutputPath: "/out/v1.txt"},
			content.Failure{Item: content.Item{ID: "v2"}, Err: errors.New("all methods exhausted")},
		},
	}

	path, err := w.WriteSummary("user_info", map[string]any{"uid": 7}, summary)
	require.NoError(t, err)

	doc := readJSON(t, path)
	assert.Equal(t, true, doc["success"], "isolated item failures still complete the run")
	stats := doc["run_stats"].(map[string]any)
	assert.Equal(t, float64(2), stats["attempted"])
	assert.Equal(t, float64(4), stats["total_completed"])

	results := doc["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, "transcript", first["kind"])
	assert.Equal(t, "supadata", first["source"])
	second := results[1].(map[string]any)
	assert.Equal(t, "failure", second["kind"])
	assert.Equal(t, "all methods exhausted", second["error"])
}

func TestWriteSummary_SuccessFlag(t *testing.T) {
	tests := []struct {
		name    string
		summary pipeline.Summary
		want    bool
	}{
		{name: "partial failures", summary: pipeline.Summary{Stats: pipeline.RunStats{Attempted: 4, Successful: 3, Failed: 1}}, want: true},
		{name: "all failed", summary: pipeline.Summary{Stats: pipeline.RunStats{Attempted: 2, Failed: 2}}, want: true},
		{name: "interrupted", summary: pipeline.Summary{Stats: pipeline.RunStats{Attempted: 1, Successful: 1}, Interrupted: true}, want: false},
		{name: "ledger save failed", summary: pipeline.Summary{Stats: pipeline.RunStats{Attempted: 1, Successful: 1}, Aborted: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWriter(t)
			path, err := w.WriteSummary("channel_info", nil, &tt.summary)
			require.NoError(t, err)

			doc := readJSON(t, path)
			assert.Equal(t, tt.want, doc["success"])
		})
	}
}

func TestWriteTranscript(t *testing.T) {
	w := newTestWriter(t)
	item := content.Item{ID: "BV1xx411c7mD", Title: "a/b", PublishedAt: fixedNow}

	path, err := w.WriteTranscript(item, "hello")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Dir(), TranscriptsDir, "2024-06-01_a_b [BV1xx411c7mD].txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(filepath.Join(w.Dir(), TranscriptsDir))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files should remain")
}

func TestWriteTweetsMarkdown(t *testing.T) {
	w := newTestWriter(t)
	tweets := []content.Item{
		{ID: "1", Title: "hi", URL: "https://twitter.com/jack/status/1", PublishedAt: fixedNow,
			Metadata: map[string]any{"tweet_type": "original", "content": "hello world"}},
		{ID: "2", Title: "rt", URL: "https://twitter.com/bob/status/2",
			Metadata: map[string]any{"tweet_type": "retweet", "creator": "bob"}},
	}

	path, err := w.WriteTweetsMarkdown("jack", tweets)
	require.NoError(t, err)
	assert.Equal(t, "jack_tweets.md", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	md := string(data)
	assert.True(t, strings.HasPrefix(md, "# @jack Tweet Collection"))
	assert.Contains(t, md, "**Total Tweets**: 2")
	assert.Contains(t, md, "## Tweet #1")
	assert.Contains(t, md, "hello world")
	assert.Contains(t, md, "**Type**: retweet of @bob")
	assert.Contains(t, md, "**Original**: https://twitter.com/bob/status/2")
	assert.Contains(t, md, "\nrt\n", "title is the fallback body")
}
