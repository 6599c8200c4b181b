//go:build integration

package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"media-harvest/application/harvest"
	"media-harvest/application/pagination"
	"media-harvest/cmd"
	"media-harvest/domain/feed"
	"media-harvest/domain/ledger"
	"media-harvest/infrastructure/ledgerstore"
	"media-harvest/infrastructure/logger"
	"media-harvest/infrastructure/nitter"
	"media-harvest/infrastructure/report"

	"github.com/cucumber/godog"
)

// fakeNitter serves RSS pages and the HTML pages that carry the next cursor
type fakeNitter struct {
	mu    sync.Mutex
	rss   map[string][]string
	html  map[string]string
	// creator per tweet ID; tweets not listed are by the timeline owner
	creators map[string]string
	calls    int
}

func (n *fakeNitter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++

	cursor := r.URL.Query().Get("cursor")
	if strings.HasSuffix(r.URL.Path, "/rss") {
		ids, ok := n.rss[cursor]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(nitterRSS(ids, n.creators)))
		return
	}
	body, ok := n.html[cursor]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write([]byte(body))
}

func nitterRSS(ids []string, creators map[string]string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/"><channel><title>demo</title>`)
	for _, id := range ids {
		creator, ok := creators[id]
		if !ok {
			creator = "demo"
		}
		fmt.Fprintf(&b, `<item><title>tweet %[1]s</title><dc:creator>@%[2]s</dc:creator>
<description>&lt;p&gt;body of %[1]s&lt;/p&gt;</description>
<pubDate>Tue, 05 Mar 2024 10:00:00 GMT</pubDate>
<guid>http://nitter.local/%[2]s/status/%[1]s#m</guid>
<link>http://nitter.local/%[2]s/status/%[1]s#m</link></item>`, id, creator)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func cursorPage(cursor string) string {
	if cursor == "" {
		return `<html><body><div class="timeline">no more</div></body></html>`
	}
	return fmt.Sprintf(`<html><body><div class="show-more"><a href="?cursor=%s">Load more</a></div></body></html>`, cursor)
}

type twitterContext struct {
	tempDir    string
	outputRoot string
	username   string
	kinds      feed.TweetKinds
	nitter     *fakeNitter
	server     *httptest.Server
	output     *bytes.Buffer
	err        error
}

var SharedTwitterContext = &twitterContext{}

func InitializeTwitterScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedTwitterContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "twitter-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.outputRoot = filepath.Join(tempDir, "out")
		testCtx.nitter = &fakeNitter{rss: map[string][]string{}, html: map[string]string{}, creators: map[string]string{}}
		testCtx.server = httptest.NewServer(testCtx.nitter)
		testCtx.output = &bytes.Buffer{}
		testCtx.kinds = feed.TweetKinds{}
		testCtx.err = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.server != nil {
			testCtx.server.Close()
		}
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		SharedTwitterContext = &twitterContext{}
		return c, nil
	})

	ctx.Step(`^a Nitter timeline for "([^"]*)" whose first page holds tweets "([^"]*)"$`, testCtx.aNitterTimelineWhoseFirstPageHolds)
	ctx.Step(`^the page after cursor "([^"]*)" holds tweets "([^"]*)"$`, testCtx.thePageAfterCursorHolds)
	ctx.Step(`^the page after cursor "([^"]*)" holds retweets "([^"]*)"$`, testCtx.thePageAfterCursorHoldsRetweets)
	ctx.Step(`^retweets are included$`, testCtx.retweetsAreIncluded)
	ctx.Step(`^the first page links to cursor "([^"]*)"$`, testCtx.theFirstPageLinksToCursor)
	ctx.Step(`^the page for cursor "([^"]*)" links to cursor "([^"]*)"$`, testCtx.thePageForCursorLinksToCursor)
	ctx.Step(`^the page for cursor "([^"]*)" has no cursor$`, testCtx.thePageForCursorHasNoCursor)
	ctx.Step(`^I collect the timeline$`, testCtx.iCollectTheTimeline)
	ctx.Step(`^I collect the timeline for "([^"]*)"$`, testCtx.iCollectTheTimelineFor)
	ctx.Step(`^the collection should succeed$`, testCtx.theCollectionShouldSucceed)
	ctx.Step(`^the collection should fail with "([^"]*)"$`, testCtx.theCollectionShouldFailWith)
	ctx.Step(`^tweets\.json should hold tweets "([^"]*)"$`, testCtx.tweetsJSONShouldHoldTweets)
	ctx.Step(`^pagination should stop because "([^"]*)"$`, testCtx.paginationShouldStopBecause)
	ctx.Step(`^the markdown file should contain "([^"]*)"$`, testCtx.theMarkdownFileShouldContain)
	ctx.Step(`^no ledger should be written for the timeline$`, testCtx.noLedgerShouldBeWritten)
}

func (t *twitterContext) dir() string {
	return filepath.Join(t.outputRoot, "twitter_"+t.username)
}

// --- Given ---

func (t *twitterContext) aNitterTimelineWhoseFirstPageHolds(username, ids string) error {
	t.username = username
	t.nitter.rss[""] = splitIDs(ids)
	return nil
}

func (t *twitterContext) thePageAfterCursorHolds(cursor, ids string) error {
	t.nitter.rss[cursor] = splitIDs(ids)
	return nil
}

func (t *twitterContext) thePageAfterCursorHoldsRetweets(cursor, ids string) error {
	t.nitter.rss[cursor] = splitIDs(ids)
	for _, id := range splitIDs(ids) {
		t.nitter.creators[id] = "someone_else"
	}
	return nil
}

func (t *twitterContext) retweetsAreIncluded() error {
	t.kinds.Retweets = true
	return nil
}

func (t *twitterContext) theFirstPageLinksToCursor(cursor string) error {
	t.nitter.html[""] = cursorPage(cursor)
	return nil
}

func (t *twitterContext) thePageForCursorLinksToCursor(cursor, next string) error {
	t.nitter.html[cursor] = cursorPage(next)
	return nil
}

func (t *twitterContext) thePageForCursorHasNoCursor(cursor string) error {
	t.nitter.html[cursor] = cursorPage("")
	return nil
}

// --- When ---

func (t *twitterContext) iCollectTheTimeline() error {
	return t.iCollectTheTimelineFor(t.username)
}

func (t *twitterContext) iCollectTheTimelineFor(username string) error {
	noLedger := func(dir string) ledger.Store {
		panic("timelines do not use a ledger")
	}
	svc := harvest.NewService(t.outputRoot, noLedger, logger.NewNop(), t.output,
		harvest.WithPagination(pagination.WithDelays(0, 0)))
	newSource := func(user string) feed.Source {
		return nitter.NewFeed(t.server.URL, user, logger.NewNop(),
			nitter.WithRetweets(t.kinds.Retweets),
			nitter.WithRateLimit(0), nitter.WithHTTPClient(t.server.Client()))
	}

	t.output.Reset()
	t.err = cmd.RunTwitterWithDependencies(context.Background(), svc, newSource,
		harvest.TwitterInput{Username: username, Kinds: t.kinds}, t.output)
	return nil
}

// --- Then ---

func (t *twitterContext) theCollectionShouldSucceed() error {
	if t.err != nil {
		return fmt.Errorf("expected collection to succeed but got: %v\noutput:\n%s", t.err, t.output.String())
	}
	return nil
}

func (t *twitterContext) theCollectionShouldFailWith(expected string) error {
	if t.err == nil {
		return fmt.Errorf("expected collection to fail with %q but it succeeded", expected)
	}
	if !strings.Contains(t.err.Error(), expected) {
		return fmt.Errorf("expected error to contain %q but got: %v", expected, t.err)
	}
	return nil
}

func (t *twitterContext) tweetsJSONShouldHoldTweets(ids string) error {
	data, err := os.ReadFile(filepath.Join(t.dir(), report.TweetsFile))
	if err != nil {
		return err
	}
	var doc struct {
		Tweets []struct {
			ID string `json:"id"`
		} `json:"tweets"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("tweets.json is not valid: %w", err)
	}
	got := make([]string, 0, len(doc.Tweets))
	for _, tw := range doc.Tweets {
		got = append(got, tw.ID)
	}
	if strings.Join(got, ",") != strings.Join(splitIDs(ids), ",") {
		return fmt.Errorf("expected tweets %q, got %v", ids, got)
	}
	return nil
}

func (t *twitterContext) paginationShouldStopBecause(reason string) error {
	if !strings.Contains(t.output.String(), "("+reason+")") {
		return fmt.Errorf("expected stop reason %q in output:\n%s", reason, t.output.String())
	}
	return nil
}

func (t *twitterContext) theMarkdownFileShouldContain(expected string) error {
	data, err := os.ReadFile(filepath.Join(t.dir(), report.TweetsMarkdownFile(t.username)))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("expected markdown to contain %q, got:\n%s", expected, data)
	}
	return nil
}

func (t *twitterContext) noLedgerShouldBeWritten() error {
	if _, err := os.Stat(filepath.Join(t.dir(), ledgerstore.FileName)); err == nil {
		return fmt.Errorf("timeline collection wrote a ledger")
	}
	return nil
}
