package nitter

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"media-harvest/domain/content"
	"media-harvest/domain/feed"
	"media-harvest/infrastructure/logger"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// minFeedBytes is the smallest body treated as a real RSS document
const minFeedBytes = 50

// Tweet types stored in item metadata
const (
	TypeOriginal = feed.TweetOriginal
	TypeRetweet  = feed.TweetRetweet
	TypeReply    = feed.TweetReply
)

var statusLink = regexp.MustCompile(`/(\w+)/status/(\d+)`)

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
	Creator     string `xml:"http://purl.org/dc/elements/1.1/ creator"`
}

// Feed implements feed.Source for one user's Nitter timeline. The RSS
// endpoint returns tweets; the HTML profile page carries the next cursor.
type Feed struct {
	baseURL         string
	username        string
	includeRetweets bool
	includeReplies  bool
	httpClient      *http.Client
	limiter         *rate.Limiter
	log             logger.Logger
}

// Option is a functional option for configuring Feed
type Option func(*Feed)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(f *Feed) {
		f.httpClient = c
	}
}

// WithRateLimit caps requests per second (0 disables limiting)
func WithRateLimit(perSecond float64) Option {
	return func(f *Feed) {
		if perSecond <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRetweets stops asking the instance to drop retweets
func WithRetweets(include bool) Option {
	return func(f *Feed) {
		f.includeRetweets = include
	}
}

// WithReplies stops asking the instance to drop replies
func WithReplies(include bool) Option {
	return func(f *Feed) {
		f.includeReplies = include
	}
}

// NewFeed creates a feed for username on the Nitter instance at baseURL
func NewFeed(baseURL, username string, log logger.Logger, opts ...Option) *Feed {
	f := &Feed{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		log:        log,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// FetchPage implements feed.Source
func (f *Feed) FetchPage(ctx context.Context, cursor string) (*feed.Page, error) {
	var params []string
	if cursor != "" {
		params = append(params, "cursor="+cursor)
	}
	if !f.includeRetweets {
		params = append(params, "e-retweets=on")
	}
	if !f.includeReplies {
		params = append(params, "e-replies=on")
	}
	endpoint := fmt.Sprintf("%s/%s/rss", f.baseURL, f.username)
	if len(params) > 0 {
		endpoint += "?" + strings.Join(params, "&")
	}

	status, body, err := f.get(ctx, endpoint, "application/rss+xml, application/xml, text/xml")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &content.NetworkError{Op: "fetch rss", StatusCode: status, Err: errors.New(http.StatusText(status))}
	}
	if len(body) < minFeedBytes {
		return nil, &content.NetworkError{Op: "fetch rss", Err: fmt.Errorf("response too short: %d bytes", len(body))}
	}

	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, &content.NetworkError{Op: "fetch rss", Err: fmt.Errorf("xml parse error: %w", err)}
	}

	// Every item is returned, typed, so that pagination counts it as seen
	// even when the caller filters it out.
	page := &feed.Page{RawSize: len(body)}
	for _, raw := range doc.Channel.Items {
		item, ok := f.toItem(raw)
		if !ok {
			continue
		}
		page.Items = append(page.Items, item)
	}
	f.log.Emit(logger.DEBUG, "parsed %d of %d rss items", len(page.Items), len(doc.Channel.Items))
	return page, nil
}

func (f *Feed) toItem(raw rssItem) (content.Item, bool) {
	m := statusLink.FindStringSubmatch(raw.Link)
	if m == nil {
		return content.Item{}, false
	}
	author, id := m[1], m[2]

	meta := map[string]any{
		feed.TweetTypeKey: Classify(raw.Creator, raw.Title, f.username),
		"creator":         strings.TrimPrefix(raw.Creator, "@"),
		"description":     raw.Description,
		"content":         CleanContent(raw.Description),
		"pub_date":        raw.PubDate,
		"guid":            raw.GUID,
	}
	item, err := content.NewItem(content.SourceTwitter, id, CleanTitle(raw.Title),
		fmt.Sprintf("https://twitter.com/%s/status/%s", author, id), ParseDate(raw.PubDate), meta)
	if err != nil {
		return content.Item{}, false
	}
	return item, true
}

// NextCursor implements feed.Source
func (f *Feed) NextCursor(ctx context.Context, cursor string) (string, bool, error) {
	endpoint := fmt.Sprintf("%s/%s", f.baseURL, f.username)
	if cursor != "" {
		endpoint += "?cursor=" + cursor
	}

	status, body, err := f.get(ctx, endpoint, "text/html")
	if err != nil {
		return "", false, err
	}
	if status == http.StatusNotFound || (status == http.StatusOK && len(strings.TrimSpace(string(body))) == 0) {
		return "", false, fmt.Errorf("%w: %s", content.ErrCursorNotFound, endpoint)
	}
	if status != http.StatusOK {
		return "", false, &content.NetworkError{Op: "fetch cursor", StatusCode: status, Err: errors.New(http.StatusText(status))}
	}

	next, ok, err := ExtractCursor(string(body))
	if err != nil {
		return "", false, &content.NetworkError{Op: "fetch cursor", Err: err}
	}
	return next, ok, nil
}

// ExtractCursor returns the first "?cursor=" link target in a profile page
func ExtractCursor(html string) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false, fmt.Errorf("failed to parse html: %w", err)
	}

	var cursor string
	doc.Find(`a[href^="?cursor="]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		cursor = strings.TrimPrefix(href, "?cursor=")
		return cursor == ""
	})
	return cursor, cursor != "", nil
}

func (f *Feed) get(ctx context.Context, endpoint, accept string) (int, []byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, &content.NetworkError{Op: "GET " + endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return resp.StatusCode, nil, &content.NetworkError{Op: "GET " + endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, body, nil
}

// Ensure Feed implements feed.Source
var _ feed.Source = (*Feed)(nil)
