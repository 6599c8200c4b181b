package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"media-harvest/domain/content"
)

// TweetsMarkdownFile returns the markdown file name for a user
func TweetsMarkdownFile(username string) string {
	return username + "_tweets.md"
}

// WriteTweetsMarkdown renders tweets as a readable collection. Items are
// expected to carry the tweet_type, creator and content metadata set by the
// Nitter feed.
func (w *Writer) WriteTweetsMarkdown(username string, tweets []content.Item) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# @%s Tweet Collection\n\n", username)
	fmt.Fprintf(&b, "**Fetch Time**: %s\n", w.clock().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Total Tweets**: %d\n", len(tweets))
	b.WriteString("**Data Source**: Nitter RSS\n\n---\n\n")

	for i, t := range tweets {
		fmt.Fprintf(&b, "## Tweet #%d\n\n", i+1)
		if !t.PublishedAt.IsZero() {
			fmt.Fprintf(&b, "**Published**: %s\n", t.PublishedAt.Format("2006-01-02 15:04:05 MST"))
		}

		switch metaString(t, "tweet_type") {
		case "retweet":
			fmt.Fprintf(&b, "**Type**: retweet of @%s\n", metaString(t, "creator"))
			fmt.Fprintf(&b, "**Original**: %s\n", t.URL)
		case "reply":
			b.WriteString("**Type**: reply\n")
			fmt.Fprintf(&b, "**Link**: %s\n", t.URL)
		default:
			fmt.Fprintf(&b, "**Link**: %s\n", t.URL)
		}
		b.WriteString("\n")

		body := metaString(t, "content")
		if body == "" {
			body = t.Title
		}
		b.WriteString(body)
		b.WriteString("\n\n---\n\n")
	}

	path := filepath.Join(w.dir, TweetsMarkdownFile(username))
	if err := writeAtomic(path, []byte(b.String())); err != nil {
		return "", fmt.Errorf("failed to write markdown: %w", err)
	}
	return path, nil
}

func metaString(item content.Item, key string) string {
	s, _ := item.Metadata[key].(string)
	return s
}
