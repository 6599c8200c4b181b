package nitter

import (
	"regexp"
	"strings"
	"time"
)

var (
	replyPrefix = regexp.MustCompile(`^R to @\w+:\s*`)
	htmlTag     = regexp.MustCompile(`<[^>]+>`)
	nitterLink  = regexp.MustCompile(`https?://[^\s"<>]+?/(\w+)/status/(\d+)(?:#m)?`)
	entities    = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", `"`, "&#39;", "'")
)

// Classify returns TypeRetweet when the creator is not the timeline owner,
// TypeReply for "R to @" titles and TypeOriginal otherwise
func Classify(creator, title, username string) string {
	creator = strings.TrimPrefix(creator, "@")
	switch {
	case creator != "" && !strings.EqualFold(creator, username):
		return TypeRetweet
	case strings.HasPrefix(title, "R to @"):
		return TypeReply
	}
	return TypeOriginal
}

// ParseDate reads an RSS pubDate; the zero time means unknown
func ParseDate(s string) time.Time {
	for _, layout := range []string{time.RFC1123, time.RFC1123Z, "Mon, 02 Jan 2006 15:04:05"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// CleanTitle decodes entities and drops the reply prefix
func CleanTitle(title string) string {
	return strings.TrimSpace(replyPrefix.ReplaceAllString(entities.Replace(title), ""))
}

// CleanContent strips markup from a tweet description and points status
// links at twitter.com instead of the Nitter instance
func CleanContent(description string) string {
	cleaned := strings.TrimSpace(htmlTag.ReplaceAllString(description, ""))
	cleaned = entities.Replace(cleaned)
	cleaned = nitterLink.ReplaceAllString(cleaned, "https://twitter.com/$1/status/$2")
	return replyPrefix.ReplaceAllString(cleaned, "")
}
