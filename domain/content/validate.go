package content

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxFilenameLength bounds sanitized file names
const MaxFilenameLength = 200

// DateLayout is the accepted format for date filters
const DateLayout = "2006-01-02"

var (
	earliestDate = time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)

	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRuns       = regexp.MustCompile(`[_\s]+`)
	dateShape            = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	twitterUsername      = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)
	plainChannelName     = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	bilibiliSpaceUID     = regexp.MustCompile(`space\.bilibili\.com/(\d+)`)
	trailingUID          = regexp.MustCompile(`/(\d+)/?$`)
	bilibiliBVID         = regexp.MustCompile(`(BV[A-Za-z0-9]{10})`)
	youtubeVideoID       = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/shorts/|[?&]v=)([A-Za-z0-9_-]{11})`)
)

// SanitizeFilename makes s safe to use as a file name on every common filesystem
func SanitizeFilename(s string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(s, "_")
	sanitized = whitespaceRuns.ReplaceAllString(strings.TrimSpace(sanitized), "_")
	sanitized = strings.Trim(sanitized, "_.")
	sanitized = TruncateRunes(sanitized, MaxFilenameLength)
	if sanitized == "" {
		return "untitled"
	}
	return sanitized
}

// TruncateRunes cuts s to at most n runes without splitting a character
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n]), "_")
}

// ParseDate validates a YYYY-MM-DD date filter. The date must not be before
// 2005-01-01 and must not be after the current day.
func ParseDate(field, value string, now time.Time) (time.Time, error) {
	if !dateShape.MatchString(value) {
		return time.Time{}, &ValidationError{
			Field:      field,
			Message:    fmt.Sprintf("%q is not in YYYY-MM-DD format", value),
			Suggestion: "use a date such as 2024-01-15",
		}
	}
	d, err := time.ParseInLocation(DateLayout, value, now.Location())
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:      field,
			Message:    fmt.Sprintf("%q is not a valid calendar date", value),
			Suggestion: "use a date such as 2024-01-15",
		}
	}
	if d.Year() < earliestDate.Year() {
		return time.Time{}, &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is too early, content starts from %s", value, earliestDate.Format(DateLayout)),
		}
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if d.After(today) {
		return time.Time{}, &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is in the future, latest allowed date is %s", value, today.Format(DateLayout)),
		}
	}
	return d, nil
}

// DateRange is an inclusive day range; zero bounds are open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange validates optional start and end filters
func ParseDateRange(start, end string, now time.Time) (DateRange, error) {
	var r DateRange
	var err error
	if start != "" {
		if r.Start, err = ParseDate("start date", start, now); err != nil {
			return DateRange{}, err
		}
	}
	if end != "" {
		if r.End, err = ParseDate("end date", end, now); err != nil {
			return DateRange{}, err
		}
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return DateRange{}, &ValidationError{
			Field:   "date range",
			Message: fmt.Sprintf("end date %s is before start date %s", end, start),
		}
	}
	return r, nil
}

// Contains reports whether t falls on a day inside the range
func (r DateRange) Contains(t time.Time) bool {
	if t.IsZero() {
		return r.Start.IsZero() && r.End.IsZero()
	}
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// IsZero reports whether no bound is set
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// ValidateTwitterUsername strips a leading @ and checks the 1-15 character rule
func ValidateTwitterUsername(username string) (string, error) {
	name := strings.TrimPrefix(strings.TrimSpace(username), "@")
	if !twitterUsername.MatchString(name) {
		return "", &ValidationError{
			Field:      "username",
			Message:    fmt.Sprintf("%q is not a valid Twitter username", username),
			Suggestion: "usernames are 1-15 letters, digits or underscores",
		}
	}
	return name, nil
}

// ParseBilibiliUID accepts a numeric UID or a space.bilibili.com URL
func ParseBilibiliUID(input string) (int64, error) {
	input = strings.TrimSpace(input)
	candidate := input
	if m := bilibiliSpaceUID.FindStringSubmatch(input); m != nil {
		candidate = m[1]
	} else if m := trailingUID.FindStringSubmatch(input); m != nil {
		candidate = m[1]
	}
	uid, err := strconv.ParseInt(candidate, 10, 64)
	if err != nil || uid <= 0 {
		return 0, &ValidationError{
			Field:      "uid",
			Message:    fmt.Sprintf("cannot extract a Bilibili UID from %q", input),
			Suggestion: "pass the numeric UID or a https://space.bilibili.com/<uid> URL",
		}
	}
	return uid, nil
}

// ChannelRef identifies a YouTube channel
type ChannelRef struct {
	// Identifier is the handle (with @), custom name or channel ID
	Identifier string
	// ChannelID is set only for /channel/UC... inputs
	ChannelID string
	// VideosURL is the channel's uploads tab
	VideosURL string
}

// ParseYouTubeChannel accepts @handle, a bare handle or a channel URL
// in the /@handle, /c/name, /user/name or /channel/ID forms.
func ParseYouTubeChannel(input string) (ChannelRef, error) {
	input = strings.TrimSpace(input)
	switch {
	case strings.HasPrefix(input, "@") && len(input) > 1:
		return ChannelRef{Identifier: input, VideosURL: "https://www.youtube.com/" + input + "/videos"}, nil
	case strings.Contains(input, "youtube.com"):
		for _, form := range []string{"/@", "/c/", "/user/", "/channel/"} {
			idx := strings.Index(input, "youtube.com"+form)
			if idx < 0 {
				continue
			}
			rest := input[idx+len("youtube.com"+form):]
			if cut := strings.IndexAny(rest, "/?#"); cut >= 0 {
				rest = rest[:cut]
			}
			if rest == "" {
				break
			}
			switch form {
			case "/@":
				return ChannelRef{Identifier: "@" + rest, VideosURL: "https://www.youtube.com/@" + rest + "/videos"}, nil
			case "/channel/":
				return ChannelRef{Identifier: rest, ChannelID: rest, VideosURL: "https://www.youtube.com/channel/" + rest + "/videos"}, nil
			default:
				return ChannelRef{Identifier: rest, VideosURL: "https://www.youtube.com" + form + rest + "/videos"}, nil
			}
		}
	case plainChannelName.MatchString(input):
		return ChannelRef{Identifier: "@" + input, VideosURL: "https://www.youtube.com/@" + input + "/videos"}, nil
	}
	return ChannelRef{}, &ValidationError{
		Field:      "channel",
		Message:    fmt.Sprintf("cannot extract channel info from %q", input),
		Suggestion: "pass @handle or a https://www.youtube.com/@handle URL",
	}
}

// ExtractYouTubeVideoID returns the 11 character video ID in a watch, short or embed URL
func ExtractYouTubeVideoID(url string) (string, bool) {
	m := youtubeVideoID.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractBilibiliBVID returns the BV identifier in a Bilibili video URL
func ExtractBilibiliBVID(url string) (string, bool) {
	m := bilibiliBVID.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DetectSource guesses the platform of a single video URL
func DetectSource(url string) (Source, error) {
	switch {
	case strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be"):
		return SourceYouTube, nil
	case strings.Contains(url, "bilibili.com") || strings.Contains(url, "b23.tv"):
		return SourceBilibili, nil
	}
	return "", &ValidationError{
		Field:      "url",
		Message:    fmt.Sprintf("unsupported URL %q", url),
		Suggestion: "only YouTube and Bilibili video URLs are supported",
	}
}
