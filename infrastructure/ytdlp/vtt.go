package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"media-harvest/domain/content"
)

var (
	cueTiming = regexp.MustCompile(`^((?:\d+:)?\d{2}:\d{2}\.\d{3})\s+-->\s+((?:\d+:)?\d{2}:\d{2}\.\d{3})`)
	inlineTag = regexp.MustCompile(`<[^>]*>`)
)

// ParseVTT extracts cue text from a WebVTT document. Auto-generated captions
// repeat the previous line in every cue; consecutive duplicates are dropped.
func ParseVTT(data string) []content.Segment {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	blocks := strings.Split(data, "\n\n")

	var (
		segments []content.Segment
		lastLine string
	)
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		timing := -1
		for i, l := range lines {
			if cueTiming.MatchString(l) {
				timing = i
				break
			}
		}
		if timing < 0 {
			// header, NOTE, STYLE or REGION block
			continue
		}

		m := cueTiming.FindStringSubmatch(lines[timing])
		start, end := parseTimestamp(m[1]), parseTimestamp(m[2])

		var texts []string
		for _, l := range lines[timing+1:] {
			l = strings.TrimSpace(unescape(inlineTag.ReplaceAllString(l, "")))
			if l == "" || l == lastLine {
				continue
			}
			texts = append(texts, l)
			lastLine = l
		}
		if len(texts) == 0 {
			continue
		}
		segments = append(segments, content.Segment{
			Text:     strings.Join(texts, " "),
			Offset:   start,
			Duration: end - start,
		})
	}
	return segments
}

func unescape(s string) string {
	return strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&nbsp;", " ", "&quot;", `"`, "&#39;", "'").Replace(s)
}

// parseTimestamp reads [hh:]mm:ss.mmm
func parseTimestamp(s string) time.Duration {
	parts := strings.Split(s, ":")
	var d time.Duration
	for i, p := range parts {
		if i == len(parts)-1 {
			secs, _ := strconv.ParseFloat(p, 64)
			d += time.Duration(secs * float64(time.Second))
			continue
		}
		n, _ := strconv.Atoi(p)
		unit := time.Minute
		if len(parts)-i == 3 {
			unit = time.Hour
		}
		d += time.Duration(n) * unit
	}
	return d.Round(time.Millisecond)
}

// JoinSegments renders segments as plain text, one cue per line
func JoinSegments(segments []content.Segment) string {
	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		texts = append(texts, s.Text)
	}
	return strings.Join(texts, "\n")
}
