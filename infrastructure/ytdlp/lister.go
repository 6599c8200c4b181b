package ytdlp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"media-harvest/domain/content"
)

// listFormat is the --print template parsed by parseListing
const listFormat = "%(id)s|%(title)s|%(upload_date)s"

// Lister lists a channel's uploads with a flat playlist extraction
type Lister struct {
	client *Client
}

// NewLister creates a channel lister
func NewLister(client *Client) *Lister {
	return &Lister{client: client}
}

// ListChannel returns up to max uploads (0 for all), newest first
func (l *Lister) ListChannel(ctx context.Context, ref content.ChannelRef, max int) ([]content.Item, error) {
	cmd := l.client.command().
		FlatPlaylist().
		Print(listFormat)
	if max > 0 {
		cmd.PlaylistItems(fmt.Sprintf("1:%d", max))
	}

	result, err := l.client.run(ctx, cmd, ref.VideosURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", ref.Identifier, err)
	}

	items := parseListing(result.Stdout)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: channel %s", content.ErrNoItems, ref.Identifier)
	}
	return items, nil
}

// parseListing turns "id|title|yyyymmdd" lines into items. Titles may contain
// '|', so the id is taken from the front and the date from the back.
func parseListing(out string) []content.Item {
	var items []content.Item
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		first := strings.Index(line, "|")
		last := strings.LastIndex(line, "|")
		if first <= 0 || first == last {
			continue
		}
		id := line[:first]
		title := line[first+1 : last]
		date := line[last+1:]

		var published time.Time
		if t, err := time.Parse("20060102", date); err == nil {
			published = t
		}

		item, err := content.NewItem(content.SourceYouTube, id, title, "https://www.youtube.com/watch?v="+id, published, nil)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}
