package content

import (
	"time"
)

// Source identifies the platform an item was listed from
type Source string

const (
	SourceYouTube  Source = "youtube"
	SourceBilibili Source = "bilibili"
	SourceTwitter  Source = "twitter"
)

// Item is one unit of content to acquire. It is created once during listing
// and never modified afterwards; ID is the dedup and resume key.
type Item struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	PublishedAt time.Time      `json:"published_at,omitempty"`
	Source      Source         `json:"source"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewItem validates the required fields and returns an Item that owns a copy
// of the metadata map.
func NewItem(source Source, id, title, url string, publishedAt time.Time, metadata map[string]any) (Item, error) {
	if id == "" {
		return Item{}, &ValidationError{Field: "item id", Message: "item id is required"}
	}
	if url == "" {
		return Item{}, &ValidationError{Field: "item url", Message: "item url is required for " + id}
	}

	var meta map[string]any
	if len(metadata) > 0 {
		meta = make(map[string]any, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
	}

	return Item{
		ID:          id,
		Title:       title,
		URL:         url,
		PublishedAt: publishedAt,
		Source:      source,
		Metadata:    meta,
	}, nil
}

// PublishedDate returns the publish date as YYYY-MM-DD, or "" when unknown
func (i Item) PublishedDate() string {
	if i.PublishedAt.IsZero() {
		return ""
	}
	return i.PublishedAt.Format("2006-01-02")
}

// DisplayTitle falls back to the ID for untitled items
func (i Item) DisplayTitle() string {
	if i.Title == "" {
		return i.ID
	}
	return i.Title
}

// TranscriptFilename is the per-item output file name, "<date>_<title> [<id>].txt".
func (i Item) TranscriptFilename() string {
	name := SanitizeFilename(i.DisplayTitle())
	if date := i.PublishedDate(); date != "" {
		name = date + "_" + name
	}
	return TruncateRunes(name, MaxFilenameLength-len(i.ID)-7) + " [" + i.ID + "].txt"
}
