package feed

import (
	"context"

	"media-harvest/domain/content"
)

// Page is one page of a cursor-paginated feed
type Page struct {
	Items []content.Item
	// RawSize is the payload length, kept for diagnostics
	RawSize int
}

// Source is a two-endpoint feed: FetchPage returns items for a cursor (empty for
// the first page) and NextCursor asks the companion endpoint for the token that
// follows cursor. NextCursor returns ok=false when no further cursor is present
// and content.ErrCursorNotFound when the companion page does not exist.
type Source interface {
	FetchPage(ctx context.Context, cursor string) (*Page, error)
	NextCursor(ctx context.Context, cursor string) (next string, ok bool, err error)
}

// CursorState tracks one pagination run. It is never persisted.
type CursorState struct {
	Cursor    string
	HasCursor bool
	SeenIDs   map[string]struct{}
}

// NewCursorState returns a state positioned before the first page
func NewCursorState() *CursorState {
	return &CursorState{SeenIDs: make(map[string]struct{})}
}

// Admit records the IDs of items and returns those not seen before, in order
func (s *CursorState) Admit(items []content.Item) []content.Item {
	var fresh []content.Item
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if _, seen := s.SeenIDs[it.ID]; seen {
			continue
		}
		s.SeenIDs[it.ID] = struct{}{}
		fresh = append(fresh, it)
	}
	return fresh
}

// Tweet types stored in Item metadata under TweetTypeKey
const (
	TweetTypeKey  = "tweet_type"
	TweetOriginal = "original"
	TweetRetweet  = "retweet"
	TweetReply    = "reply"
)

// TweetKinds selects which tweet types a timeline keeps besides originals
type TweetKinds struct {
	Retweets bool
	Replies  bool
}

// Keep reports whether it is a kept tweet type. Untyped items are kept.
func (k TweetKinds) Keep(it content.Item) bool {
	switch it.Metadata[TweetTypeKey] {
	case TweetRetweet:
		return k.Retweets
	case TweetReply:
		return k.Replies
	}
	return true
}
