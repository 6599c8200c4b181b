package youtubeapi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"media-harvest/domain/content"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// maxPageSize is the largest page playlistItems.list accepts
const maxPageSize = 50

// ErrNoCredentials is returned when neither an API key nor a credentials file is configured
var ErrNoCredentials = errors.New("youtube data api needs an api key or a service account credentials file")

// ChannelService defines the YouTube Data API calls the lister needs.
// This allows mocking the API in tests
type ChannelService interface {
	FindChannel(ctx context.Context, ref content.ChannelRef) (*youtube.Channel, error)
	ListUploads(ctx context.Context, playlistID, pageToken string, pageSize int64) (*youtube.PlaylistItemListResponse, error)
}

// GoogleYouTubeService is the production implementation using the YouTube Data API
type GoogleYouTubeService struct {
	service *youtube.Service
}

// FindChannel resolves a channel by ID, handle or legacy username
func (s *GoogleYouTubeService) FindChannel(ctx context.Context, ref content.ChannelRef) (*youtube.Channel, error) {
	parts := []string{"snippet", "contentDetails"}
	var calls []*youtube.ChannelsListCall
	switch {
	case ref.ChannelID != "":
		calls = append(calls, s.service.Channels.List(parts).Id(ref.ChannelID))
	case strings.HasPrefix(ref.Identifier, "@"):
		calls = append(calls, s.service.Channels.List(parts).ForHandle(ref.Identifier))
	default:
		calls = append(calls,
			s.service.Channels.List(parts).ForUsername(ref.Identifier),
			s.service.Channels.List(parts).ForHandle("@"+ref.Identifier))
	}

	for _, call := range calls {
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if len(resp.Items) > 0 {
			return resp.Items[0], nil
		}
	}
	return nil, fmt.Errorf("%w: channel %s", content.ErrNoItems, ref.Identifier)
}

// ListUploads returns one page of a playlist
func (s *GoogleYouTubeService) ListUploads(ctx context.Context, playlistID, pageToken string, pageSize int64) (*youtube.PlaylistItemListResponse, error) {
	call := s.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(pageSize).
		Fields(googleapi.Field("nextPageToken,items(snippet(title,description),contentDetails(videoId,videoPublishedAt))"))
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Context(ctx).Do()
}

// Lister lists channel uploads through the Data API
type Lister struct {
	service ChannelService
}

// Option is a functional option for configuring Lister
type Option func(*Lister)

// WithChannelService sets a custom service (for testing)
func WithChannelService(svc ChannelService) Option {
	return func(l *Lister) {
		l.service = svc
	}
}

// NewLister creates a Data API lister. Without a custom service it
// authenticates with apiKey, or with a service account from credentialsPath.
func NewLister(ctx context.Context, apiKey, credentialsPath string, opts ...Option) (*Lister, error) {
	l := &Lister{}

	for _, opt := range opts {
		opt(l)
	}

	if l.service == nil {
		svc, err := newGoogleYouTubeService(ctx, apiKey, credentialsPath)
		if err != nil {
			return nil, err
		}
		l.service = svc
	}

	return l, nil
}

func newGoogleYouTubeService(ctx context.Context, apiKey, credentialsPath string) (*GoogleYouTubeService, error) {
	var clientOpt option.ClientOption
	switch {
	case apiKey != "":
		clientOpt = option.WithAPIKey(apiKey)
	case credentialsPath != "":
		b, err := os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read credentials file: %w", err)
		}
		config, err := google.JWTConfigFromJSON(b, youtube.YoutubeReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse credentials: %w", err)
		}
		clientOpt = option.WithHTTPClient(config.Client(ctx))
	default:
		return nil, &content.ValidationError{
			Field:      "youtube credentials",
			Message:    ErrNoCredentials.Error(),
			Suggestion: "set YOUTUBE_API_KEY or GOOGLE_APPLICATION_CREDENTIALS, or use youtube.lister: ytdlp",
		}
	}

	srv, err := youtube.NewService(ctx, clientOpt)
	if err != nil {
		return nil, fmt.Errorf("unable to create youtube service: %w", err)
	}
	return &GoogleYouTubeService{service: srv}, nil
}

// ListChannel returns up to max uploads (0 for all), newest first
func (l *Lister) ListChannel(ctx context.Context, ref content.ChannelRef, max int) ([]content.Item, error) {
	channel, err := l.service.FindChannel(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to find channel %s: %w", ref.Identifier, classify(err))
	}
	if channel.ContentDetails == nil || channel.ContentDetails.RelatedPlaylists == nil || channel.ContentDetails.RelatedPlaylists.Uploads == "" {
		return nil, fmt.Errorf("%w: channel %s has no uploads playlist", content.ErrNoItems, ref.Identifier)
	}
	uploads := channel.ContentDetails.RelatedPlaylists.Uploads

	var items []content.Item
	token := ""
	for {
		size := int64(maxPageSize)
		if max > 0 && max-len(items) < maxPageSize {
			size = int64(max - len(items))
		}

		resp, err := l.service.ListUploads(ctx, uploads, token, size)
		if err != nil {
			return nil, fmt.Errorf("failed to list uploads of %s: %w", ref.Identifier, classify(err))
		}
		for _, pi := range resp.Items {
			if item, ok := toItem(pi); ok {
				items = append(items, item)
			}
		}

		token = resp.NextPageToken
		if token == "" || (max > 0 && len(items) >= max) {
			break
		}
	}

	if max > 0 && len(items) > max {
		items = items[:max]
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: channel %s", content.ErrNoItems, ref.Identifier)
	}
	return items, nil
}

func toItem(pi *youtube.PlaylistItem) (content.Item, bool) {
	if pi.ContentDetails == nil || pi.ContentDetails.VideoId == "" {
		return content.Item{}, false
	}
	id := pi.ContentDetails.VideoId

	var title string
	var meta map[string]any
	if pi.Snippet != nil {
		title = pi.Snippet.Title
		if pi.Snippet.Description != "" {
			meta = map[string]any{"description": pi.Snippet.Description}
		}
	}

	item, err := content.NewItem(content.SourceYouTube, id, title, "https://www.youtube.com/watch?v="+id,
		parseTime(pi.ContentDetails.VideoPublishedAt), meta)
	if err != nil {
		return content.Item{}, false
	}
	return item, true
}

// classify maps API quota and server errors onto NetworkError
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		status := apiErr.Code
		for _, e := range apiErr.Errors {
			if e.Reason == "quotaExceeded" || e.Reason == "rateLimitExceeded" {
				status = 429
			}
		}
		return &content.NetworkError{Op: "youtube data api", StatusCode: status, Err: err}
	}
	return err
}

// parseTime parses an API timestamp string
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
