package bilibili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"media-harvest/domain/content"
	"media-harvest/infrastructure/logger"

	"golang.org/x/time/rate"
)

// PageSize is the number of videos requested per space page
const PageSize = 30

// UserInfo describes a Bilibili uploader
type UserInfo struct {
	UID       int64  `json:"uid"`
	Name      string `json:"name"`
	Follower  int64  `json:"follower"`
	Following int64  `json:"following"`
}

// ListOptions limits a space listing
type ListOptions struct {
	// Since drops videos published before this day (zero means no cutoff)
	Since time.Time
	// MaxVideos caps the result (0 means unlimited)
	MaxVideos int
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type arcSearchData struct {
	List struct {
		VList []video `json:"vlist"`
	} `json:"list"`
	Page struct {
		PN    int `json:"pn"`
		PS    int `json:"ps"`
		Count int `json:"count"`
	} `json:"page"`
}

type video struct {
	AID         int64  `json:"aid"`
	BVID        string `json:"bvid"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Created     int64  `json:"created"`
	Length      string `json:"length"`
	Play        int64  `json:"play"`
}

// Client talks to the Bilibili web API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logger.Logger
}

// Option is a functional option for configuring Client
type Option func(*Client)

// WithBaseURL overrides the API host
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit caps requests per second (0 disables limiting)
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates a Bilibili API client
func NewClient(log logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    "https://api.bilibili.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		log:        log,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// UserInfo returns the uploader's name and relation counts. Lookup failures
// fall back to a placeholder name so listing can still proceed.
func (c *Client) UserInfo(ctx context.Context, uid int64) UserInfo {
	info := UserInfo{UID: uid, Name: fmt.Sprintf("User_%d", uid)}

	var card struct {
		Card struct {
			Name string `json:"name"`
		} `json:"card"`
	}
	if err := c.get(ctx, "/x/web-interface/card", url.Values{"mid": {strconv.FormatInt(uid, 10)}}, &card); err != nil {
		c.log.Emit(logger.WARNING, "failed to get user card for %d: %v", uid, err)
	} else if card.Card.Name != "" {
		info.Name = card.Card.Name
	}

	var stat struct {
		Follower  int64 `json:"follower"`
		Following int64 `json:"following"`
	}
	if err := c.get(ctx, "/x/relation/stat", url.Values{"vmid": {strconv.FormatInt(uid, 10)}}, &stat); err != nil {
		c.log.Emit(logger.WARNING, "failed to get relation info for %d: %v", uid, err)
	} else {
		info.Follower = stat.Follower
		info.Following = stat.Following
	}

	return info
}

// ListVideos pages through the user's uploads, newest first. A failure on the
// first page is returned; a later failure ends the listing with what was
// collected so far.
func (c *Client) ListVideos(ctx context.Context, uid int64, opts ListOptions) ([]content.Item, error) {
	var items []content.Item

	for pn := 1; ; pn++ {
		var data arcSearchData
		params := url.Values{
			"mid": {strconv.FormatInt(uid, 10)},
			"pn":  {strconv.Itoa(pn)},
			"ps":  {strconv.Itoa(PageSize)},
		}
		if err := c.get(ctx, "/x/space/arc/search", params, &data); err != nil {
			if pn == 1 || ctx.Err() != nil {
				return nil, fmt.Errorf("failed to list videos for %d: %w", uid, err)
			}
			c.log.Emit(logger.WARNING, "error fetching page %d, stopping: %v", pn, err)
			break
		}

		vlist := data.List.VList
		if len(vlist) == 0 {
			break
		}

		for _, v := range vlist {
			published := time.Unix(v.Created, 0)
			if !opts.Since.IsZero() && published.Before(opts.Since) {
				continue
			}
			item, err := toItem(v, published)
			if err != nil {
				continue
			}
			items = append(items, item)
		}
		c.log.Emit(logger.DEBUG, "fetched page %d, total videos: %d", pn, len(items))

		// newest first: once a page ends before the cutoff, later pages are older
		if !opts.Since.IsZero() && time.Unix(vlist[len(vlist)-1].Created, 0).Before(opts.Since) {
			break
		}
		if opts.MaxVideos > 0 && len(items) >= opts.MaxVideos {
			break
		}
	}

	if opts.MaxVideos > 0 && len(items) > opts.MaxVideos {
		items = items[:opts.MaxVideos]
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: bilibili user %d", content.ErrNoItems, uid)
	}
	return items, nil
}

func toItem(v video, published time.Time) (content.Item, error) {
	return content.NewItem(content.SourceBilibili, v.BVID, v.Title,
		"https://www.bilibili.com/video/"+v.BVID, published, map[string]any{
			"aid":          v.AID,
			"description":  v.Description,
			"length":       v.Length,
			"play":         v.Play,
			"created_date": published.Format(content.DateLayout),
		})
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("Referer", "https://www.bilibili.com/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &content.NetworkError{Op: "GET " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &content.NetworkError{Op: "GET " + path, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &content.NetworkError{Op: "GET " + path, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &content.NetworkError{Op: "GET " + path, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid response: %w", err)}
	}
	if env.Code != 0 {
		// -412 and -799 are the anti-bot and rate limit codes
		status := http.StatusBadRequest
		if env.Code == -412 || env.Code == -799 {
			status = http.StatusTooManyRequests
		}
		return &content.NetworkError{Op: "GET " + path, StatusCode: status, Err: fmt.Errorf("api code %d: %s", env.Code, env.Message)}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
