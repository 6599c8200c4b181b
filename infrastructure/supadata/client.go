package supadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"media-harvest/domain/content"
	"media-harvest/domain/transcript"
	"media-harvest/infrastructure/logger"

	"golang.org/x/time/rate"
)

// Key rotation strategies
const (
	StrategyRoundRobin = "round_robin"
	StrategyRandom     = "random"
)

// response is the /transcript payload
type response struct {
	Content []struct {
		Text     string  `json:"text"`
		Offset   float64 `json:"offset"`
		Duration float64 `json:"duration"`
		Lang     string  `json:"lang"`
	} `json:"content"`
	Lang string `json:"lang"`
}

// Provider implements transcript.Provider against the Supadata transcript API.
// Keys are rotated on 401 and 429; a 404 means the video has no transcript
// and no other key is tried.
type Provider struct {
	baseURL    string
	keys       []string
	strategy   string
	singleKey  bool
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logger.Logger

	mu   sync.Mutex
	next int
	rnd  *rand.Rand
}

// Option is a functional option for configuring Provider
type Option func(*Provider)

// WithBaseURL overrides the API endpoint
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithStrategy sets the key rotation strategy
func WithStrategy(s string) Option {
	return func(p *Provider) {
		p.strategy = s
	}
}

// WithSingleKey tries only the next rotated key per request
func WithSingleKey(single bool) Option {
	return func(p *Provider) {
		p.singleKey = single
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithRateLimit caps requests per second (0 disables limiting)
func WithRateLimit(perSecond float64) Option {
	return func(p *Provider) {
		if perSecond <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRandSource seeds random key selection (for testing)
func WithRandSource(src rand.Source) Option {
	return func(p *Provider) {
		p.rnd = rand.New(src)
	}
}

// NewProvider creates a Supadata provider using keys
func NewProvider(keys []string, log logger.Logger, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    "https://api.supadata.ai/v1",
		keys:       keys,
		strategy:   StrategyRoundRobin,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		log:        log,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name implements transcript.Provider
func (p *Provider) Name() string {
	return "supadata"
}

// keysToTry returns the keys for one request, starting at the rotation position
func (p *Provider) keysToTry() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.keys)
	if n == 0 {
		return nil
	}

	var start int
	if p.strategy == StrategyRandom {
		start = p.rnd.Intn(n)
	} else {
		start = p.next
		p.next = (p.next + 1) % n
	}

	if p.singleKey {
		return []string{p.keys[start]}
	}
	ordered := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ordered = append(ordered, p.keys[(start+i)%n])
	}
	return ordered
}

// Fetch implements transcript.Provider
func (p *Provider) Fetch(ctx context.Context, videoURL string) (*transcript.Transcript, error) {
	keys := p.keysToTry()
	if len(keys) == 0 {
		return nil, &content.NetworkError{Op: "supadata", Err: fmt.Errorf("%w: no API keys configured", content.ErrAllKeysRejected)}
	}

	var (
		errs       []error
		rejected   int
		lastStatus int
	)
	for i, key := range keys {
		if len(keys) > 1 {
			p.log.Emit(logger.DEBUG, "trying API key %d/%d (...%s)", i+1, len(keys), suffix(key))
		}

		t, status, err := p.request(ctx, key, videoURL)
		if err == nil {
			return t, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, content.ErrTranscriptNotFound) {
			return nil, err
		}

		lastStatus = status
		errs = append(errs, err)
		switch status {
		case http.StatusUnauthorized:
			rejected++
			p.log.Emit(logger.WARNING, "invalid API key (...%s)", suffix(key))
		case http.StatusTooManyRequests:
			rejected++
			p.log.Emit(logger.WARNING, "rate limit exceeded for key (...%s)", suffix(key))
		default:
			p.log.Emit(logger.WARNING, "request failed with key (...%s): %v", suffix(key), err)
		}
	}

	if rejected == len(keys) {
		return nil, &content.NetworkError{
			Op:         "supadata",
			StatusCode: lastStatus,
			Err:        fmt.Errorf("%w: %d keys tried", content.ErrAllKeysRejected, len(keys)),
		}
	}
	return nil, fmt.Errorf("supadata: all %d keys failed: %w", len(keys), errors.Join(errs...))
}

func (p *Provider) request(ctx context.Context, key, videoURL string) (*transcript.Transcript, int, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	endpoint := p.baseURL + "/transcript?" + url.Values{"url": {videoURL}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("x-api-key", key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, &content.NetworkError{Op: "supadata", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, resp.StatusCode, &content.NetworkError{Op: "supadata", StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, resp.StatusCode, &content.NetworkError{Op: "supadata", StatusCode: resp.StatusCode, Err: content.ErrTranscriptNotFound}
	case resp.StatusCode != http.StatusOK:
		return nil, resp.StatusCode, &content.NetworkError{Op: "supadata", StatusCode: resp.StatusCode, Err: errors.New(snippet(body))}
	}

	var data response
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, resp.StatusCode, &content.NetworkError{Op: "supadata", StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid response: %w", err)}
	}
	if len(data.Content) == 0 {
		return nil, resp.StatusCode, fmt.Errorf("%w: empty transcript content", content.ErrTranscriptNotFound)
	}

	t := &transcript.Transcript{Language: data.Lang}
	texts := make([]string, 0, len(data.Content))
	for _, seg := range data.Content {
		text := strings.TrimSpace(seg.Text)
		texts = append(texts, text)
		t.Segments = append(t.Segments, content.Segment{
			Text:     text,
			Offset:   time.Duration(seg.Offset * float64(time.Millisecond)),
			Duration: time.Duration(seg.Duration * float64(time.Millisecond)),
		})
		if t.Language == "" {
			t.Language = seg.Lang
		}
	}
	t.Text = strings.Join(texts, " ")
	return t, resp.StatusCode, nil
}

func suffix(key string) string {
	if len(key) > 8 {
		return key[len(key)-8:]
	}
	return key
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = "empty response"
	}
	return s
}

// Ensure Provider implements transcript.Provider
var _ transcript.Provider = (*Provider)(nil)
