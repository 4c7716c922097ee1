// Package catalog looks up TV shows in The Movie Database (TMDB v3). It
// backs show-name correction and the season overview; the merge core does
// not depend on it.
package catalog

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

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/backmassage/dramamerge/internal/logging"
)

// Sentinel errors.
var (
	ErrNoAPIKey = errors.New("tmdb api key not configured")
	ErrUpstream = errors.New("tmdb request failed")
)

const (
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultImageBaseURL = "https://image.tmdb.org/t/p/original"
	defaultLanguage     = "zh-CN"
	defaultTimeout      = 10 * time.Second
	defaultRateLimit    = 4
	defaultRetries      = 2
	defaultBackoff      = 250 * time.Millisecond
	maxBodyBytes        = 4 << 20
	showLinkBase        = "https://www.themoviedb.org/tv/"
)

// Cache stores raw response bodies by request key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, body []byte) error
}

// Options configures a Client. Only APIKey is required.
type Options struct {
	APIKey            string
	BaseURL           string
	ImageBaseURL      string
	Language          string
	ProxyURL          string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	Cache             Cache
	Logger            zerolog.Logger
}

// Client talks to the TMDB v3 API.
type Client struct {
	apiKey     string
	baseURL    string
	imageBase  string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	cache      Cache
	log        zerolog.Logger
}

// New builds a Client. It fails when no API key is set or the proxy URL
// cannot be parsed.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	opts = normalizeOptions(opts)

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
	}
	if opts.ProxyURL != "" {
		u, err := url.Parse(opts.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", opts.ProxyURL)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		imageBase:  strings.TrimRight(opts.ImageBaseURL, "/"),
		language:   opts.Language,
		httpClient: &http.Client{Timeout: opts.Timeout, Transport: transport},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		maxRetries: opts.MaxRetries,
		backoff:    defaultBackoff,
		cache:      opts.Cache,
		log:        opts.Logger,
	}, nil
}

func normalizeOptions(opts Options) Options {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.ImageBaseURL == "" {
		opts.ImageBaseURL = defaultImageBaseURL
	}
	if opts.Language == "" {
		opts.Language = defaultLanguage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRateLimit
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultRetries
	}
	return opts
}

// SearchTV returns the best match for query, or nil, nil when nothing
// matches.
func (c *Client) SearchTV(ctx context.Context, query string) (*Show, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	var res searchResponse
	if err := c.get(ctx, "/search/tv", url.Values{"query": {query}}, &res); err != nil {
		return nil, err
	}
	if len(res.Results) == 0 {
		c.log.Info().Str(logging.FieldShow, query).Msg("no catalog match")
		return nil, nil
	}
	best := res.Results[0]
	c.log.Info().Str(logging.FieldShow, query).Str("match", best.Name).Int("tmdb_id", best.ID).Msg("catalog match")
	return &best, nil
}

// Details returns the show's details including its season list.
func (c *Client) Details(ctx context.Context, id int) (*Details, error) {
	var d Details
	if err := c.get(ctx, "/tv/"+strconv.Itoa(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SeasonCredits returns the cast credited for one season.
func (c *Client) SeasonCredits(ctx context.Context, id, season int) (*Credits, error) {
	var cr Credits
	path := fmt.Sprintf("/tv/%d/season/%d/credits", id, season)
	if err := c.get(ctx, path, nil, &cr); err != nil {
		return nil, err
	}
	return &cr, nil
}

// PosterURL returns the full image URL for a poster path, or "".
func (c *Client) PosterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return c.imageBase + "/" + strings.TrimLeft(posterPath, "/")
}

// ShowURL returns the public TMDB page of a show.
func ShowURL(id int) string {
	return showLinkBase + strconv.Itoa(id)
}

// get performs a cached, rate-limited GET and decodes the JSON body into v.
func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("language", c.language)
	key := path + "?" + params.Encode()

	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.Debug().Err(err).Str("key", key).Msg("catalog cache read failed")
		} else if ok {
			return decode(body, v)
		}
	}

	q := url.Values{}
	for k, vals := range params {
		q[k] = vals
	}
	q.Set("api_key", c.apiKey)
	rawURL := c.baseURL + path + "?" + q.Encode()

	body, err := c.doGet(ctx, rawURL)
	if err != nil {
		c.log.Error().Err(err).Str(logging.FieldOp, "tmdb_get").Str("endpoint", path).Msg("catalog request failed")
		return err
	}
	if err := decode(body, v); err != nil {
		return err
	}
	if c.cache != nil {
		if err := c.cache.Put(ctx, key, body); err != nil {
			c.log.Debug().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
	}
	return nil
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return nil
}

// doGet retries transport errors, 429 and 5xx with exponential backoff.
func (c *Client) doGet(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	backoff := c.backoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, retry, err := c.once(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, rawURL string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("%w: %v", ErrUpstream, redact(err, c.apiKey))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		retry = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	return body, false, nil
}

// redact removes the API key from transport errors, which embed the URL.
func redact(err error, key string) string {
	return strings.ReplaceAll(err.Error(), key, "***")
}
