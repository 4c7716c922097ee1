package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok, nil
}

func (c *memCache) Put(_ context.Context, key string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string][]byte{}
	}
	c.m[key] = body
	return nil
}

func tmdbServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/tv", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "zh-CN", r.URL.Query().Get("language"))
		if r.URL.Query().Get("query") == "nothing" {
			_, _ = w.Write([]byte(`{"results":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"id":42,"name":"繁花","poster_path":"/p.jpg"},{"id":7,"name":"other"}]}`))
	})
	mux.HandleFunc("/tv/42", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"id":42,"name":"繁花","overview":"show overview","number_of_seasons":2,"number_of_episodes":40,
			"seasons":[{"season_number":1,"name":"第 1 季","episode_count":30,"air_date":"2023-12-27","overview":""},
			           {"season_number":2,"name":"第 2 季","episode_count":10,"air_date":"2025-01-01","overview":"s2"}]}`))
	})
	mux.HandleFunc("/tv/42/season/1/credits", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"cast":[{"name":"A"},{"name":"B"},{"name":"C"},{"name":"D"},{"name":"E"},{"name":"F"}]}`))
	})
	mux.HandleFunc("/tv/42/season/2/credits", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string, cache Cache) *Client {
	t.Helper()
	c, err := New(Options{
		APIKey:            "secret",
		BaseURL:           baseURL,
		RequestsPerSecond: 1000,
		Cache:             cache,
		Logger:            zerolog.Nop(),
	})
	require.NoError(t, err)
	c.backoff = 0
	t.Cleanup(c.httpClient.CloseIdleConnections)
	return c
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = New(Options{APIKey: "k", ProxyURL: "::bad"})
	assert.Error(t, err)

	_, err = New(Options{APIKey: "k", ProxyURL: "http://127.0.0.1:7890"})
	assert.NoError(t, err)
}

func TestSearchTV(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, tmdbServer(t, &hits).URL, nil)

	show, err := c.SearchTV(context.Background(), "繁花")
	require.NoError(t, err)
	require.NotNil(t, show)
	assert.Equal(t, 42, show.ID)
	assert.Equal(t, "繁花", show.Name)

	show, err = c.SearchTV(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Nil(t, show)

	show, err = c.SearchTV(context.Background(), "  ")
	require.NoError(t, err)
	assert.Nil(t, show)
}

func TestSearchTV_Cached(t *testing.T) {
	var hits atomic.Int32
	cache := &memCache{}
	c := newTestClient(t, tmdbServer(t, &hits).URL, cache)

	for i := 0; i < 3; i++ {
		_, err := c.SearchTV(context.Background(), "繁花")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
	for k := range cache.m {
		assert.NotContains(t, k, "secret", "api key must not be part of the cache key")
	}
}

func TestSummarize(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, tmdbServer(t, &hits).URL, nil)

	s, err := Summarize(context.Background(), c, &Show{ID: 42, PosterPath: "/p.jpg"}, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "繁花", s.Name)
	assert.Equal(t, "https://image.tmdb.org/t/p/original/p.jpg", s.PosterURL)
	assert.Equal(t, "https://www.themoviedb.org/tv/42", s.Link)
	require.Len(t, s.Seasons, 2)

	s1 := s.Seasons[0]
	assert.Equal(t, "S01", s1.Label)
	assert.Equal(t, 30, s1.Episodes)
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, s1.Cast)
	assert.Equal(t, "show overview", s1.Overview, "falls back to show overview")

	s2 := s.Seasons[1]
	assert.Empty(t, s2.Cast, "credits failure leaves cast empty")
	assert.Equal(t, "s2", s2.Overview)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"id":1,"name":"x"}]}`))
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL, nil)

	show, err := c.SearchTV(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, show.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL, nil)

	_, err := c.Details(context.Background(), 1)
	require.True(t, errors.Is(err, ErrUpstream))
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}
