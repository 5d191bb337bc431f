package upstream_test

import (
	"context"
	"errors"
	"github.com/magic-lib/go-plat-guildcache/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newGuildServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.EscapedPath() {
		case "/v3/guild/The%20Guild":
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", "public, max-age=60")
			_, _ = w.Write([]byte(`{"name":"The Guild","online":4}`))
		case "/v3/guild/Broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/v3/guild/Garbage":
			_, _ = w.Write([]byte(`not json`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSourceURL(t *testing.T) {
	s, err := upstream.NewHTTPSource(&upstream.HTTPConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.wynncraft.com/v3/guild/The%20Guild", s.URL("The Guild"))
}

func TestHTTPSourceFetch(t *testing.T) {
	var hits atomic.Int32
	srv := newGuildServer(t, &hits)
	s, err := upstream.NewHTTPSource(&upstream.HTTPConfig{BaseURL: srv.URL + "/v3/guild/"}, nil)
	require.NoError(t, err)
	defer s.Close()

	body, err := s.Fetch(context.Background(), "The Guild")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"The Guild","online":4}`, body)

	_, err = s.Fetch(context.Background(), "Nobody")
	assert.ErrorIs(t, err, upstream.ErrNotFound)

	_, err = s.Fetch(context.Background(), "Broken")
	var se *upstream.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.NotErrorIs(t, err, upstream.ErrNotFound)

	_, err = s.Fetch(context.Background(), "Garbage")
	assert.Error(t, err)
}

func TestHTTPSourceResponseCache(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(t *testing.T) *upstream.HTTPConfig
	}{
		{"memory", func(t *testing.T) *upstream.HTTPConfig {
			return &upstream.HTTPConfig{Cache: upstream.HTTPCacheMemory}
		}},
		{"disk", func(t *testing.T) *upstream.HTTPConfig {
			return &upstream.HTTPConfig{Cache: upstream.HTTPCacheDisk, CacheDir: t.TempDir()}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := newGuildServer(t, &hits)
			cfg := tt.cfg(t)
			cfg.BaseURL = srv.URL + "/v3/guild"
			s, err := upstream.NewHTTPSource(cfg, nil)
			require.NoError(t, err)

			for i := 0; i < 3; i++ {
				body, err := s.Fetch(context.Background(), "The Guild")
				require.NoError(t, err)
				assert.Contains(t, body, `"online":4`)
			}
			assert.EqualValues(t, 1, hits.Load(), "fresh responses must be served from the http cache")
		})
	}
}

func TestHTTPSourceInvalidCache(t *testing.T) {
	_, err := upstream.NewHTTPSource(&upstream.HTTPConfig{Cache: "tape"}, nil)
	assert.Error(t, err)
	_, err = upstream.NewHTTPSource(&upstream.HTTPConfig{Cache: upstream.HTTPCacheDisk}, nil)
	assert.Error(t, err)
}

func TestHTTPSourceRateLimitHonoursContext(t *testing.T) {
	var hits atomic.Int32
	srv := newGuildServer(t, &hits)
	s, err := upstream.NewHTTPSource(&upstream.HTTPConfig{
		BaseURL:   srv.URL + "/v3/guild",
		RateLimit: 0.001,
		Burst:     1,
	}, nil)
	require.NoError(t, err)

	_, err = s.Fetch(context.Background(), "The Guild")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Fetch(ctx, "The Guild")
	assert.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
}
