package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/gregjones/httpcache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL        = "https://api.wynncraft.com/v3/guild"
	defaultTimeout        = 10 * time.Second
	defaultConnectTimeout = 3 * time.Second
	defaultUserAgent      = "guildcache/0.1"

	maxPayloadSize = 4 * 1024 * 1024
)

// HTTPConfig http 上游
type HTTPConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	RateLimit      float64       `mapstructure:"rate_limit"` // 每秒请求数，<=0 不限速
	Burst          int           `mapstructure:"burst"`
	Cache          string        `mapstructure:"cache"` // "" | memory | disk
	CacheDir       string        `mapstructure:"cache_dir"`
	CacheSize      int           `mapstructure:"cache_size"`
}

func (c *HTTPConfig) init() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

// HTTPSource GET {base}/{name}
type HTTPSource struct {
	baseURL   string
	userAgent string
	client    *http.Client
	transport *http.Transport
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewHTTPSource 新建
func NewHTTPSource(cfg *HTTPConfig, logger *zap.Logger) (*HTTPSource, error) {
	cfg.init()
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("upstream: invalid base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}

	var rt http.RoundTripper = transport
	hc, err := newHTTPCache(cfg)
	if err != nil {
		return nil, err
	}
	if hc != nil {
		ct := httpcache.NewTransport(hc)
		ct.Transport = transport
		ct.MarkCachedResponses = true
		rt = ct
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &HTTPSource{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    &http.Client{Transport: rt, Timeout: cfg.Timeout},
		transport: transport,
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		logger:    logger,
	}, nil
}

// URL 名称按路径段转义
func (s *HTTPSource) URL(name string) string {
	return s.baseURL + "/" + url.PathEscape(name)
}

// Fetch 404 返回 ErrNotFound，其他非 2xx 返回 *StatusError
func (s *HTTPSource) Fetch(ctx context.Context, name string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	u := s.URL(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upstream: request %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, URL: u}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return "", fmt.Errorf("upstream: read %s: %w", u, err)
	}
	if !json.Valid(body) {
		return "", fmt.Errorf("upstream: %s returned invalid json", u)
	}
	if resp.Header.Get(httpcache.XFromCache) != "" {
		s.logger.Debug("upstream response served from http cache", zap.String("url", u))
	}
	return string(body), nil
}

// Close 关闭空闲连接
func (s *HTTPSource) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}
