// Package platform implements the seven concrete platform adapters and the
// compact API clients they are built on. Each adapter satisfies
// session.Hooks; the shared Client here assembles the transport stack
// (fingerprinted TLS, UA pool, optional proxy rotation, bound cookies) the
// same way for every platform.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/magpie/internal/browser"
	"github.com/FranksOps/magpie/internal/bypass"
	"github.com/FranksOps/magpie/internal/fingerprint"
	"github.com/FranksOps/magpie/internal/metrics"
	"github.com/FranksOps/magpie/pkg/httpclient"
	"github.com/FranksOps/magpie/pkg/proxy"
	"github.com/FranksOps/magpie/pkg/useragent"
)

// RiskError marks a response the risk-control detectors classified as a
// block or challenge.
type RiskError struct {
	Platform string
	Source   string
	Status   int
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("%s risk control triggered (%s, status %d)", e.Platform, e.Source, e.Status)
}

// IsRiskControl reports whether err (or anything it wraps) is a RiskError.
func IsRiskControl(err error) bool {
	var re *RiskError
	return errors.As(err, &re)
}

// ClientConfig configures a platform API client.
type ClientConfig struct {
	Platform    string
	Timeout     time.Duration
	ProxyPool   *proxy.Pool
	UAPool      *useragent.Pool
	Fingerprint fingerprint.Profile
}

// Client is one platform's HTTP client. It is bound to a browser identity
// via Bind before use; all adapter requests go through it.
type Client struct {
	platform  string
	client    *httpclient.Client
	uaPool    *useragent.Pool
	detectors []bypass.Detector

	userAgent string
	headers   map[string]string
}

// NewClient builds a client with a fingerprinted transport. One client per
// session; the connection pool and bound identity live as long as it does.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if string(cfg.Fingerprint) == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}

	var proxyFunc func(*http.Request) (*url.URL, error)
	if cfg.ProxyPool != nil {
		proxyFunc = cfg.ProxyPool.ProxyFunc()
	}
	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: 5,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &Client{
		platform:  cfg.Platform,
		client:    client,
		uaPool:    cfg.UAPool,
		detectors: bypass.DefaultDetectors(),
		headers:   map[string]string{},
	}, nil
}

// Bind attaches the browser identity to the client. Cookies are sent with
// every request; an empty userAgent falls back to the UA pool.
func (c *Client) Bind(userAgent string, cookies []browser.Cookie) {
	c.userAgent = userAgent
	if len(cookies) > 0 {
		c.headers["Cookie"] = browser.CookieHeader(cookies)
	}
}

// SetHeader sets a default header sent with every request (Referer,
// Origin, platform tokens).
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	body, err := c.do(ctx, http.MethodGet, rawURL, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.platform, err)
	}
	return nil
}

// PostJSON issues a POST with a JSON payload and decodes the response.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", c.platform, err)
	}
	body, err := c.do(ctx, http.MethodPost, rawURL, data, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.platform, err)
	}
	return nil
}

// GetHTML issues a GET and parses the response as an HTML document.
func (c *Client) GetHTML(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := c.do(ctx, http.MethodGet, rawURL, nil, "")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s html: %w", c.platform, err)
	}
	return doc, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	ua := c.userAgent
	if ua == "" {
		ua = c.uaPool.GetSequential()
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		metrics.RecordRequest(c.platform, 0, err)
		return nil, fmt.Errorf("%s request failed: %w", c.platform, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordRequest(c.platform, resp.StatusCode, err)
		return nil, fmt.Errorf("read %s response: %w", c.platform, err)
	}
	metrics.RecordRequest(c.platform, resp.StatusCode, nil)

	if source, detected := bypass.Analyze(&bypass.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}, c.detectors); detected {
		metrics.RiskControlHits.WithLabelValues(c.platform, source).Inc()
		return nil, &RiskError{Platform: c.platform, Source: source, Status: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned status %d", c.platform, resp.StatusCode)
	}
	return data, nil
}
