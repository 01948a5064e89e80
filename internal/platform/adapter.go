package platform

import (
	"context"
	"fmt"

	"github.com/FranksOps/magpie/internal/browser"
	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/fingerprint"
	"github.com/FranksOps/magpie/pkg/proxy"
)

// newAPIClient assembles the client stack for one platform from the live
// configuration.
func newAPIClient(cfg *config.Config, name string) (*Client, error) {
	var pool *proxy.Pool
	if cfg.Network.EnableProxy && cfg.Network.ProxyFile != "" {
		pool = proxy.NewPool(proxy.Config{})
		if err := pool.LoadFile(cfg.Network.ProxyFile); err != nil {
			return nil, fmt.Errorf("load proxy pool: %w", err)
		}
	}
	return NewClient(ClientConfig{
		Platform:    name,
		Timeout:     cfg.RequestTimeout(),
		ProxyPool:   pool,
		Fingerprint: fingerprint.FromString(cfg.Network.Fingerprint),
	})
}

// bindIdentity attaches the page's user agent and the captured cookies to
// the client so API calls look like they come from the browser session.
func bindIdentity(ctx context.Context, c *Client, page browser.Page, cookies []browser.Cookie) error {
	var ua string
	if page != nil {
		got, err := page.UserAgent(ctx)
		if err != nil {
			return fmt.Errorf("read page user agent: %w", err)
		}
		ua = got
	}
	c.Bind(ua, cookies)
	return nil
}
