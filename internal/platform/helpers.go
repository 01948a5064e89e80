package platform

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/FranksOps/magpie/internal/browser"
	"github.com/FranksOps/magpie/internal/session"
)

const timeLayout = "2006-01-02 15:04:05"

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// stripHTML removes markup tags and collapses the remaining whitespace.
// Several platforms embed highlight tags or full HTML in text fields.
func stripHTML(s string) string {
	return session.CleanText(tagPattern.ReplaceAllString(s, " "))
}

// formatUnix renders a unix timestamp in the local display layout.
// Zero stays empty so absent timestamps do not become the epoch.
func formatUnix(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).Format(timeLayout)
}

// truncateTitle derives a display title from body text on platforms that
// have no native title field.
func truncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= 50 {
		return s
	}
	return string(runes[:50]) + "..."
}

// parseCookieString splits a "k=v; k2=v2" cookie string into Cookie values.
func parseCookieString(s string) []browser.Cookie {
	var cookies []browser.Cookie
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		cookies = append(cookies, browser.Cookie{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	return cookies
}

// waitForLogin polls check until it reports authenticated or ctx expires.
// Used by the QR-code flow: the user scans on the visible page while we
// poll the platform's auth endpoint.
func waitForLogin(ctx context.Context, check func(context.Context) (bool, error), interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		loggedIn, err := check(ctx)
		if err == nil && loggedIn {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for login: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// cookieLogin applies a configured cookie string to the client and
// verifies it authenticates.
func cookieLogin(ctx context.Context, c *Client, cookieStr string, check func(context.Context) (bool, error)) error {
	if strings.TrimSpace(cookieStr) == "" {
		return errors.New("cookie login selected but no cookies configured")
	}
	c.SetHeader("Cookie", strings.TrimSpace(cookieStr))
	loggedIn, err := check(ctx)
	if err != nil {
		return fmt.Errorf("verify configured cookies: %w", err)
	}
	if !loggedIn {
		return errors.New("configured cookies are not authenticated")
	}
	return nil
}
