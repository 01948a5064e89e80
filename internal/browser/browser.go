// Package browser abstracts the external browser-automation resource that
// platform sessions borrow for navigation, login flows and cookie capture.
// The core only depends on the interfaces here; the CDP implementation in
// cdp.go attaches to an already-running Chrome over the DevTools protocol.
package browser

import (
	"context"
	"strings"
)

// Cookie is a browser cookie captured from the automation resource.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// Launcher acquires one browser handle for an orchestration run.
type Launcher interface {
	Launch(ctx context.Context) (Handle, error)
}

// Handle is one live browser instance shared across a run. Each session
// opens its own Page; pages are never shared between sessions.
type Handle interface {
	NewPage(ctx context.Context) (Page, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	Close(ctx context.Context) error
}

// Page is a single browser tab owned by exactly one session.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, expression string) (string, error)
	UserAgent(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// CookieHeader renders cookies in Cookie request-header form.
func CookieHeader(cookies []Cookie) string {
	var b strings.Builder
	for i, c := range cookies {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(c.Value)
	}
	return b.String()
}

// CookieMap returns cookies keyed by name. Later duplicates win, matching
// how browsers report the effective jar.
func CookieMap(cookies []Cookie) map[string]string {
	m := make(map[string]string, len(cookies))
	for _, c := range cookies {
		m[c.Name] = c.Value
	}
	return m
}
