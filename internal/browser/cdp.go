package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CDP attaches to a Chrome instance that is already running with
// --remote-debugging-port. It never starts or owns the browser process;
// Close only detaches.
type CDP struct {
	address string // host:port of the DevTools endpoint
	client  *http.Client
	logger  *slog.Logger
}

// NewCDP creates a launcher that attaches to the DevTools endpoint at
// address ("127.0.0.1:9222" style).
func NewCDP(address string, logger *slog.Logger) *CDP {
	if logger == nil {
		logger = slog.Default()
	}
	address = strings.TrimPrefix(strings.TrimPrefix(address, "http://"), "ws://")
	return &CDP{
		address: address,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With("component", "browser"),
	}
}

type versionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

type targetInfo struct {
	ID                   string `json:"id"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Launch verifies the DevTools endpoint is reachable and opens the
// browser-level websocket used for cookie capture.
func (c *CDP) Launch(ctx context.Context) (Handle, error) {
	var info versionInfo
	if err := c.getJSON(ctx, "/json/version", &info); err != nil {
		return nil, fmt.Errorf("attach to devtools endpoint %s: %w", c.address, err)
	}
	if info.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("devtools endpoint %s reported no browser websocket", c.address)
	}

	wsURL, err := c.rewriteWS(info.WebSocketDebuggerURL)
	if err != nil {
		return nil, err
	}
	conn, err := dialWS(ctx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("dial browser websocket: %w", err)
	}

	c.logger.Debug("attached to browser", "address", c.address, "browser", info.Browser)
	return &cdpHandle{
		cdp:  c,
		conn: conn,
	}, nil
}

func (c *CDP) getJSON(ctx context.Context, path string, out any) error {
	// Chrome 111+ requires PUT for /json/new; everything else is GET.
	method := http.MethodGet
	if path == "/json/new" {
		method = http.MethodPut
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://"+c.address+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("devtools %s returned %d: %s", path, resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// rewriteWS forces the websocket URL onto the configured address. Chrome
// reports whatever host it was started with, which may not be routable
// from here (docker, port forwards).
func (c *CDP) rewriteWS(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse devtools websocket url: %w", err)
	}
	u.Host = c.address
	return u.String(), nil
}

func dialWS(ctx context.Context, wsURL string) (*rpcConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return &rpcConn{conn: conn}, nil
}

// rpcConn is a minimal DevTools protocol client over one websocket.
// Commands are serialized; interleaved protocol events are skipped while
// waiting for a command response.
type rpcConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	nextID int
}

type rpcRequest struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (r *rpcConn) call(ctx context.Context, method string, params any, out any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID

	if deadline, ok := ctx.Deadline(); ok {
		r.conn.SetWriteDeadline(deadline)
		r.conn.SetReadDeadline(deadline)
	} else {
		r.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
		r.conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	}

	if err := r.conn.WriteJSON(rpcRequest{ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var resp rpcResponse
		if err := r.conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("read %s response: %w", method, err)
		}
		if resp.ID != id {
			// protocol event or stale response
			continue
		}
		if resp.Error != nil {
			return fmt.Errorf("devtools %s: %s (code %d)", method, resp.Error.Message, resp.Error.Code)
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

func (r *rpcConn) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn.Close()
}

type cdpHandle struct {
	cdp  *CDP
	conn *rpcConn

	mu     sync.Mutex
	closed bool
}

func (h *cdpHandle) NewPage(ctx context.Context) (Page, error) {
	var target targetInfo
	if err := h.cdp.getJSON(ctx, "/json/new", &target); err != nil {
		return nil, fmt.Errorf("open new page: %w", err)
	}
	wsURL, err := h.cdp.rewriteWS(target.WebSocketDebuggerURL)
	if err != nil {
		return nil, err
	}
	conn, err := dialWS(ctx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("dial page websocket: %w", err)
	}
	if err := conn.call(ctx, "Page.enable", nil, nil); err != nil {
		conn.close()
		return nil, err
	}
	return &cdpPage{cdp: h.cdp, id: target.ID, conn: conn}, nil
}

func (h *cdpHandle) Cookies(ctx context.Context) ([]Cookie, error) {
	var result struct {
		Cookies []Cookie `json:"cookies"`
	}
	if err := h.conn.call(ctx, "Storage.getCookies", nil, &result); err != nil {
		return nil, fmt.Errorf("get browser cookies: %w", err)
	}
	return result.Cookies, nil
}

// Close detaches from the browser. The Chrome process keeps running.
func (h *cdpHandle) Close(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.conn.close()
}

type cdpPage struct {
	cdp  *CDP
	id   string
	conn *rpcConn

	mu     sync.Mutex
	closed bool
}

func (p *cdpPage) Navigate(ctx context.Context, pageURL string) error {
	var result struct {
		ErrorText string `json:"errorText"`
	}
	err := p.conn.call(ctx, "Page.navigate", map[string]string{"url": pageURL}, &result)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", pageURL, err)
	}
	if result.ErrorText != "" {
		return fmt.Errorf("navigate to %s: %s", pageURL, result.ErrorText)
	}
	return nil
}

func (p *cdpPage) Evaluate(ctx context.Context, expression string) (string, error) {
	var result struct {
		Result struct {
			Value any `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	params := map[string]any{
		"expression":    expression,
		"returnByValue": true,
	}
	if err := p.conn.call(ctx, "Runtime.evaluate", params, &result); err != nil {
		return "", err
	}
	if result.ExceptionDetails != nil {
		return "", fmt.Errorf("evaluate failed: %s", result.ExceptionDetails.Text)
	}
	switch v := result.Result.Value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode evaluate result: %w", err)
		}
		return string(b), nil
	}
}

func (p *cdpPage) UserAgent(ctx context.Context) (string, error) {
	return p.Evaluate(ctx, "navigator.userAgent")
}

func (p *cdpPage) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.cdp.getJSON(ctx, "/json/close/"+p.id, nil); err != nil {
		p.cdp.logger.Warn("failed to close page target", "target", p.id, "error", err)
	}
	return p.conn.close()
}
