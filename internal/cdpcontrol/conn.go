package cdpcontrol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

var errConnClosed = errors.New("cdp: connection closed")

// devtools speaks the DevTools protocol over one browser-level websocket.
// It only issues the commands it needs (attach, evaluate, screenshot) and
// never enables auto-attach or target discovery, which some browser builds
// do not survive.
type devtools struct {
	base string

	writeMu sync.Mutex
	connMu  sync.Mutex
	conn    net.Conn
	nextID  atomic.Int64

	waitMu  sync.Mutex
	waiters map[int64]chan json.RawMessage
}

// frame is both the outgoing command and the incoming reply.
type frame struct {
	ID        int64           `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Params    any             `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newDevtools(base string) *devtools {
	return &devtools{
		base:    strings.TrimRight(base, "/"),
		waiters: make(map[int64]chan json.RawMessage),
	}
}

func (d *devtools) dial(ctx context.Context) error {
	d.connMu.Lock()
	defer d.connMu.Unlock()
	if d.conn != nil {
		return nil
	}

	url, err := d.wsURL(ctx)
	if err != nil {
		return err
	}

	slog.Debug("cdp dialing", "ws_url", url)
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return fmt.Errorf("cdp: dial: %w", err)
	}
	d.conn = conn
	go d.readLoop(conn)
	return nil
}

// wsURL returns the browser websocket url used by chromedp allocators.
func (d *devtools) wsURL(ctx context.Context) (string, error) {
	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := d.getJSON(ctx, "/json/version", &version); err != nil {
		return "", fmt.Errorf("cdp: browser version: %w", err)
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("cdp: browser reported no websocket url")
	}
	return version.WebSocketDebuggerURL, nil
}

func (d *devtools) close() {
	d.connMu.Lock()
	defer d.connMu.Unlock()
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
}

func (d *devtools) readLoop(conn net.Conn) {
	defer d.failWaiters()
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			slog.Debug("cdp read loop stopped", "error", err)
			d.connMu.Lock()
			if d.conn == conn {
				d.conn = nil
			}
			d.connMu.Unlock()
			return
		}
		var reply frame
		if json.Unmarshal(data, &reply) != nil || reply.ID == 0 {
			// Events are not subscribed to; ignore them.
			continue
		}
		d.waitMu.Lock()
		ch, ok := d.waiters[reply.ID]
		delete(d.waiters, reply.ID)
		d.waitMu.Unlock()
		if ok {
			ch <- data
		}
	}
}

func (d *devtools) failWaiters() {
	d.waitMu.Lock()
	defer d.waitMu.Unlock()
	for id, ch := range d.waiters {
		close(ch)
		delete(d.waiters, id)
	}
}

// call sends method on sessionID (empty for the browser session) and decodes
// the result into out when out is non-nil.
func (d *devtools) call(ctx context.Context, sessionID, method string, params, out any) error {
	d.connMu.Lock()
	conn := d.conn
	d.connMu.Unlock()
	if conn == nil {
		return errConnClosed
	}

	req := frame{ID: d.nextID.Add(1), Method: method, SessionID: sessionID, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("cdp: encode %s: %w", method, err)
	}

	ch := make(chan json.RawMessage, 1)
	d.waitMu.Lock()
	d.waiters[req.ID] = ch
	d.waitMu.Unlock()
	forget := func() {
		d.waitMu.Lock()
		delete(d.waiters, req.ID)
		d.waitMu.Unlock()
	}

	d.writeMu.Lock()
	err = wsutil.WriteClientText(conn, payload)
	d.writeMu.Unlock()
	if err != nil {
		forget()
		return fmt.Errorf("cdp: write %s: %w", method, err)
	}

	var data json.RawMessage
	select {
	case msg, ok := <-ch:
		if !ok {
			return errConnClosed
		}
		data = msg
	case <-ctx.Done():
		forget()
		return ctx.Err()
	}

	var reply frame
	if err := json.Unmarshal(data, &reply); err != nil {
		return fmt.Errorf("cdp: decode %s: %w", method, err)
	}
	if reply.Error != nil {
		return fmt.Errorf("cdp: %s: %s", method, reply.Error.Message)
	}
	if out == nil || len(reply.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Result, out); err != nil {
		return fmt.Errorf("cdp: decode %s result: %w", method, err)
	}
	return nil
}

func (d *devtools) attach(ctx context.Context, targetID string) (string, error) {
	var out struct {
		SessionID string `json:"sessionId"`
	}
	params := map[string]any{"targetId": targetID, "flatten": true}
	if err := d.call(ctx, "", "Target.attachToTarget", params, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func (d *devtools) detach(ctx context.Context, sessionID string) error {
	return d.call(ctx, "", "Target.detachFromTarget", map[string]any{"sessionId": sessionID}, nil)
}

// evaluate runs js in the page and returns its string result.
func (d *devtools) evaluate(ctx context.Context, sessionID, js string) (string, error) {
	var out struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	params := map[string]any{"expression": js, "returnByValue": true, "awaitPromise": true}
	if err := d.call(ctx, sessionID, "Runtime.evaluate", params, &out); err != nil {
		return "", err
	}
	if out.ExceptionDetails != nil {
		return "", fmt.Errorf("cdp: script exception: %s", out.ExceptionDetails.Text)
	}
	var s string
	if err := json.Unmarshal(out.Result.Value, &s); err != nil {
		return string(out.Result.Value), nil
	}
	return s, nil
}

// screenshot captures the page as base64 PNG.
func (d *devtools) screenshot(ctx context.Context, sessionID string) (string, error) {
	var out struct {
		Data string `json:"data"`
	}
	params := map[string]any{"format": "png", "fromSurface": true}
	if err := d.call(ctx, sessionID, "Page.captureScreenshot", params, &out); err != nil {
		return "", err
	}
	return out.Data, nil
}

// targets lists open page targets from the HTTP endpoint.
func (d *devtools) targets(ctx context.Context) ([]*target.Info, error) {
	var entries []struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := d.getJSON(ctx, "/json/list", &entries); err != nil {
		return nil, err
	}
	out := make([]*target.Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, &target.Info{TargetID: target.ID(e.ID), Type: e.Type, Title: e.Title, URL: e.URL})
	}
	return out, nil
}

func (d *devtools) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cdp: GET %s: HTTP %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
