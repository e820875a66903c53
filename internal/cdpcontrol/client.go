// Package cdpcontrol drives TradingView chart tabs in a running browser over
// the Chrome DevTools Protocol.
package cdpcontrol

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
)

var chartURLPattern = regexp.MustCompile(`/chart/([^/?#]+)/?`)

// retryHints mark causes worth one reconnect-and-retry.
var retryHints = []string{
	"target closed",
	"session closed",
	"websocket",
	"connection reset",
	"connection refused",
	"connection closed",
	"broken pipe",
	"eof",
	"no session with given id",
}

type tab struct {
	mu        sync.Mutex
	info      ChartInfo
	sessionID string
}

// Client evaluates scripts on chart tabs. Calls on the same chart are
// serialized; different charts proceed in parallel.
type Client struct {
	cdpURL      string
	tabFilter   string
	evalTimeout time.Duration

	mu      sync.Mutex
	dt      *devtools
	tabs    map[target.ID]*tab
	byChart map[string]target.ID

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

type envelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func NewClient(cdpURL, tabFilter string, evalTimeout time.Duration) *Client {
	if evalTimeout <= 0 {
		evalTimeout = 5 * time.Second
	}
	return &Client{
		cdpURL:      cdpURL,
		tabFilter:   strings.ToLower(strings.TrimSpace(tabFilter)),
		evalTimeout: evalTimeout,
		tabs:        make(map[target.ID]*tab),
		byChart:     make(map[string]target.ID),
		locks:       make(map[string]*sync.Mutex),
	}
}

// Connect dials the browser and indexes its chart tabs.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.cdpURL == "" {
		return NewError(CodeCDPUnavailable, "missing CDP URL", nil)
	}
	c.resetLocked()

	dt := newDevtools(c.cdpURL)
	if err := dt.dial(ctx); err != nil {
		return NewError(CodeCDPUnavailable, "connect to CDP failed", err)
	}
	c.dt = dt
	if err := c.syncLocked(ctx); err != nil {
		c.resetLocked()
		return err
	}
	slog.Info("cdpcontrol connected", "cdp_url", c.cdpURL, "charts", len(c.byChart))
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	return nil
}

func (c *Client) resetLocked() {
	if c.dt != nil {
		for _, t := range c.tabs {
			t.mu.Lock()
			if t.sessionID != "" {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				_ = c.dt.detach(ctx, t.sessionID)
				cancel()
				t.sessionID = ""
			}
			t.mu.Unlock()
		}
		c.dt.close()
		c.dt = nil
	}
	c.tabs = make(map[target.ID]*tab)
	c.byChart = make(map[string]target.ID)
}

// ListCharts returns the chart tabs sorted by chart id.
func (c *Client) ListCharts(ctx context.Context) ([]ChartInfo, error) {
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	out := make([]ChartInfo, 0, len(c.tabs))
	for _, t := range c.tabs {
		out = append(out, t.info)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ChartID < out[j].ChartID })
	return out, nil
}

// ResolveChart returns chartID's tab, or the first chart tab when chartID is
// empty.
func (c *Client) ResolveChart(ctx context.Context, chartID string) (ChartInfo, error) {
	charts, err := c.ListCharts(ctx)
	if err != nil {
		return ChartInfo{}, err
	}
	for _, ch := range charts {
		if chartID == "" || ch.ChartID == chartID {
			return ch, nil
		}
	}
	if chartID == "" {
		return ChartInfo{}, NewError(CodeChartNotFound, "no chart tabs found", nil)
	}
	return ChartInfo{}, NewError(CodeChartNotFound, "chart not found: "+chartID, nil)
}

// CDPURL returns the DevTools HTTP endpoint the client dials.
func (c *Client) CDPURL() string { return c.cdpURL }

func (c *Client) Resolution(ctx context.Context, chartID string) (string, error) {
	var out struct {
		Resolution string `json:"resolution"`
	}
	if err := c.evalOnChart(ctx, chartID, jsResolution(), &out); err != nil {
		return "", err
	}
	return out.Resolution, nil
}

func (c *Client) SetResolution(ctx context.Context, chartID, resolution string) error {
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return NewError(CodeValidation, "resolution is required", nil)
	}
	return c.evalOnChart(ctx, chartID, jsSetResolution(resolution), nil)
}

func (c *Client) SetChartType(ctx context.Context, chartID string, typeID int) error {
	return c.evalOnChart(ctx, chartID, jsSetChartType(typeID), nil)
}

func (c *Client) ListStudies(ctx context.Context, chartID string) ([]Study, error) {
	var out struct {
		Studies []Study `json:"studies"`
	}
	if err := c.evalOnChart(ctx, chartID, jsListStudies(), &out); err != nil {
		return nil, err
	}
	if out.Studies == nil {
		return []Study{}, nil
	}
	return out.Studies, nil
}

func (c *Client) AddStudy(ctx context.Context, chartID, name string, overlay bool, inputs []float64, colors []string) (Study, error) {
	if strings.TrimSpace(name) == "" {
		return Study{}, NewError(CodeValidation, "study name is required", nil)
	}
	var out struct {
		Study Study `json:"study"`
	}
	if err := c.evalOnChart(ctx, chartID, jsCreateStudy(name, overlay, inputs, colors), &out); err != nil {
		return Study{}, err
	}
	return out.Study, nil
}

func (c *Client) RemoveStudy(ctx context.Context, chartID, studyID string) error {
	if strings.TrimSpace(studyID) == "" {
		return NewError(CodeValidation, "study id is required", nil)
	}
	return c.evalOnChart(ctx, chartID, jsRemoveStudy(studyID), nil)
}

func (c *Client) Zoom(ctx context.Context, chartID string, in bool) error {
	return c.evalOnChart(ctx, chartID, jsZoom(in), nil)
}

func (c *Client) Scroll(ctx context.Context, chartID string, bars int) error {
	if bars == 0 {
		return nil
	}
	return c.evalOnChart(ctx, chartID, jsScroll(bars), nil)
}

func (c *Client) ScrollToRealtime(ctx context.Context, chartID string) error {
	return c.evalOnChart(ctx, chartID, jsScrollToRealtime(), nil)
}

func (c *Client) ResetScales(ctx context.Context, chartID string) error {
	return c.evalOnChart(ctx, chartID, jsResetScales(), nil)
}

func (c *Client) Toggles(ctx context.Context, chartID string) (Toggles, error) {
	var out Toggles
	if err := c.evalOnChart(ctx, chartID, jsToggles(), &out); err != nil {
		return Toggles{}, err
	}
	return out, nil
}

func (c *Client) SetToggle(ctx context.Context, chartID, option string, enabled bool) error {
	return c.evalOnChart(ctx, chartID, jsSetToggle(option, enabled), nil)
}

func (c *Client) OpenNews(ctx context.Context, chartID string) error {
	return c.evalOnChart(ctx, chartID, jsOpenNews(), nil)
}

// CaptureScreenshot grabs the chart tab as PNG over the existing session.
func (c *Client) CaptureScreenshot(ctx context.Context, chartID string) ([]byte, error) {
	var png []byte
	err := c.withSession(ctx, chartID, func(dt *devtools, t *tab, sessionID string) error {
		data, err := dt.screenshot(ctx, sessionID)
		if err != nil {
			c.dropSession(t)
			return NewError(CodeEvalFailure, "screenshot failed", err)
		}
		png, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			return NewError(CodeEvalFailure, "invalid screenshot data", err)
		}
		return nil
	})
	return png, err
}

func (c *Client) evalOnChart(ctx context.Context, chartID, js string, out any) error {
	return c.withSession(ctx, chartID, func(dt *devtools, t *tab, sessionID string) error {
		return c.eval(ctx, dt, t, sessionID, js, out)
	})
}

// withSession runs fn against an attached session on chartID, holding the
// chart lock. Transient failures trigger one reconnect or tab refresh and a
// retry.
func (c *Client) withSession(ctx context.Context, chartID string, fn func(*devtools, *tab, string) error) error {
	chartID = strings.TrimSpace(chartID)
	if chartID == "" {
		return NewError(CodeChartNotFound, "chart id is required", nil)
	}
	lock := c.chartLock(chartID)
	lock.Lock()
	defer lock.Unlock()

	attempt := func() error {
		dt, t, err := c.lookup(ctx, chartID)
		if err != nil {
			return err
		}
		sessionID, err := c.attach(ctx, dt, t)
		if err != nil {
			return err
		}
		return fn(dt, t, sessionID)
	}

	err := attempt()
	if err == nil || !retryable(err) {
		return err
	}
	slog.Warn("cdpcontrol retrying after transient failure", "chart_id", chartID, "error", err)
	if hasCode(err, CodeCDPUnavailable) {
		c.mu.Lock()
		recErr := c.connectLocked(ctx)
		c.mu.Unlock()
		if recErr != nil {
			return recErr
		}
	} else if refErr := c.refresh(ctx); refErr != nil {
		slog.Warn("cdpcontrol tab refresh failed", "chart_id", chartID, "error", refErr)
	}
	return attempt()
}

func (c *Client) eval(ctx context.Context, dt *devtools, t *tab, sessionID, js string, out any) error {
	evalCtx, cancel := context.WithTimeout(ctx, c.evalTimeout)
	defer cancel()

	raw, err := dt.evaluate(evalCtx, sessionID, js)
	if err != nil {
		c.dropSession(t)
		if errors.Is(err, context.DeadlineExceeded) {
			return NewError(CodeEvalTimeout, "evaluation timed out", err)
		}
		if errors.Is(err, errConnClosed) {
			return NewError(CodeCDPUnavailable, "CDP connection lost", err)
		}
		return NewError(CodeEvalFailure, "evaluation failed", err)
	}
	return decodeEnvelope(raw, out)
}

func decodeEnvelope(raw string, out any) error {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return NewError(CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = CodeEvalFailure
		}
		return NewError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return NewError(CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

func (c *Client) lookup(ctx context.Context, chartID string) (*devtools, *tab, error) {
	if dt, t, ok := c.find(chartID); ok {
		return dt, t, nil
	}
	if err := c.refresh(ctx); err != nil {
		return nil, nil, err
	}
	if dt, t, ok := c.find(chartID); ok {
		return dt, t, nil
	}
	return nil, nil, NewError(CodeChartNotFound, "chart not found: "+chartID, nil)
}

func (c *Client) find(chartID string) (*devtools, *tab, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byChart[chartID]
	if !ok || c.dt == nil {
		return nil, nil, false
	}
	t := c.tabs[id]
	return c.dt, t, t != nil
}

func (c *Client) attach(ctx context.Context, dt *devtools, t *tab) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID != "" {
		return t.sessionID, nil
	}
	sid, err := dt.attach(ctx, t.info.TargetID)
	if err != nil {
		return "", NewError(CodeCDPUnavailable, "attach to target failed", err)
	}
	t.sessionID = sid
	slog.Debug("cdpcontrol session attached", "target_id", t.info.TargetID, "session_id", sid)
	return sid, nil
}

func (c *Client) dropSession(t *tab) {
	t.mu.Lock()
	t.sessionID = ""
	t.mu.Unlock()
}

func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dt == nil {
		return c.connectLocked(ctx)
	}
	return c.syncLocked(ctx)
}

// syncLocked reconciles tabs with the browser's page targets, keeping
// attached sessions for tabs that are still open.
func (c *Client) syncLocked(ctx context.Context) error {
	if c.dt == nil {
		return NewError(CodeCDPUnavailable, "CDP client not connected", nil)
	}
	targets, err := c.dt.targets(ctx)
	if err != nil {
		return NewError(CodeCDPUnavailable, "failed to list targets", err)
	}

	seen := make(map[target.ID]bool)
	byChart := make(map[string]target.ID)
	for _, ti := range targets {
		if ti.Type != "page" {
			continue
		}
		if c.tabFilter != "" && !strings.Contains(strings.ToLower(ti.URL), c.tabFilter) {
			continue
		}
		chartID := chartIDFromURL(ti.URL)
		if chartID == "" {
			continue
		}
		info := ChartInfo{ChartID: chartID, TargetID: string(ti.TargetID), URL: ti.URL, Title: ti.Title}
		if t, ok := c.tabs[ti.TargetID]; ok {
			t.info = info
		} else {
			c.tabs[ti.TargetID] = &tab{info: info}
		}
		seen[ti.TargetID] = true
		byChart[chartID] = ti.TargetID
	}
	for id := range c.tabs {
		if !seen[id] {
			delete(c.tabs, id)
		}
	}
	c.byChart = byChart

	c.locksMu.Lock()
	for id := range c.locks {
		if _, ok := byChart[id]; !ok {
			delete(c.locks, id)
		}
	}
	c.locksMu.Unlock()

	slog.Debug("cdpcontrol tabs synced", "targets", len(targets), "charts", len(byChart))
	return nil
}

func (c *Client) chartLock(chartID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	m, ok := c.locks[chartID]
	if !ok {
		m = &sync.Mutex{}
		c.locks[chartID] = m
	}
	return m
}

func retryable(err error) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}
	switch coded.Code {
	case CodeCDPUnavailable:
		return true
	case CodeEvalFailure:
		if coded.Cause == nil {
			return false
		}
		cause := strings.ToLower(coded.Cause.Error())
		for _, hint := range retryHints {
			if strings.Contains(cause, hint) {
				return true
			}
		}
	}
	return false
}

func hasCode(err error, code string) bool {
	var coded *CodedError
	return errors.As(err, &coded) && coded.Code == code
}

func chartIDFromURL(url string) string {
	m := chartURLPattern.FindStringSubmatch(url)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
