package cdpcontrol

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"testing"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/snapshot"
)

func tinyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	return buf.Bytes()
}

func TestScreenshotterStoresCapture(t *testing.T) {
	withDefaultHTTPClient(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, []map[string]any{
			{"id": "T1", "type": "page", "title": "BTCUSD", "url": "https://www.tradingview.com/chart/aaa/"},
		}), nil
	}))

	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	session := chartctl.NewSession()
	session.State().Apply(chartctl.SetTimeframe("4h"))

	img := tinyPNG(t, 8, 4)
	shots := NewScreenshotter(offlineClient(""), store, session, "")
	var captured ChartInfo
	shots.capture = func(_ context.Context, chart ChartInfo) ([]byte, string, error) {
		captured = chart
		return img, "chromedp", nil
	}

	id, err := shots.CaptureChartScreenshot(context.Background())
	if err != nil {
		t.Fatalf("CaptureChartScreenshot() error: %v", err)
	}
	if got, want := captured.TargetID, "T1"; got != want {
		t.Fatalf("captured target = %q, want %q", got, want)
	}

	meta, err := store.Get(id)
	if err != nil {
		t.Fatalf("store.Get(%q) error: %v", id, err)
	}
	if meta.ChartID != "aaa" || meta.Title != "BTCUSD" || meta.Timeframe != "4h" {
		t.Fatalf("meta = %+v", meta)
	}
	if meta.Width != 8 || meta.Height != 4 {
		t.Fatalf("dimensions = %dx%d, want 8x4", meta.Width, meta.Height)
	}
	if got, want := meta.Source, "chromedp"; got != want {
		t.Fatalf("source = %q, want %q", got, want)
	}
}

func TestScreenshotterPropagatesCaptureFailure(t *testing.T) {
	withDefaultHTTPClient(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, []map[string]any{
			{"id": "T1", "type": "page", "url": "https://www.tradingview.com/chart/aaa/"},
		}), nil
	}))

	dir := t.TempDir()
	store, err := snapshot.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	boom := errors.New("capture failed")
	shots := NewScreenshotter(offlineClient(""), store, nil, "")
	shots.capture = func(context.Context, ChartInfo) ([]byte, string, error) {
		return nil, "", boom
	}

	if _, err := shots.CaptureChartScreenshot(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("CaptureChartScreenshot() error = %v, want %v", err, boom)
	}
	metas, err := store.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(metas) != 0 {
		t.Fatalf("stored %d snapshots after failure", len(metas))
	}
}
