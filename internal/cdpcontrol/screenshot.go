package cdpcontrol

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/snapshot"
)

const captureTimeout = 15 * time.Second

// Screenshotter captures the chart tab and stores the image. The returned
// snapshot id is the opaque image reference.
type Screenshotter struct {
	client  *Client
	store   *snapshot.Store
	session *chartctl.Session
	chartID string

	capture func(ctx context.Context, chart ChartInfo) (png []byte, source string, err error)
}

// NewScreenshotter captures chartID, or the first chart tab when empty.
// session may be nil; when set, its chart state is recorded with the image.
func NewScreenshotter(client *Client, store *snapshot.Store, session *chartctl.Session, chartID string) *Screenshotter {
	s := &Screenshotter{client: client, store: store, session: session, chartID: chartID}
	s.capture = s.captureChart
	return s
}

// CaptureChartScreenshot implements sequence.Screenshotter.
func (s *Screenshotter) CaptureChartScreenshot(ctx context.Context) (string, error) {
	chart, err := s.client.ResolveChart(ctx, s.chartID)
	if err != nil {
		return "", err
	}
	return s.save(ctx, chart)
}

func (s *Screenshotter) save(ctx context.Context, chart ChartInfo) (string, error) {
	png, source, err := s.capture(ctx, chart)
	if err != nil {
		return "", err
	}

	meta := snapshot.Meta{
		ID:      snapshot.NewID(),
		ChartID: chart.ChartID,
		Format:  "png",
		Title:   chart.Title,
		Source:  source,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(png)); err == nil {
		meta.Width, meta.Height = cfg.Width, cfg.Height
	}
	if s.session != nil {
		snap := s.session.State().Snapshot()
		meta.Timeframe, meta.ChartType = snap.Timeframe, snap.ChartType
	}

	saved, err := s.store.Save(meta, png)
	if err != nil {
		return "", err
	}
	slog.Info("chart screenshot stored", "id", saved.ID, "chart_id", saved.ChartID, "size_bytes", saved.SizeBytes)
	return saved.ID, nil
}

// captureChart attaches chromedp to the chart target. When that fails it
// falls back to the client's own session.
func (s *Screenshotter) captureChart(ctx context.Context, chart ChartInfo) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, s.client.CDPURL())
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(target.ID(chart.TargetID)))
	defer tabCancel()

	var png []byte
	err := chromedp.Run(tabCtx, chromedp.CaptureScreenshot(&png))
	if err == nil {
		return png, "chromedp", nil
	}

	slog.Warn("chromedp capture failed, using cdp session", "chart_id", chart.ChartID, "error", err)
	png, fbErr := s.client.CaptureScreenshot(ctx, chart.ChartID)
	if fbErr != nil {
		return nil, "", fmt.Errorf("capture chart %s: %w", chart.ChartID, fbErr)
	}
	return png, "cdp", nil
}
