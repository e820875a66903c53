package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/tv_strategist/internal/api"
	"github.com/dgnsrekt/tv_strategist/internal/cdpcontrol"
	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/config"
	"github.com/dgnsrekt/tv_strategist/internal/controller"
	"github.com/dgnsrekt/tv_strategist/internal/indicators"
	"github.com/dgnsrekt/tv_strategist/internal/llm"
	"github.com/dgnsrekt/tv_strategist/internal/mcptools"
	"github.com/dgnsrekt/tv_strategist/internal/netutil"
	"github.com/dgnsrekt/tv_strategist/internal/overlay"
	"github.com/dgnsrekt/tv_strategist/internal/sequence"
	"github.com/dgnsrekt/tv_strategist/internal/snapshot"
	"github.com/dgnsrekt/tv_strategist/internal/strategist"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("tv_strategist config loaded",
		"bind_addr", cfg.BindAddr,
		"cdp_url", cfg.CDPURL(),
		"tab_url_filter", cfg.TabURLFilter,
		"chart_id", cfg.ChartID,
		"eval_timeout_ms", cfg.EvalTimeoutMS,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
		"snapshot_dir", cfg.SnapshotDir,
		"step_delay_ms", cfg.StepDelayMS,
		"sequence_threshold", cfg.SequenceThreshold,
		"profile", cfg.Profile,
		"openai_model", cfg.OpenAIModel,
	)

	registry := indicators.DefaultRegistry()
	if cfg.IndicatorRegistry != "" {
		registry, err = indicators.LoadRegistry(cfg.IndicatorRegistry)
		if err != nil {
			slog.Error("failed to load indicator registry", "path", cfg.IndicatorRegistry, "error", err)
			os.Exit(1)
		}
	}

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	bindAddr := ln.Addr().String()

	session := chartctl.NewSession()
	bus := overlay.NewBus()

	snapStore, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		slog.Error("failed to create snapshot store", "dir", cfg.SnapshotDir, "error", err)
		os.Exit(1)
	}

	// The chart browser may come up after the strategist. Without it actions
	// are dropped and logged until a restart.
	cdpClient := cdpcontrol.NewClient(cfg.CDPURL(), cfg.TabURLFilter, cfg.EvalTimeout())
	var shots sequence.Screenshotter
	if err := cdpClient.Connect(context.Background()); err != nil {
		slog.Warn("chart browser unavailable, running without a chart bridge", "cdp_url", cfg.CDPURL(), "error", err)
	} else {
		session.Register(cdpcontrol.NewChartBridge(cdpClient, cfg.ChartID, registry))
		shots = cdpcontrol.NewScreenshotter(cdpClient, snapStore, session, cfg.ChartID)
		slog.Info("chart bridge registered", "cdp_url", cfg.CDPURL())
	}
	defer func() {
		if err := cdpClient.Close(); err != nil {
			slog.Debug("CDP client close failed", "error", err)
		}
	}()

	engine := sequence.NewEngine(session, bus, registry, shots)
	tools := strategist.NewToolset(registry)

	var reasoner llm.Reasoner
	openai, err := llm.NewOpenAIReasoner(llm.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	switch {
	case errors.Is(err, llm.ErrNoAPIKey):
		slog.Warn("no reasoning backend configured, chat replies will be summaries only")
	case err != nil:
		slog.Error("failed to create reasoning backend", "error", err)
		os.Exit(1)
	default:
		reasoner = openai
	}

	var analyzer strategist.Analyzer
	if reasoner != nil {
		analyzer = strategist.NewModelAnalyzer(reasoner, cfg.TradePlan())
	}
	orch := strategist.New(session, engine, reasoner, analyzer, tools, strategist.Config{
		SequenceThreshold: cfg.SequenceThreshold,
		DefaultProfile:    cfg.Profile,
		StepDelay:         cfg.StepDelay(),
		BridgeWait:        cfg.BridgeWait(),
	})

	svc := controller.NewService(controller.Deps{
		Session:    session,
		Engine:     engine,
		Bus:        bus,
		Registry:   registry,
		Tools:      tools,
		Strategist: orch,
		Snapshots:  snapStore,
		TradePlan:  cfg.TradePlan(),
		StepDelay:  cfg.StepDelay(),
		BridgeWait: cfg.BridgeWait(),
		Profile:    cfg.Profile,
	})

	mcpSrv := mcptools.NewServer(svc, mcptools.ServerConfig{Version: version})
	h := api.NewServer(svc, mcptools.NewHTTPHandler(mcpSrv))

	srv := &http.Server{Handler: h}

	go func() {
		slog.Info("tv_strategist listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("tv_strategist server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancelled := bus.Cancel()
	slog.Info("tv_strategist shutting down", "cancelled_runs", cancelled)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("tv_strategist shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
