package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"CHROMIUM_CDP_ADDRESS", "CHROMIUM_CDP_PORT", "STRATEGIST_BIND_ADDR", "STRATEGIST_PORT_CANDIDATES",
		"STRATEGIST_EVAL_TIMEOUT_MS", "STRATEGIST_STEP_DELAY_MS", "STRATEGIST_SEQUENCE_THRESHOLD",
		"STRATEGIST_PROFILE", "TRADEPLAN_EXTENDED_STOP_MULT", "TRADEPLAN_DEFAULT_STOP_PCT", "OPENAI_MODEL",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.CDPURL(), "http://127.0.0.1:9220"; got != want {
		t.Fatalf("CDPURL() = %q, want %q", got, want)
	}
	if got, want := cfg.BindAddr, defaultBindAddr; got != want {
		t.Fatalf("BindAddr = %q, want %q", got, want)
	}
	if got, want := cfg.PortCandidates, []string{"127.0.0.1:8191", "127.0.0.1:8192", "127.0.0.1:8193"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("PortCandidates = %v, want %v", got, want)
	}
	if got, want := cfg.EvalTimeout(), 5*time.Second; got != want {
		t.Fatalf("EvalTimeout() = %v, want %v", got, want)
	}
	if got, want := cfg.StepDelay(), 600*time.Millisecond; got != want {
		t.Fatalf("StepDelay() = %v, want %v", got, want)
	}
	if got, want := cfg.SequenceThreshold, 2; got != want {
		t.Fatalf("SequenceThreshold = %d, want %d", got, want)
	}
	if got, want := cfg.Profile, "day_trade"; got != want {
		t.Fatalf("Profile = %q, want %q", got, want)
	}
	if got, want := cfg.OpenAIModel, "gpt-4o-mini"; got != want {
		t.Fatalf("OpenAIModel = %q, want %q", got, want)
	}
	tp := cfg.TradePlan()
	if tp.ExtendedStopMultiplier != 1.3 || tp.DefaultStopPct != 2 {
		t.Fatalf("TradePlan() = %+v", tp)
	}
}

func TestLoadOverridesAndClamps(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHROMIUM_CDP_PORT", "9333")
	t.Setenv("STRATEGIST_PORT_CANDIDATES", " 127.0.0.1:9000 , ,127.0.0.1:9001")
	t.Setenv("STRATEGIST_EVAL_TIMEOUT_MS", "10")
	t.Setenv("STRATEGIST_SEQUENCE_THRESHOLD", "0")
	t.Setenv("STRATEGIST_LOG_LEVEL", "DEBUG")
	t.Setenv("STRATEGIST_PORT_AUTO_FALLBACK", "false")
	t.Setenv("TRADEPLAN_EXTENDED_STOP_MULT", "1.8")
	t.Setenv("TRADEPLAN_DEFAULT_STOP_PCT", "150")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.CDPURL(), "http://127.0.0.1:9333"; got != want {
		t.Fatalf("CDPURL() = %q, want %q", got, want)
	}
	if got, want := cfg.PortCandidates, []string{"127.0.0.1:9000", "127.0.0.1:9001"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("PortCandidates = %v, want %v", got, want)
	}
	if got, want := cfg.EvalTimeoutMS, 1000; got != want {
		t.Fatalf("EvalTimeoutMS = %d, want %d", got, want)
	}
	if got, want := cfg.SequenceThreshold, 2; got != want {
		t.Fatalf("SequenceThreshold = %d, want %d", got, want)
	}
	if got, want := cfg.LogLevel, "debug"; got != want {
		t.Fatalf("LogLevel = %q, want %q", got, want)
	}
	if cfg.PortAutoFallback {
		t.Fatal("PortAutoFallback = true, want false")
	}
	tp := cfg.TradePlan()
	if got, want := tp.ExtendedStopMultiplier, 1.8; got != want {
		t.Fatalf("ExtendedStopMultiplier = %v, want %v", got, want)
	}
	if got, want := tp.DefaultStopPct, 2.0; got != want {
		t.Fatalf("DefaultStopPct = %v, want %v", got, want)
	}
}
