// Package config loads the strategist's settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgnsrekt/tv_strategist/internal/tradeplan"
)

const defaultBindAddr = "127.0.0.1:8190"

// Config holds configuration for the strategist service.
type Config struct {
	// CDP connection settings
	CDPAddress   string
	CDPPort      int
	TabURLFilter string
	ChartID      string

	// HTTP listener
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	EvalTimeoutMS int
	LogLevel      string
	LogFile       string
	SnapshotDir   string

	// Sequencing and orchestration
	StepDelayMS       int
	BridgeWaitMS      int
	SequenceThreshold int
	Profile           string
	IndicatorRegistry string

	// Reasoning backend
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Trade-plan multipliers
	ExtendedStopMult float64
	DefaultStopPct   float64
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:        getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:           getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		TabURLFilter:      getEnvOrDefault("STRATEGIST_TAB_URL_FILTER", "tradingview.com"),
		ChartID:           os.Getenv("STRATEGIST_CHART_ID"),
		BindAddr:          getEnvOrDefault("STRATEGIST_BIND_ADDR", defaultBindAddr),
		PortCandidates:    splitList(getEnvOrDefault("STRATEGIST_PORT_CANDIDATES", "127.0.0.1:8191,127.0.0.1:8192,127.0.0.1:8193")),
		PortAutoFallback:  getEnvBoolOrDefault("STRATEGIST_PORT_AUTO_FALLBACK", true),
		EvalTimeoutMS:     getEnvIntOrDefault("STRATEGIST_EVAL_TIMEOUT_MS", 5000),
		LogLevel:          strings.ToLower(getEnvOrDefault("STRATEGIST_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("STRATEGIST_LOG_FILE", "logs/tv_strategist.log"),
		SnapshotDir:       getEnvOrDefault("SNAPSHOT_DIR", "./snapshots"),
		StepDelayMS:       getEnvIntOrDefault("STRATEGIST_STEP_DELAY_MS", 600),
		BridgeWaitMS:      getEnvIntOrDefault("STRATEGIST_BRIDGE_WAIT_MS", 3000),
		SequenceThreshold: getEnvIntOrDefault("STRATEGIST_SEQUENCE_THRESHOLD", 2),
		Profile:           getEnvOrDefault("STRATEGIST_PROFILE", "day_trade"),
		IndicatorRegistry: os.Getenv("STRATEGIST_INDICATOR_REGISTRY"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:       getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		ExtendedStopMult:  getEnvFloatOrDefault("TRADEPLAN_EXTENDED_STOP_MULT", 1.3),
		DefaultStopPct:    getEnvFloatOrDefault("TRADEPLAN_DEFAULT_STOP_PCT", 2.0),
	}
	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if cfg.StepDelayMS < 0 {
		cfg.StepDelayMS = 0
	}
	if cfg.BridgeWaitMS < 0 {
		cfg.BridgeWaitMS = 0
	}
	if cfg.SequenceThreshold < 1 {
		cfg.SequenceThreshold = 2
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func (c *Config) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutMS) * time.Millisecond
}

func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.StepDelayMS) * time.Millisecond
}

func (c *Config) BridgeWait() time.Duration {
	return time.Duration(c.BridgeWaitMS) * time.Millisecond
}

// TradePlan returns the trade-plan multipliers, falling back to the
// standard values for anything out of range.
func (c *Config) TradePlan() tradeplan.Config {
	tp := tradeplan.DefaultConfig()
	if c.ExtendedStopMult > 1 {
		tp.ExtendedStopMultiplier = c.ExtendedStopMult
	}
	if c.DefaultStopPct > 0 && c.DefaultStopPct < 100 {
		tp.DefaultStopPct = c.DefaultStopPct
	}
	return tp
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
