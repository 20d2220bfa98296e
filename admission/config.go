package admission

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/time/rate"

	"github.com/vinayprograms/gatekit/breaker"
	"github.com/vinayprograms/gatekit/budget"
	gateerrors "github.com/vinayprograms/gatekit/errors"
	"github.com/vinayprograms/gatekit/logging"
	"github.com/vinayprograms/gatekit/pricing"
	"github.com/vinayprograms/gatekit/telemetry"
	"github.com/vinayprograms/gatekit/usage"
)

// Config controls a Manager.
type Config struct {
	// DefaultRequestsPerMinute applies to providers registered without
	// their own request limit.
	DefaultRequestsPerMinute int

	// DefaultTokensPerMinute applies to providers registered without
	// their own token limit.
	DefaultTokensPerMinute int

	// WindowDuration is the length of every provider's rate window.
	WindowDuration time.Duration

	// DefaultCostPerInputToken prices tokens for providers and models
	// the pricing catalog does not know, in USD per token.
	DefaultCostPerInputToken float64

	// DefaultCostPerOutputToken is the output-side fallback price.
	DefaultCostPerOutputToken float64

	// Budget configures the shared spend ledger. A zero TotalUSD
	// disables budget enforcement.
	Budget budget.Config

	// Breaker configures every provider's circuit breaker. The Emitter
	// field is ignored; breakers emit through the manager.
	Breaker breaker.Config

	// MaxQueueSize caps each provider's wait queue.
	MaxQueueSize int

	// DefaultRequestTimeout bounds how long a queued request may wait.
	DefaultRequestTimeout time.Duration

	// DrainInterval is how often the drain loop re-checks queue heads.
	DrainInterval time.Duration

	// DrainRate caps dispatches per second across all providers.
	DrainRate rate.Limit

	// DrainBurst is the dispatch burst allowance.
	DrainBurst int

	// UsageHistoryCap bounds the built-in usage recorder. Ignored when
	// Recorder is set.
	UsageHistoryCap int

	// Providers are registered during New.
	Providers []ProviderConfig

	// Pricing overrides the built-in model price catalog.
	Pricing *pricing.Table

	// Recorder receives a usage sample per Record call. Defaults to an
	// in-memory recorder; pass a sqlite recorder for persistence.
	Recorder usage.Recorder

	// Logger receives admission decisions. Defaults to a gate
	// component logger.
	Logger *logging.Logger

	// Exporter receives one telemetry record per Check, when set.
	Exporter telemetry.Exporter
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultRequestsPerMinute: 60,
		DefaultTokensPerMinute:   100000,
		WindowDuration:           time.Minute,
		Budget:                   budget.DefaultConfig(),
		Breaker:                  breaker.DefaultConfig(),
		MaxQueueSize:             100,
		DefaultRequestTimeout:    5 * time.Minute,
		DrainInterval:            time.Second,
		DrainRate:                10,
		DrainBurst:               1,
		UsageHistoryCap:          usage.DefaultMemoryCapacity,
	}
}

// Validate checks the configuration for contradictions.
func (c Config) Validate() error {
	if c.DefaultRequestsPerMinute < 0 {
		return gateerrors.InvalidConfig("default requests per minute must not be negative")
	}
	if c.DefaultTokensPerMinute < 0 {
		return gateerrors.InvalidConfig("default tokens per minute must not be negative")
	}
	if c.WindowDuration < 0 {
		return gateerrors.InvalidConfig("window duration must not be negative")
	}
	if c.Budget.TotalUSD < 0 {
		return gateerrors.InvalidConfig("budget total must not be negative")
	}
	if c.MaxQueueSize < 0 {
		return gateerrors.InvalidConfig("max queue size must not be negative")
	}
	if c.DrainRate < 0 {
		return gateerrors.InvalidConfig("drain rate must not be negative")
	}
	for _, p := range c.Providers {
		if p.ProviderID == "" {
			return gateerrors.InvalidConfig("provider id is required")
		}
		if p.RequestsPerMinute < 0 || p.TokensPerMinute < 0 {
			return gateerrors.InvalidConfig(fmt.Sprintf("provider %s has negative limits", p.ProviderID))
		}
	}
	return nil
}

// applyDefaults fills unset fields from DefaultConfig. Collaborator
// fields stay nil; the manager defaults those itself.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.DefaultRequestsPerMinute == 0 {
		c.DefaultRequestsPerMinute = def.DefaultRequestsPerMinute
	}
	if c.DefaultTokensPerMinute == 0 {
		c.DefaultTokensPerMinute = def.DefaultTokensPerMinute
	}
	if c.WindowDuration == 0 {
		c.WindowDuration = def.WindowDuration
	}
	if c.Budget.Period == 0 {
		c.Budget.Period = def.Budget.Period
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = def.MaxQueueSize
	}
	if c.DefaultRequestTimeout == 0 {
		c.DefaultRequestTimeout = def.DefaultRequestTimeout
	}
	if c.DrainInterval == 0 {
		c.DrainInterval = def.DrainInterval
	}
	if c.DrainRate == 0 {
		c.DrainRate = def.DrainRate
	}
	if c.DrainBurst == 0 {
		c.DrainBurst = def.DrainBurst
	}
	if c.UsageHistoryCap == 0 {
		c.UsageHistoryCap = def.UsageHistoryCap
	}
}

// LoadConfig loads a manager configuration from a TOML file.
func LoadConfig(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(string(content))
}

// ParseConfig parses a manager configuration from TOML content.
// Omitted fields keep their defaults.
func ParseConfig(content string) (Config, error) {
	var raw struct {
		DefaultRequestsPerMinute  int     `toml:"default_requests_per_minute"`
		DefaultTokensPerMinute    int     `toml:"default_tokens_per_minute"`
		WindowSeconds             int     `toml:"window_seconds"`
		DefaultCostPerInputToken  float64 `toml:"default_cost_per_input_token"`
		DefaultCostPerOutputToken float64 `toml:"default_cost_per_output_token"`
		UsageHistoryCap           int     `toml:"usage_history_cap"`

		Budget *struct {
			TotalUSD    float64 `toml:"total_usd"`
			PeriodHours int     `toml:"period_hours"`
		} `toml:"budget"`

		Breaker *struct {
			FailureThreshold     int `toml:"failure_threshold"`
			FailureWindowSeconds int `toml:"failure_window_seconds"`
			ResetTimeoutSeconds  int `toml:"reset_timeout_seconds"`
			SuccessThreshold     int `toml:"success_threshold"`
		} `toml:"breaker"`

		Queue *struct {
			MaxSize               int `toml:"max_size"`
			DefaultTimeoutSeconds int `toml:"default_timeout_seconds"`
		} `toml:"queue"`

		Drain *struct {
			IntervalSeconds int     `toml:"interval_seconds"`
			RatePerSecond   float64 `toml:"rate_per_second"`
			Burst           int     `toml:"burst"`
		} `toml:"drain"`

		Providers []ProviderConfig `toml:"providers"`
	}
	if _, err := toml.Decode(content, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := DefaultConfig()
	if raw.DefaultRequestsPerMinute != 0 {
		cfg.DefaultRequestsPerMinute = raw.DefaultRequestsPerMinute
	}
	if raw.DefaultTokensPerMinute != 0 {
		cfg.DefaultTokensPerMinute = raw.DefaultTokensPerMinute
	}
	if raw.WindowSeconds != 0 {
		cfg.WindowDuration = time.Duration(raw.WindowSeconds) * time.Second
	}
	cfg.DefaultCostPerInputToken = raw.DefaultCostPerInputToken
	cfg.DefaultCostPerOutputToken = raw.DefaultCostPerOutputToken
	if raw.UsageHistoryCap != 0 {
		cfg.UsageHistoryCap = raw.UsageHistoryCap
	}

	if raw.Budget != nil {
		cfg.Budget.TotalUSD = raw.Budget.TotalUSD
		if raw.Budget.PeriodHours != 0 {
			cfg.Budget.Period = time.Duration(raw.Budget.PeriodHours) * time.Hour
		}
	}
	if raw.Breaker != nil {
		if raw.Breaker.FailureThreshold != 0 {
			cfg.Breaker.FailureThreshold = raw.Breaker.FailureThreshold
		}
		if raw.Breaker.FailureWindowSeconds != 0 {
			cfg.Breaker.FailureWindow = time.Duration(raw.Breaker.FailureWindowSeconds) * time.Second
		}
		if raw.Breaker.ResetTimeoutSeconds != 0 {
			cfg.Breaker.ResetTimeout = time.Duration(raw.Breaker.ResetTimeoutSeconds) * time.Second
		}
		if raw.Breaker.SuccessThreshold != 0 {
			cfg.Breaker.SuccessThreshold = raw.Breaker.SuccessThreshold
		}
	}
	if raw.Queue != nil {
		if raw.Queue.MaxSize != 0 {
			cfg.MaxQueueSize = raw.Queue.MaxSize
		}
		if raw.Queue.DefaultTimeoutSeconds != 0 {
			cfg.DefaultRequestTimeout = time.Duration(raw.Queue.DefaultTimeoutSeconds) * time.Second
		}
	}
	if raw.Drain != nil {
		if raw.Drain.IntervalSeconds != 0 {
			cfg.DrainInterval = time.Duration(raw.Drain.IntervalSeconds) * time.Second
		}
		if raw.Drain.RatePerSecond != 0 {
			cfg.DrainRate = rate.Limit(raw.Drain.RatePerSecond)
		}
		if raw.Drain.Burst != 0 {
			cfg.DrainBurst = raw.Drain.Burst
		}
	}
	cfg.Providers = raw.Providers

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
