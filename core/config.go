package core

import (
	"fmt"
	"strings"
	"time"
)

type TokenConfig struct {
	SafetyMargin          time.Duration `koanf:"safety_margin" mapstructure:"safety_margin"`
	NegotiationAttempts   int           `koanf:"negotiation_attempts" mapstructure:"negotiation_attempts"`
	NegotiationBackoff    time.Duration `koanf:"negotiation_backoff" mapstructure:"negotiation_backoff"`
	NegotiationMaxBackoff time.Duration `koanf:"negotiation_max_backoff" mapstructure:"negotiation_max_backoff"`
}

type RetryConfig struct {
	MaxAttempts        int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff     time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff         time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
	MaxThrottleRetries int           `koanf:"max_throttle_retries" mapstructure:"max_throttle_retries"`
}

type ThrottleConfig struct {
	InitialBackoff         time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff             time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
	SuccessStreakThreshold int           `koanf:"success_streak_threshold" mapstructure:"success_streak_threshold"`
}

type BatchConfig struct {
	// IncludeDelivered disables the journal check that drops already
	// delivered shipments from a batch.
	IncludeDelivered bool  `koanf:"include_delivered" mapstructure:"include_delivered"`
	MaxResponseBytes int64 `koanf:"max_response_bytes" mapstructure:"max_response_bytes"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Token       TokenConfig    `koanf:"token" mapstructure:"token"`
	Retry       RetryConfig    `koanf:"retry" mapstructure:"retry"`
	Throttle    ThrottleConfig `koanf:"throttle" mapstructure:"throttle"`
	Batch       BatchConfig    `koanf:"batch" mapstructure:"batch"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "carriers",
		Token: TokenConfig{
			SafetyMargin:          DefaultTokenSafetyMargin,
			NegotiationAttempts:   3,
			NegotiationBackoff:    500 * time.Millisecond,
			NegotiationMaxBackoff: 5 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:        3,
			InitialBackoff:     500 * time.Millisecond,
			MaxBackoff:         10 * time.Second,
			MaxThrottleRetries: 6,
		},
		Throttle: ThrottleConfig{
			InitialBackoff:         time.Second,
			MaxBackoff:             time.Minute,
			SuccessStreakThreshold: 10,
		},
		Batch: BatchConfig{
			MaxResponseBytes: 64 << 20,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Token.SafetyMargin < 0 {
		return fmt.Errorf("core: token safety_margin must not be negative")
	}
	if c.Token.NegotiationAttempts < 1 {
		return fmt.Errorf("core: token negotiation_attempts must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("core: retry max_attempts must be at least 1")
	}
	if c.Retry.MaxThrottleRetries < 1 {
		return fmt.Errorf("core: retry max_throttle_retries must be at least 1")
	}
	if c.Throttle.SuccessStreakThreshold < 1 {
		return fmt.Errorf("core: throttle success_streak_threshold must be at least 1")
	}
	if c.Batch.MaxResponseBytes < 0 {
		return fmt.Errorf("core: batch max_response_bytes must not be negative")
	}
	return nil
}
