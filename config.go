package goScrypt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goScrypt/password"
)

// Config defines how an Engine resolves defaults, bounds work, and reports.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Defaults       DefaultsConfig
	Raw            RawConfig
	Encoded        EncodedConfig
	Limits         LimitsConfig
	Security       SecurityConfig
	VerifyThrottle VerifyThrottleConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
}

/*
====================================
DEFAULTS CONFIG
====================================
*/

// DefaultsConfig holds the values used when a call does not set an option.
type DefaultsConfig struct {
	LogN         uint8  // log2 of N; 15 means N = 32768
	BlockSize    uint32 // r
	Parallelism  uint32 // p
	OutputLength uint32 // raw mode derived key bytes
}

/*
====================================
OUTPUT MODE CONFIG
====================================
*/

// RawConfig configures raw hex mode.
type RawConfig struct {
	// SaltLength is the number of random bytes generated when no salt is supplied.
	SaltLength uint32
}

// EncodedConfig configures PHC encoded mode.
type EncodedConfig struct {
	SaltLength uint32
	KeyLength  uint32
}

/*
====================================
LIMITS CONFIG
====================================
*/

// LimitsConfig bounds the work a single call may request. Zero disables a
// ceiling except where noted.
type LimitsConfig struct {
	MaxLogN          uint8
	MaxBlockSize     uint32
	MaxParallelism   uint32
	MaxMemoryBytes   uint64
	MaxOutputLength  uint32
	MaxPasswordBytes int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds password handling switches.
type SecurityConfig struct {
	// NormalizeUnicode applies NFKC to passwords before hashing. Off by default:
	// password bytes are used verbatim.
	NormalizeUnicode bool
	// WarnEmptyPassword logs and counts hashes of empty passwords.
	WarnEmptyPassword bool
}

// VerifyThrottleConfig configures the Redis-backed attempt budget of VerifyFor.
type VerifyThrottleConfig struct {
	Enabled     bool
	RedisPrefix string
	MaxAttempts int
	Cooldown    time.Duration
}

// AuditConfig controls audit event dispatching.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// CloseTimeout bounds how long Close waits for a blocked sink.
	CloseTimeout time.Duration
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns ln=15, r=8, p=1 with an 8-byte raw output, matching
// the historical scrypt() extension defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

// HighSecurityConfig raises the default cost to ln=17 and enables verify
// throttling. It requires a Redis client at Build time.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.Defaults.LogN = 17
	cfg.Defaults.OutputLength = 32
	cfg.Raw.SaltLength = 32
	cfg.Encoded.SaltLength = 32
	cfg.VerifyThrottle.Enabled = true
	cfg.VerifyThrottle.MaxAttempts = 5
	cfg.Limits.MaxPasswordBytes = 256
	return cfg
}

func defaultConfig() Config {
	return Config{
		Defaults: DefaultsConfig{
			LogN:         password.DefaultLogN,
			BlockSize:    password.DefaultBlockSize,
			Parallelism:  password.DefaultParallelism,
			OutputLength: 8,
		},
		Raw: RawConfig{
			SaltLength: password.DefaultSaltLength,
		},
		Encoded: EncodedConfig{
			SaltLength: password.DefaultSaltLength,
			KeyLength:  password.DefaultKeyLength,
		},
		Limits: LimitsConfig{
			MaxLogN:          20,
			MaxBlockSize:     64,
			MaxParallelism:   64,
			MaxMemoryBytes:   0,
			MaxOutputLength:  1024,
			MaxPasswordBytes: 1024,
		},
		Security: SecurityConfig{
			NormalizeUnicode:  false,
			WarnEmptyPassword: true,
		},
		VerifyThrottle: VerifyThrottleConfig{
			Enabled:     false,
			RedisPrefix: "gs",
			MaxAttempts: 10,
			Cooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:      false,
			BufferSize:   1024,
			DropIfFull:   true,
			CloseTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultParams returns the configured default cost parameters.
func (c *Config) DefaultParams() Params {
	return Params{
		LogN: c.Defaults.LogN,
		R:    c.Defaults.BlockSize,
		P:    c.Defaults.Parallelism,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	// Defaults
	if err := c.DefaultParams().Validate(); err != nil {
		return fmt.Errorf("Defaults: %w", err)
	}
	if c.Defaults.OutputLength < 1 {
		return errors.New("Defaults OutputLength must be >= 1")
	}
	if err := c.checkLimits(c.DefaultParams()); err != nil {
		return fmt.Errorf("Defaults exceed Limits: %w", err)
	}
	if c.Limits.MaxOutputLength > 0 && c.Defaults.OutputLength > c.Limits.MaxOutputLength {
		return errors.New("Defaults OutputLength exceeds Limits MaxOutputLength")
	}

	// Raw
	if c.Raw.SaltLength < 1 {
		return errors.New("Raw SaltLength must be >= 1")
	}

	// Encoded
	if c.Encoded.SaltLength < 3 || c.Encoded.SaltLength > 48 {
		return errors.New("Encoded SaltLength must be between 3 and 48 bytes")
	}
	if c.Encoded.KeyLength < password.MinOutputLength || c.Encoded.KeyLength > password.MaxOutputLength {
		return fmt.Errorf("Encoded KeyLength must be between %d and %d", password.MinOutputLength, password.MaxOutputLength)
	}

	// Limits
	if c.Limits.MaxPasswordBytes < 0 {
		return errors.New("Limits MaxPasswordBytes must be >= 0")
	}

	// Verify throttle
	if c.VerifyThrottle.Enabled {
		if strings.TrimSpace(c.VerifyThrottle.RedisPrefix) == "" {
			return errors.New("VerifyThrottle RedisPrefix must be set")
		}
		if c.VerifyThrottle.MaxAttempts <= 0 {
			return errors.New("VerifyThrottle MaxAttempts must be > 0")
		}
		if c.VerifyThrottle.Cooldown <= 0 {
			return errors.New("VerifyThrottle Cooldown must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}
	if c.Audit.CloseTimeout < 0 {
		return errors.New("Audit CloseTimeout must be >= 0")
	}

	return nil
}

// checkLimits applies the configured ceilings to p.
func (c *Config) checkLimits(p Params) error {
	l := c.Limits
	if l.MaxLogN > 0 && p.LogN > l.MaxLogN {
		return fmt.Errorf("%w: ln=%d exceeds ceiling %d", ErrInvalidParameters, p.LogN, l.MaxLogN)
	}
	if l.MaxBlockSize > 0 && p.R > l.MaxBlockSize {
		return fmt.Errorf("%w: r=%d exceeds ceiling %d", ErrInvalidParameters, p.R, l.MaxBlockSize)
	}
	if l.MaxParallelism > 0 && p.P > l.MaxParallelism {
		return fmt.Errorf("%w: p=%d exceeds ceiling %d", ErrInvalidParameters, p.P, l.MaxParallelism)
	}
	if l.MaxMemoryBytes > 0 && p.MemoryCost() > l.MaxMemoryBytes {
		return fmt.Errorf("%w: memory cost %d exceeds ceiling %d", ErrInvalidParameters, p.MemoryCost(), l.MaxMemoryBytes)
	}
	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a non-fatal observation about a Config.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	codes := make([]string, 0, len(ws))
	for _, w := range ws {
		codes = append(codes, w.Code)
	}
	return codes
}

// Lint reports settings that are valid but weak or surprising. It never fails.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if c.Defaults.LogN < 14 {
		add("cost_low", "default ln below 14 is weaker than interactive-login guidance")
	}
	if c.Defaults.OutputLength < 16 {
		add("raw_output_short", "raw output shorter than 16 bytes collides more easily")
	}
	if c.Raw.SaltLength < 16 || c.Encoded.SaltLength < 16 {
		add("salt_short", "generated salts shorter than 16 bytes")
	}
	if c.Limits.MaxLogN == 0 && c.Limits.MaxMemoryBytes == 0 {
		add("cost_unbounded", "no cost ceiling: stored hashes can request unbounded work")
	}
	if c.Limits.MaxPasswordBytes == 0 {
		add("password_length_unbounded", "no password length ceiling")
	}
	if !c.VerifyThrottle.Enabled {
		add("verify_throttle_disabled", "VerifyFor does not limit attempts")
	}
	if c.Security.NormalizeUnicode {
		add("normalize_unicode", "NFKC normalization changes hashes produced by other implementations")
	}

	return ws
}
