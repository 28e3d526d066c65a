package main

import (
	"fmt"
	"strings"
	"time"

	goScrypt "github.com/MrEthical07/goScrypt"
	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// envConfig is the process environment understood by goscrypt. A .env file
// in the working directory is loaded first when present.
type envConfig struct {
	LogN         uint8  `env:"GOSCRYPT_LN" envDefault:"15"`
	BlockSize    uint32 `env:"GOSCRYPT_R" envDefault:"8"`
	Parallelism  uint32 `env:"GOSCRYPT_P" envDefault:"1"`
	OutputLength uint32 `env:"GOSCRYPT_LEN" envDefault:"8"`

	MaxLogN   uint8  `env:"GOSCRYPT_MAX_LN" envDefault:"20"`
	MaxMemory string `env:"GOSCRYPT_MAX_MEMORY"`
	Normalize bool   `env:"GOSCRYPT_NORMALIZE"`

	LogLevel string `env:"GOSCRYPT_LOG_LEVEL" envDefault:"warn"`

	RedisAddr         string        `env:"GOSCRYPT_REDIS_ADDR"`
	RedisPrefix       string        `env:"GOSCRYPT_REDIS_PREFIX" envDefault:"gs"`
	VerifyMaxAttempts int           `env:"GOSCRYPT_VERIFY_MAX_ATTEMPTS"`
	VerifyCooldown    time.Duration `env:"GOSCRYPT_VERIFY_COOLDOWN" envDefault:"15m"`
	Audit             bool          `env:"GOSCRYPT_AUDIT"`
	LatencyHistograms bool          `env:"GOSCRYPT_LATENCY_HISTOGRAMS" envDefault:"true"`
}

// loadEnv parses environ, or the process environment when environ is nil.
func loadEnv(environ map[string]string) (envConfig, error) {
	var cfg envConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return envConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// throttled reports whether verification should be throttled per subject.
func (c envConfig) throttled() bool {
	return c.VerifyMaxAttempts > 0
}

// engineConfig layers the environment on top of the library defaults.
func (c envConfig) engineConfig() (goScrypt.Config, error) {
	cfg := goScrypt.DefaultConfig()

	cfg.Defaults.LogN = c.LogN
	cfg.Defaults.BlockSize = c.BlockSize
	cfg.Defaults.Parallelism = c.Parallelism
	cfg.Defaults.OutputLength = c.OutputLength
	cfg.Limits.MaxLogN = c.MaxLogN
	cfg.Security.NormalizeUnicode = c.Normalize
	cfg.Audit.Enabled = c.Audit
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = c.LatencyHistograms

	if c.MaxMemory != "" {
		n, err := humanize.ParseBytes(c.MaxMemory)
		if err != nil {
			return goScrypt.Config{}, fmt.Errorf("GOSCRYPT_MAX_MEMORY: %w", err)
		}
		cfg.Limits.MaxMemoryBytes = n
	}

	if c.throttled() {
		cfg.VerifyThrottle.Enabled = true
		cfg.VerifyThrottle.MaxAttempts = c.VerifyMaxAttempts
		cfg.VerifyThrottle.Cooldown = c.VerifyCooldown
		cfg.VerifyThrottle.RedisPrefix = c.RedisPrefix
	}

	return cfg, cfg.Validate()
}

// newLogger writes to stderr so command output on stdout stays parseable.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("GOSCRYPT_LOG_LEVEL: %w", err)
	}

	zc := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}
