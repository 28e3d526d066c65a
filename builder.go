package goScrypt

import (
	"crypto/rand"
	"errors"

	"github.com/MrEthical07/goScrypt/internal/audit"
	"github.com/MrEthical07/goScrypt/internal/rate"
	"github.com/MrEthical07/goScrypt/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder can build exactly one Engine.
type Builder struct {
	config    Config
	logger    *zap.Logger
	redis     redis.UniversalClient
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRedis sets the client backing VerifyFor throttling. It is required
// when VerifyThrottle is enabled and ignored otherwise.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the destination of audit events. It only takes effect
// when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the hash and verify latency buckets. It
// needs metrics enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.VerifyThrottle.Enabled && b.redis == nil {
		return nil, errors.New("VerifyThrottle requires redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hasher, err := password.NewScrypt(password.Config{
		Params:     cfg.DefaultParams(),
		SaltLength: cfg.Encoded.SaltLength,
		KeyLength:  cfg.Encoded.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:  cfg,
		logger:  logger.Named("goscrypt"),
		hasher:  hasher,
		metrics: NewMetrics(cfg.Metrics),
		entropy: rand.Reader,
	}

	if cfg.VerifyThrottle.Enabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:      cfg.VerifyThrottle.RedisPrefix,
			MaxAttempts: cfg.VerifyThrottle.MaxAttempts,
			Cooldown:    cfg.VerifyThrottle.Cooldown,
		})
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:      cfg.Audit.Enabled,
		BufferSize:   cfg.Audit.BufferSize,
		DropIfFull:   cfg.Audit.DropIfFull,
		CloseTimeout: cfg.Audit.CloseTimeout,
	}, b.auditSink, engine.logger)

	for _, w := range cfg.Lint() {
		engine.logger.Debug("config lint", zap.String("code", w.Code), zap.String("message", w.Message))
	}

	b.built = true

	return engine, nil
}
