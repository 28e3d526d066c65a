package goScrypt

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/goScrypt/internal"
	"github.com/MrEthical07/goScrypt/internal/audit"
	"github.com/MrEthical07/goScrypt/internal/rate"
	"github.com/MrEthical07/goScrypt/password"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Engine hashes and verifies passwords with scrypt.
//
// An Engine is immutable after [Builder.Build] and safe for concurrent use.
// Every call is synchronous; the KDF itself cannot be interrupted, so a
// context only short-circuits calls that have not started work yet.
type Engine struct {
	config  Config
	logger  *zap.Logger
	hasher  *password.Scrypt
	limiter *rate.Limiter
	audit   *audit.Dispatcher
	metrics *Metrics
	entropy io.Reader
}

type outputMode int

const (
	modeRaw outputMode = iota
	modeEncoded
)

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	_ = e.logger.Sync()
}

// AuditDropped returns the number of audit events discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditStats counts what happened to audit events after they were emitted.
type AuditStats struct {
	Delivered uint64
	Dropped   uint64
	Panicked  uint64
}

// AuditStats reports dispatcher totals. It is zero when audit is disabled.
func (e *Engine) AuditStats() AuditStats {
	if e == nil || e.audit == nil {
		return AuditStats{}
	}
	return AuditStats{
		Delivered: e.audit.Delivered(),
		Dropped:   e.audit.Dropped(),
		Panicked:  e.audit.Panicked(),
	}
}

// MetricsSnapshot returns the current counters and histograms. It is empty
// when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Hasher returns a fixed-parameter PHC hasher built from the engine's
// defaults and encoded mode settings.
func (e *Engine) Hasher() *password.Scrypt {
	if e == nil {
		return nil
	}
	return e.hasher
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// DeriveKey runs scrypt in raw mode and returns the derived key as lowercase
// hex of OutputLength bytes. The salt is used verbatim: supplied bytes when
// given, otherwise Raw.SaltLength random bytes reported in the result.
func (e *Engine) DeriveKey(ctx context.Context, pwd []byte, opts ...HashOption) (*RawHash, error) {
	if e == nil {
		return nil, ErrEngineNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := e.resolve(modeRaw, pwd, opts)
	if err != nil {
		e.hashFailed(ctx, auditEventHashRaw, MetricHashFailure, err, req)
		return nil, err
	}

	start := time.Now()
	key, err := password.Key(req.Password, req.Salt, req.Params, int(req.OutputLength))
	e.observe(MetricHashLatency, start)
	if err != nil {
		err = classifyKDFError(err)
		e.hashFailed(ctx, auditEventHashRaw, MetricHashFailure, err, req)
		return nil, err
	}

	e.metricInc(MetricHashSuccess)
	e.emitAudit(ctx, auditEventHashRaw, true, "", "", paramsMetadata(req.Params, req.OutputLength))
	e.logger.Debug("derived raw key",
		zap.Stringer("params", req.Params),
		zap.Uint32("len", req.OutputLength),
		zap.Bool("salt_generated", req.SaltGenerated),
	)

	return &RawHash{
		Hex:           hex.EncodeToString(key),
		Salt:          req.Salt,
		SaltGenerated: req.SaltGenerated,
		Params:        req.Params,
		OutputLength:  req.OutputLength,
	}, nil
}

// HashEncoded runs scrypt and returns a PHC string
// $scrypt$ln=<ln>,r=<r>,p=<p>$<salt>$<hash> that [Engine.Verify] accepts.
func (e *Engine) HashEncoded(ctx context.Context, pwd []byte, opts ...HashOption) (string, error) {
	if e == nil {
		return "", ErrEngineNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	req, err := e.resolve(modeEncoded, pwd, opts)
	if err != nil {
		e.hashFailed(ctx, auditEventHashEncoded, MetricEncodedHashFailure, err, req)
		return "", err
	}

	saltText, err := password.EncodeSalt(req.Salt)
	if err != nil {
		err = classifyKDFError(err)
		e.hashFailed(ctx, auditEventHashEncoded, MetricEncodedHashFailure, err, req)
		return "", err
	}

	start := time.Now()
	encoded, err := password.Encode(req.Password, saltText, req.Params, req.OutputLength)
	e.observe(MetricHashLatency, start)
	if err != nil {
		err = classifyKDFError(err)
		e.hashFailed(ctx, auditEventHashEncoded, MetricEncodedHashFailure, err, req)
		return "", err
	}

	e.metricInc(MetricEncodedHashSuccess)
	e.emitAudit(ctx, auditEventHashEncoded, true, "", "", paramsMetadata(req.Params, req.OutputLength))

	return encoded, nil
}

// Verify reports whether pwd matches the PHC string encoded. The parameters
// embedded in encoded are checked against Config.Limits before any work is
// done. A mismatch is (false, nil); errors are reserved for malformed input.
func (e *Engine) Verify(ctx context.Context, pwd []byte, encoded string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	return e.verify(ctx, "", pwd, encoded)
}

// VerifyFor is Verify guarded by a per-subject attempt budget. When
// VerifyThrottle is enabled, a subject with MaxAttempts mismatches inside the
// Cooldown window gets ErrVerifyRateLimited without any hashing; a match
// clears the counter. Without throttling it behaves exactly like Verify.
func (e *Engine) VerifyFor(ctx context.Context, subject string, pwd []byte, encoded string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if e.limiter == nil {
		return e.verify(ctx, subject, pwd, encoded)
	}
	if subject == "" {
		return false, fmt.Errorf("%w: subject required for throttled verify", ErrInvalidParameters)
	}

	if err := e.limiter.CheckVerify(ctx, subject); err != nil {
		return false, e.throttleError(ctx, subject, err)
	}

	ok, err := e.verify(ctx, subject, pwd, encoded)
	if err != nil {
		return false, err
	}

	if ok {
		if err := e.limiter.ResetVerify(ctx, subject); err != nil {
			e.logger.Warn("verify throttle reset failed", zap.String("subject", subject), zap.Error(err))
		}
		return true, nil
	}

	// The mismatch that exhausts the budget is still reported as a mismatch;
	// the next call is the one rejected.
	if err := e.limiter.IncrementVerify(ctx, subject); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		return false, e.throttleError(ctx, subject, err)
	}

	return false, nil
}

func (e *Engine) throttleError(ctx context.Context, subject string, err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		e.metricInc(MetricVerifyRateLimited)
		e.emitAudit(ctx, auditEventVerifyRateLimited, false, subject, auditErrRateLimited, nil)
		return ErrVerifyRateLimited
	}

	e.logger.Error("verify throttle unavailable", zap.String("subject", subject), zap.Error(err))
	e.metricInc(MetricVerifyFailure)
	e.emitAudit(ctx, auditEventVerifyFailure, false, subject, auditErrThrottleUnavailable, nil)
	return fmt.Errorf("%w: %w", ErrThrottleUnavailable, err)
}

func (e *Engine) verify(ctx context.Context, subject string, pwd []byte, encoded string) (bool, error) {
	fail := func(err error, params *Params) (bool, error) {
		e.metricInc(MetricVerifyFailure)
		var meta func() map[string]string
		if params != nil {
			meta = paramsMetadata(*params, 0)
		}
		e.emitAudit(ctx, auditEventVerifyFailure, false, subject, auditErrorCode(err), meta)
		return false, err
	}

	pwd, err := e.preparePassword(pwd)
	if err != nil {
		return fail(err, nil)
	}

	parsed, err := password.ParsePHC(encoded)
	if err != nil {
		return fail(classifyKDFError(err), nil)
	}

	if err := parsed.Params.Validate(); err != nil {
		e.metricInc(MetricInvalidParameters)
		return fail(classifyKDFError(err), &parsed.Params)
	}
	if err := e.config.checkLimits(parsed.Params); err != nil {
		e.metricInc(MetricInvalidParameters)
		e.logger.Warn("stored hash exceeds cost ceiling", zap.Stringer("params", parsed.Params))
		return fail(err, &parsed.Params)
	}

	start := time.Now()
	ok, err := parsed.Matches(pwd)
	e.observe(MetricVerifyLatency, start)
	if err != nil {
		return fail(classifyKDFError(err), &parsed.Params)
	}

	if !ok {
		e.metricInc(MetricVerifyMismatch)
		e.emitAudit(ctx, auditEventVerifyMismatch, false, subject, auditErrMismatch, paramsMetadata(parsed.Params, 0))
		return false, nil
	}

	e.metricInc(MetricVerifySuccess)
	e.emitAudit(ctx, auditEventVerifySuccess, true, subject, "", paramsMetadata(parsed.Params, 0))
	return true, nil
}

// ResolveParams returns the cost parameters a hash call with opts would use,
// checked against the configured ceilings. No key is derived.
func (e *Engine) ResolveParams(opts ...HashOption) (Params, error) {
	if e == nil {
		return Params{}, ErrEngineNotInitialized
	}

	params, err := collectOptions(opts).params(e.config.Defaults)
	if err != nil {
		return Params{}, err
	}
	if err := params.Validate(); err != nil {
		return Params{}, classifyKDFError(err)
	}
	if err := e.config.checkLimits(params); err != nil {
		return Params{}, err
	}
	return params, nil
}

// resolve turns options into a validated HashRequest. The returned request
// is non-nil whenever the cost parameters could be resolved, so failures can
// still be reported with their parameters.
func (e *Engine) resolve(mode outputMode, pwd []byte, opts []HashOption) (*HashRequest, error) {
	o := collectOptions(opts)

	params, err := o.params(e.config.Defaults)
	if err != nil {
		e.metricInc(MetricInvalidParameters)
		return nil, err
	}
	req := &HashRequest{Params: params}

	if err := params.Validate(); err != nil {
		e.metricInc(MetricInvalidParameters)
		return req, classifyKDFError(err)
	}
	if err := e.config.checkLimits(params); err != nil {
		e.metricInc(MetricInvalidParameters)
		return req, err
	}

	if req.OutputLength, err = e.outputLength(mode, o); err != nil {
		return req, err
	}

	if req.Password, err = e.preparePassword(pwd); err != nil {
		return req, err
	}

	if req.Salt, req.SaltGenerated, err = e.resolveSalt(mode, o); err != nil {
		return req, err
	}

	return req, nil
}

func (e *Engine) outputLength(mode outputMode, o hashOptions) (uint32, error) {
	if mode == modeEncoded {
		n := e.config.Encoded.KeyLength
		if o.outSet {
			n = o.outLen
		}
		if n < password.MinOutputLength || n > password.MaxOutputLength {
			return 0, fmt.Errorf("%w: %w: encoded hash must be %d..%d bytes, got %d",
				ErrHashComputation, password.ErrInvalidKeyLength, password.MinOutputLength, password.MaxOutputLength, n)
		}
		return n, nil
	}

	n := e.config.Defaults.OutputLength
	if o.outSet {
		n = o.outLen
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %w: output length must be >= 1", ErrHashComputation, password.ErrInvalidKeyLength)
	}
	if ceiling := e.config.Limits.MaxOutputLength; ceiling > 0 && n > ceiling {
		return 0, fmt.Errorf("%w: %w: output length %d exceeds ceiling %d", ErrHashComputation, password.ErrInvalidKeyLength, n, ceiling)
	}
	return n, nil
}

func (e *Engine) resolveSalt(mode outputMode, o hashOptions) ([]byte, bool, error) {
	if o.saltSet {
		if mode == modeEncoded && o.saltText {
			salt, err := password.DecodeSalt(string(o.salt))
			if err != nil {
				return nil, false, classifyKDFError(err)
			}
			return salt, false, nil
		}
		return o.salt, false, nil
	}

	n := e.config.Raw.SaltLength
	if mode == modeEncoded {
		n = e.config.Encoded.SaltLength
	}

	salt, err := internal.ReadSalt(e.entropy, n)
	if err != nil {
		e.logger.Error("salt generation failed", zap.Error(err))
		return nil, false, fmt.Errorf("%w: %w", ErrHashComputation, err)
	}
	e.metricInc(MetricSaltGenerated)

	return salt, true, nil
}

// preparePassword enforces the length ceiling and applies the configured
// normalization. It never logs password material.
func (e *Engine) preparePassword(pwd []byte) ([]byte, error) {
	if ceiling := e.config.Limits.MaxPasswordBytes; ceiling > 0 && len(pwd) > ceiling {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPasswordTooLong, len(pwd), ceiling)
	}

	if len(pwd) == 0 && e.config.Security.WarnEmptyPassword {
		e.metricInc(MetricEmptyPassword)
		e.logger.Warn("empty password")
	}

	if e.config.Security.NormalizeUnicode {
		return norm.NFKC.Bytes(pwd), nil
	}
	return pwd, nil
}

func (e *Engine) hashFailed(ctx context.Context, event string, id MetricID, err error, req *HashRequest) {
	e.metricInc(id)

	var meta func() map[string]string
	if req != nil {
		meta = paramsMetadata(req.Params, req.OutputLength)
	}
	e.emitAudit(ctx, event, false, "", auditErrorCode(err), meta)

	e.logger.Debug("hash rejected", zap.String("event", event), zap.Error(err))
}
