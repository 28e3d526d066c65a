package goScrypt

import "time"

// SecurityReport summarizes the effective hashing posture of an Engine.
type SecurityReport struct {
	Defaults       Params
	DefaultN       uint64
	DefaultMemory  uint64
	RawOutput      uint32
	Encoded        EncodedReport
	Limits         LimitsConfig
	Normalization  bool
	VerifyThrottle ThrottleReport
	AuditEnabled   bool
	MetricsEnabled bool
	Warnings       []string
}

// EncodedReport is the PHC output shape used by HashEncoded.
type EncodedReport struct {
	SaltLength uint32
	KeyLength  uint32
}

// ThrottleReport describes the per-subject verify budget.
type ThrottleReport struct {
	Enabled     bool
	MaxAttempts int
	Cooldown    time.Duration
}

// SecurityReport returns the effective configuration and any Lint warnings.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	defaults := e.config.DefaultParams()

	r := SecurityReport{
		Defaults:      defaults,
		DefaultN:      defaults.N(),
		DefaultMemory: defaults.MemoryCost(),
		RawOutput:     e.config.Defaults.OutputLength,
		Encoded: EncodedReport{
			SaltLength: e.config.Encoded.SaltLength,
			KeyLength:  e.config.Encoded.KeyLength,
		},
		Limits:         e.config.Limits,
		Normalization:  e.config.Security.NormalizeUnicode,
		AuditEnabled:   e.audit != nil,
		MetricsEnabled: e.metrics.Enabled(),
		Warnings:       e.config.Lint().Codes(),
	}

	if e.limiter != nil {
		r.VerifyThrottle = ThrottleReport{
			Enabled:     true,
			MaxAttempts: e.config.VerifyThrottle.MaxAttempts,
			Cooldown:    e.config.VerifyThrottle.Cooldown,
		}
	}

	return r
}
