package goScrypt

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	for name, cfg := range map[string]Config{
		"default":       DefaultConfig(),
		"high security": HighSecurityConfig(),
	} {
		if err := cfg.Validate(); err != nil {
			t.Fatalf("%s config invalid: %v", name, err)
		}
	}
}

func TestDefaultConfigMatchesHistoricalDefaults(t *testing.T) {
	cfg := DefaultConfig()
	p := cfg.DefaultParams()

	if p.LogN != 15 || p.R != 8 || p.P != 1 {
		t.Fatalf("unexpected default params %v", p)
	}
	if p.N() != 32768 {
		t.Fatalf("expected N=32768, got %d", p.N())
	}
	if cfg.Defaults.OutputLength != 8 {
		t.Fatalf("expected 8-byte raw output, got %d", cfg.Defaults.OutputLength)
	}
	if cfg.Encoded.KeyLength != 32 {
		t.Fatalf("expected 32-byte encoded key, got %d", cfg.Encoded.KeyLength)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero ln", func(c *Config) { c.Defaults.LogN = 0 }, "Defaults"},
		{"zero output", func(c *Config) { c.Defaults.OutputLength = 0 }, "OutputLength"},
		{"ln over ceiling", func(c *Config) { c.Defaults.LogN = 21 }, "Limits"},
		{"output over ceiling", func(c *Config) { c.Limits.MaxOutputLength = 4 }, "MaxOutputLength"},
		{"raw salt", func(c *Config) { c.Raw.SaltLength = 0 }, "Raw SaltLength"},
		{"encoded salt short", func(c *Config) { c.Encoded.SaltLength = 2 }, "Encoded SaltLength"},
		{"encoded salt long", func(c *Config) { c.Encoded.SaltLength = 49 }, "Encoded SaltLength"},
		{"encoded key", func(c *Config) { c.Encoded.KeyLength = 65 }, "Encoded KeyLength"},
		{"password limit", func(c *Config) { c.Limits.MaxPasswordBytes = -1 }, "MaxPasswordBytes"},
		{"throttle prefix", func(c *Config) {
			c.VerifyThrottle.Enabled = true
			c.VerifyThrottle.RedisPrefix = " "
		}, "RedisPrefix"},
		{"throttle attempts", func(c *Config) {
			c.VerifyThrottle.Enabled = true
			c.VerifyThrottle.MaxAttempts = 0
		}, "MaxAttempts"},
		{"throttle cooldown", func(c *Config) {
			c.VerifyThrottle.Enabled = true
			c.VerifyThrottle.Cooldown = 0
		}, "Cooldown"},
		{"audit buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, "BufferSize"},
		{"audit close timeout", func(c *Config) {
			c.Audit.CloseTimeout = -time.Second
		}, "CloseTimeout"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCheckLimitsWrapsInvalidParameters(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.checkLimits(Params{LogN: 25, R: 8, P: 1})
	if !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters, got %v", err)
	}

	cfg.Limits.MaxLogN = 0
	if err := cfg.checkLimits(Params{LogN: 25, R: 8, P: 1}); err != nil {
		t.Fatalf("zero ceiling should disable the check, got %v", err)
	}
}
