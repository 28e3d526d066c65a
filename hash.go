package goScrypt

import (
	"context"
	"sync"
)

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
	defaultErr    error
)

// Default returns the process-wide engine behind the package-level functions.
// It is built on first use from [DefaultConfig] with no throttle, audit, or
// metrics.
func Default() (*Engine, error) {
	defaultOnce.Do(func() {
		defaultEngine, defaultErr = New().Build()
	})
	return defaultEngine, defaultErr
}

// HashPassword derives a raw key with the default engine and returns its
// lowercase hex form. With no options it uses ln=15, r=8, p=1, an 8-byte
// output, and a random salt.
func HashPassword(pwd string, opts ...HashOption) (string, error) {
	e, err := Default()
	if err != nil {
		return "", err
	}

	h, err := e.DeriveKey(context.Background(), []byte(pwd), opts...)
	if err != nil {
		return "", err
	}
	return h.Hex, nil
}

// HashPasswordEncoded returns a PHC scrypt string produced by the default engine.
func HashPasswordEncoded(pwd string, opts ...HashOption) (string, error) {
	e, err := Default()
	if err != nil {
		return "", err
	}
	return e.HashEncoded(context.Background(), []byte(pwd), opts...)
}

// VerifyPassword checks pwd against a PHC scrypt string with the default engine.
func VerifyPassword(pwd, encoded string) (bool, error) {
	e, err := Default()
	if err != nil {
		return false, err
	}
	return e.Verify(context.Background(), []byte(pwd), encoded)
}
