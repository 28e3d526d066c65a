package goScrypt

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goScrypt/password"
)

var (
	// ErrInvalidParameters is returned when ln, r, or p fail validation, exceed
	// a configured ceiling, or overflow the KDF's internal buffer sizing.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrSaltEncoding is returned when a caller-supplied salt cannot be
	// represented in the salt encoding the output format requires.
	ErrSaltEncoding = errors.New("salt encoding error")
	// ErrHashComputation is returned when the KDF invocation fails, including
	// output lengths outside the supported range.
	ErrHashComputation = errors.New("hash computation error")
	// ErrParse is returned by verification when the encoded hash is malformed.
	ErrParse = errors.New("malformed encoded hash")
	// ErrPasswordTooLong is returned when a password exceeds Limits.MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrVerifyRateLimited is returned by VerifyFor when the subject exhausted its attempt budget.
	ErrVerifyRateLimited = errors.New("verify rate limited")
	// ErrThrottleUnavailable is returned by VerifyFor when the throttle backend fails.
	ErrThrottleUnavailable = errors.New("verify throttle backend unavailable")
	// ErrEngineNotInitialized is returned when a nil Engine is used.
	ErrEngineNotInitialized = errors.New("engine not initialized")
)

// classifyKDFError maps password package sentinels onto the public taxonomy.
// The original error stays in the chain for errors.Is.
func classifyKDFError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, password.ErrInvalidParams):
		return fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	case errors.Is(err, password.ErrInvalidSalt):
		return fmt.Errorf("%w: %w", ErrSaltEncoding, err)
	case errors.Is(err, password.ErrInvalidPHC),
		errors.Is(err, password.ErrUnsupportedAlgorithm):
		return fmt.Errorf("%w: %w", ErrParse, err)
	default:
		return fmt.Errorf("%w: %w", ErrHashComputation, err)
	}
}
