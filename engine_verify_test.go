package goScrypt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goScrypt/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const phcFixture = "$scrypt$ln=10,r=8,p=1$c29tZXNhbHQ$NATD5a63PUUWoTMSKKJeWX4dre3xh7/B8mDwvrxG5Eo"

func TestHashEncodedFixture(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	text, err := e.HashEncoded(ctx, []byte("correct horse"), WithLogN(10), WithSaltString("c29tZXNhbHQ"))
	if err != nil {
		t.Fatalf("HashEncoded error: %v", err)
	}
	if text != phcFixture {
		t.Fatalf("unexpected PHC string:\n got %s\nwant %s", text, phcFixture)
	}

	// Raw salt bytes are B64 encoded into the same string.
	fromBytes, err := e.HashEncoded(ctx, []byte("correct horse"), WithLogN(10), WithSalt([]byte("somesalt")))
	if err != nil {
		t.Fatalf("HashEncoded error: %v", err)
	}
	if fromBytes != phcFixture {
		t.Fatalf("WithSalt bytes produced %s", fromBytes)
	}
}

func TestHashEncodedRoundTrip(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	encoded, err := e.HashEncoded(ctx, []byte("s3cret"), WithLogN(6), WithBlockSize(4), WithParallelism(2), WithOutputLength(24))
	if err != nil {
		t.Fatalf("HashEncoded error: %v", err)
	}
	if !strings.HasPrefix(encoded, "$scrypt$ln=6,r=4,p=2$") {
		t.Fatalf("unexpected prefix: %s", encoded)
	}

	parsed, err := password.ParsePHC(encoded)
	if err != nil {
		t.Fatalf("ParsePHC error: %v", err)
	}
	if len(parsed.Hash) != 24 {
		t.Fatalf("expected 24-byte hash, got %d", len(parsed.Hash))
	}
	if parsed.String() != encoded {
		t.Fatal("PHC string did not survive a parse round trip")
	}

	ok, err := e.Verify(ctx, []byte("s3cret"), encoded)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, err = e.Verify(ctx, []byte("s3creT"), encoded)
	if err != nil || ok {
		t.Fatalf("expected mismatch without error, got ok=%v err=%v", ok, err)
	}

	snap := e.MetricsSnapshot()
	if snap.Counters[MetricEncodedHashSuccess] != 1 ||
		snap.Counters[MetricVerifySuccess] != 1 ||
		snap.Counters[MetricVerifyMismatch] != 1 {
		t.Fatalf("unexpected counters: %v", snap.Counters)
	}
}

func TestHashEncodedSaltErrors(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		opt  HashOption
	}{
		{"text too short", WithSaltString("abc")},
		{"text too long", WithSaltString(strings.Repeat("a", 65))},
		{"text not b64", WithSaltString("not-base64!")},
		{"bytes too short", WithSalt([]byte("ab"))},
		{"bytes too long", WithSalt(make([]byte, 49))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.HashEncoded(ctx, []byte("pw"), WithLogN(4), tc.opt)
			if !errors.Is(err, ErrSaltEncoding) {
				t.Fatalf("expected ErrSaltEncoding, got %v", err)
			}
		})
	}
}

func TestHashEncodedOutputBounds(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	for _, n := range []uint32{0, 9, 65} {
		if _, err := e.HashEncoded(ctx, []byte("pw"), WithLogN(4), WithOutputLength(n)); !errors.Is(err, ErrHashComputation) {
			t.Fatalf("len %d: expected ErrHashComputation, got %v", n, err)
		}
	}
	for _, n := range []uint32{10, 64} {
		if _, err := e.HashEncoded(ctx, []byte("pw"), WithLogN(4), WithOutputLength(n)); err != nil {
			t.Fatalf("len %d: unexpected error %v", n, err)
		}
	}
}

func TestVerifyMalformed(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	inputs := []string{
		"",
		"plain",
		"$argon2id$v=19$m=65536,t=3,p=1$c29tZXNhbHQ$NATD5a63PUUWoTMSKKJeWX4dre3xh7/B8mDwvrxG5Eo",
		"$scrypt$ln=10,r=8$c29tZXNhbHQ$NATD5a63PUUWoTMSKKJeWX4dre3xh7/B8mDwvrxG5Eo",
		"$scrypt$ln=10,r=8,p=1$c29$NATD5a63PUUWoTMSKKJeWX4dre3xh7/B8mDwvrxG5Eo",
		"$scrypt$ln=10,r=8,p=1$c29tZXNhbHQ$NATD",
		"$scrypt$ln=10,r=8,p=1$c29tZXNhbHQ$NATD5a63PUUWoTMSKKJeWX4dre3xh7/B8mDwvrxG5Eo=",
	}

	for _, in := range inputs {
		if _, err := e.Verify(ctx, []byte("correct horse"), in); !errors.Is(err, ErrParse) {
			t.Fatalf("%q: expected ErrParse, got %v", in, err)
		}
	}
}

func TestVerifyRejectsHostileParameters(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	inputs := []string{
		"$scrypt$ln=0,r=8,p=1$c29tZXNhbHQ$NATD5a63PUUWoTMSKKJeWX4dre3xh7/B8mDwvrxG5Eo",
		"$scrypt$ln=40,r=8,p=1$c29tZXNhbHQ$NATD5a63PUUWoTMSKKJeWX4dre3xh7/B8mDwvrxG5Eo",
		"$scrypt$ln=10,r=4096,p=1$c29tZXNhbHQ$NATD5a63PUUWoTMSKKJeWX4dre3xh7/B8mDwvrxG5Eo",
	}

	for _, in := range inputs {
		if _, err := e.Verify(ctx, []byte("correct horse"), in); !errors.Is(err, ErrInvalidParameters) {
			t.Fatalf("%q: expected ErrInvalidParameters, got %v", in, err)
		}
	}

	if got := e.MetricsSnapshot().Counters[MetricVerifyFailure]; got != uint64(len(inputs)) {
		t.Fatalf("expected %d verify failures, got %d", len(inputs), got)
	}
}

func newThrottledEngine(t *testing.T, maxAttempts int) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.VerifyThrottle.Enabled = true
	cfg.VerifyThrottle.MaxAttempts = maxAttempts
	cfg.VerifyThrottle.Cooldown = time.Minute

	e, err := New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(e.Close)

	return e, mr
}

func TestVerifyForLocksAfterMismatches(t *testing.T) {
	e, mr := newThrottledEngine(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := e.VerifyFor(ctx, "alice", []byte("wrong"), phcFixture)
		if err != nil || ok {
			t.Fatalf("attempt %d: expected plain mismatch, got ok=%v err=%v", i, ok, err)
		}
	}

	// Budget exhausted: even the right password is refused.
	if _, err := e.VerifyFor(ctx, "alice", []byte("correct horse"), phcFixture); !errors.Is(err, ErrVerifyRateLimited) {
		t.Fatalf("expected ErrVerifyRateLimited, got %v", err)
	}

	// Other subjects keep their own budget.
	ok, err := e.VerifyFor(ctx, "bob", []byte("correct horse"), phcFixture)
	if err != nil || !ok {
		t.Fatalf("expected bob to verify, got ok=%v err=%v", ok, err)
	}

	mr.FastForward(2 * time.Minute)

	ok, err = e.VerifyFor(ctx, "alice", []byte("correct horse"), phcFixture)
	if err != nil || !ok {
		t.Fatalf("expected window to expire, got ok=%v err=%v", ok, err)
	}

	if got := e.MetricsSnapshot().Counters[MetricVerifyRateLimited]; got != 1 {
		t.Fatalf("expected 1 rate limited call, got %d", got)
	}
}

func TestVerifyForSuccessResetsCounter(t *testing.T) {
	e, _ := newThrottledEngine(t, 3)
	ctx := context.Background()

	_, _ = e.VerifyFor(ctx, "alice", []byte("wrong"), phcFixture)
	_, _ = e.VerifyFor(ctx, "alice", []byte("wrong"), phcFixture)

	if n, err := e.GetVerifyAttempts(ctx, "alice"); err != nil || n != 2 {
		t.Fatalf("expected 2 attempts, got %d (err=%v)", n, err)
	}

	ok, err := e.VerifyFor(ctx, "alice", []byte("correct horse"), phcFixture)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	if n, err := e.GetVerifyAttempts(ctx, "alice"); err != nil || n != 0 {
		t.Fatalf("expected counter reset, got %d (err=%v)", n, err)
	}
}

func TestVerifyForMalformedHashDoesNotConsumeBudget(t *testing.T) {
	e, _ := newThrottledEngine(t, 1)
	ctx := context.Background()

	if _, err := e.VerifyFor(ctx, "alice", []byte("pw"), "$scrypt$garbage"); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	if n, _ := e.GetVerifyAttempts(ctx, "alice"); n != 0 {
		t.Fatalf("parse errors must not count as attempts, got %d", n)
	}
}

func TestVerifyForRedisDown(t *testing.T) {
	e, mr := newThrottledEngine(t, 3)
	ctx := context.Background()

	if h := e.Health(ctx); !h.ThrottleConfigured || !h.RedisAvailable {
		t.Fatalf("expected healthy throttle, got %+v", h)
	}

	mr.Close()

	if _, err := e.VerifyFor(ctx, "alice", []byte("correct horse"), phcFixture); !errors.Is(err, ErrThrottleUnavailable) {
		t.Fatalf("expected ErrThrottleUnavailable, got %v", err)
	}
	if h := e.Health(ctx); h.RedisAvailable {
		t.Fatal("expected Redis to be reported unavailable")
	}
}

func TestVerifyForRequiresSubject(t *testing.T) {
	e, _ := newThrottledEngine(t, 3)

	if _, err := e.VerifyFor(context.Background(), "", []byte("pw"), phcFixture); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestVerifyForWithoutThrottle(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if ok, err := e.VerifyFor(ctx, "alice", []byte("wrong"), phcFixture); err != nil || ok {
			t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
		}
	}
	if _, err := e.GetVerifyAttempts(ctx, "alice"); !errors.Is(err, ErrEngineNotInitialized) {
		t.Fatalf("expected ErrEngineNotInitialized without throttle, got %v", err)
	}
	if h := e.Health(ctx); h.ThrottleConfigured {
		t.Fatal("expected no throttle health")
	}
}
