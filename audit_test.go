package goScrypt

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newAuditedEngine(t *testing.T, sink AuditSink) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false

	e, err := New().WithConfig(cfg).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return e
}

func drain(t *testing.T, sink *ChannelSink, n int) []AuditEvent {
	t.Helper()

	events := make([]AuditEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestAuditEventsPerOutcome(t *testing.T) {
	sink := NewChannelSink(16)
	e := newAuditedEngine(t, sink)
	defer e.Close()
	ctx := context.Background()

	_, _ = e.DeriveKey(ctx, []byte("pw"), WithLogN(4))
	_, _ = e.HashEncoded(ctx, []byte("pw"), WithLogN(4))
	_, _ = e.Verify(ctx, []byte("correct horse"), phcFixture)
	_, _ = e.Verify(ctx, []byte("wrong"), phcFixture)
	_, _ = e.Verify(ctx, []byte("pw"), "garbage")
	_, _ = e.DeriveKey(ctx, []byte("pw"), WithLogN(0))

	events := drain(t, sink, 6)

	want := []struct {
		eventType string
		success   bool
		code      string
	}{
		{auditEventHashRaw, true, ""},
		{auditEventHashEncoded, true, ""},
		{auditEventVerifySuccess, true, ""},
		{auditEventVerifyMismatch, false, string(auditErrMismatch)},
		{auditEventVerifyFailure, false, string(auditErrParse)},
		{auditEventHashRaw, false, string(auditErrInvalidParameters)},
	}

	for i, w := range want {
		ev := events[i]
		if ev.EventType != w.eventType || ev.Success != w.success || ev.Error != w.code {
			t.Fatalf("event %d: got %s/%v/%q, want %s/%v/%q", i, ev.EventType, ev.Success, ev.Error, w.eventType, w.success, w.code)
		}
		if ev.ID == "" || ev.Timestamp.IsZero() {
			t.Fatalf("event %d missing id or timestamp", i)
		}
	}

	if events[0].Metadata["ln"] != "4" || events[0].Metadata["len"] != "8" {
		t.Fatalf("unexpected metadata %v", events[0].Metadata)
	}
}

func TestAuditNeverCarriesSecrets(t *testing.T) {
	sink := NewChannelSink(4)
	e := newAuditedEngine(t, sink)
	defer e.Close()

	h, err := e.DeriveKey(context.Background(), []byte("topsecret"), WithLogN(4), WithSaltString("saltysalt"))
	if err != nil {
		t.Fatalf("DeriveKey error: %v", err)
	}

	ev := drain(t, sink, 1)[0]
	for k, v := range ev.Metadata {
		for _, secret := range []string{"topsecret", "saltysalt", h.Hex} {
			if strings.Contains(v, secret) || strings.Contains(k, secret) {
				t.Fatalf("metadata %s=%s leaks secret material", k, v)
			}
		}
	}
}

func TestAuditDisabledByDefault(t *testing.T) {
	sink := NewChannelSink(1)
	e, err := New().WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer e.Close()

	_, _ = e.DeriveKey(context.Background(), []byte("pw"), WithLogN(4))

	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
	if e.AuditDropped() != 0 {
		t.Fatal("expected no drops with audit disabled")
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrInvalidParameters, auditErrInvalidParameters},
		{ErrSaltEncoding, auditErrSaltEncoding},
		{ErrParse, auditErrParse},
		{ErrPasswordTooLong, auditErrPasswordTooLong},
		{ErrVerifyRateLimited, auditErrRateLimited},
		{ErrThrottleUnavailable, auditErrThrottleUnavailable},
		{context.Canceled, auditErrCanceled},
		{ErrHashComputation, auditErrHashComputation},
		{ErrEngineNotInitialized, auditErrInternal},
	}

	for _, tc := range tests {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

type explodingSink struct{}

func (explodingSink) Emit(context.Context, AuditEvent) {
	panic("boom")
}

func TestAuditStats(t *testing.T) {
	sink := NewChannelSink(16)
	e := newAuditedEngine(t, sink)
	ctx := context.Background()

	_, _ = e.DeriveKey(ctx, []byte("pw"), WithLogN(4))
	_, _ = e.Verify(ctx, []byte("correct horse"), phcFixture)
	e.Close()

	got := e.AuditStats()
	if got.Delivered != 2 || got.Dropped != 0 || got.Panicked != 0 {
		t.Fatalf("unexpected stats %+v", got)
	}

	bad := newAuditedEngine(t, explodingSink{})
	_, _ = bad.DeriveKey(ctx, []byte("pw"), WithLogN(4))
	bad.Close()

	if got := bad.AuditStats(); got.Panicked != 1 || got.Delivered != 0 {
		t.Fatalf("expected one panicked delivery, got %+v", got)
	}

	var nilEngine *Engine
	if nilEngine.AuditStats() != (AuditStats{}) {
		t.Fatal("expected zero stats on nil engine")
	}
}

func TestEngineCloseAbandonsUndrainedSink(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 8
	cfg.Audit.DropIfFull = true
	cfg.Audit.CloseTimeout = 20 * time.Millisecond

	e, err := New().WithConfig(cfg).WithAuditSink(NewChannelSink(1)).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = e.DeriveKey(ctx, []byte("pw"), WithLogN(4))
	}

	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Engine.Close hung on a full channel sink")
	}
}
