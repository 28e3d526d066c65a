package goScrypt

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goScrypt/internal"
)

const (
	auditEventHashRaw           = "hash_raw"
	auditEventHashEncoded       = "hash_encoded"
	auditEventVerifySuccess     = "verify_success"
	auditEventVerifyMismatch    = "verify_mismatch"
	auditEventVerifyFailure     = "verify_failure"
	auditEventVerifyRateLimited = "verify_rate_limited"
)

// AuditErrorCode is the stable error label stored in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidParameters   AuditErrorCode = "invalid_parameters"
	auditErrSaltEncoding        AuditErrorCode = "salt_encoding"
	auditErrHashComputation     AuditErrorCode = "hash_computation"
	auditErrParse               AuditErrorCode = "parse"
	auditErrPasswordTooLong     AuditErrorCode = "password_too_long"
	auditErrMismatch            AuditErrorCode = "mismatch"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrThrottleUnavailable AuditErrorCode = "backend_unavailable"
	auditErrCanceled            AuditErrorCode = "canceled"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	code AuditErrorCode,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	e.audit.Emit(ctx, AuditEvent{
		ID:        internal.NewEventID(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Subject:   subject,
		Success:   success,
		Error:     string(code),
		Metadata:  metadata,
	})
}

// paramsMetadata describes the cost of a call without any secret material.
func paramsMetadata(p Params, outLen uint32) func() map[string]string {
	return func() map[string]string {
		m := map[string]string{
			"ln": strconv.Itoa(int(p.LogN)),
			"r":  strconv.FormatUint(uint64(p.R), 10),
			"p":  strconv.FormatUint(uint64(p.P), 10),
		}
		if outLen > 0 {
			m["len"] = strconv.FormatUint(uint64(outLen), 10)
		}
		return m
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidParameters):
		return auditErrInvalidParameters
	case errors.Is(err, ErrSaltEncoding):
		return auditErrSaltEncoding
	case errors.Is(err, ErrParse):
		return auditErrParse
	case errors.Is(err, ErrPasswordTooLong):
		return auditErrPasswordTooLong
	case errors.Is(err, ErrVerifyRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrThrottleUnavailable):
		return auditErrThrottleUnavailable
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	case errors.Is(err, ErrHashComputation):
		return auditErrHashComputation
	default:
		return auditErrInternal
	}
}
