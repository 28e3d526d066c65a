package internaldefs

import (
	goScrypt "github.com/MrEthical07/goScrypt"
)

// Prometheus metric families.
const (
	OperationsFamily   = "goscrypt_operations_total"
	EventsFamily       = "goscrypt_events_total"
	KDFDurationFamily  = "goscrypt_kdf_duration_seconds"
	AuditDroppedFamily = "goscrypt_audit_dropped_total"
	DefaultLogNFamily  = "goscrypt_default_log_n"
	DefaultMemFamily   = "goscrypt_default_memory_bytes"
	MaxLogNFamily      = "goscrypt_max_log_n"
)

// Label keys.
const (
	LabelOperation = "operation"
	LabelOutcome   = "outcome"
	LabelEvent     = "event"
	LabelLE        = "le"
)

// Operation label values.
const (
	OpHashRaw     = "hash_raw"
	OpHashEncoded = "hash_encoded"
	OpVerify      = "verify"
	OpHash        = "hash"
)

// OperationDef maps one engine counter to an operation/outcome pair of
// OperationsFamily.
type OperationDef struct {
	ID        goScrypt.MetricID
	Operation string
	Outcome   string
}

// EventDef maps one engine counter to an event label of EventsFamily.
type EventDef struct {
	ID    goScrypt.MetricID
	Event string
}

// HistogramDef maps one engine latency histogram to an operation label of
// KDFDurationFamily.
type HistogramDef struct {
	ID        goScrypt.MetricID
	Operation string
}

var OperationDefs = []OperationDef{
	{ID: goScrypt.MetricHashSuccess, Operation: OpHashRaw, Outcome: "success"},
	{ID: goScrypt.MetricHashFailure, Operation: OpHashRaw, Outcome: "failure"},
	{ID: goScrypt.MetricEncodedHashSuccess, Operation: OpHashEncoded, Outcome: "success"},
	{ID: goScrypt.MetricEncodedHashFailure, Operation: OpHashEncoded, Outcome: "failure"},
	{ID: goScrypt.MetricVerifySuccess, Operation: OpVerify, Outcome: "success"},
	{ID: goScrypt.MetricVerifyMismatch, Operation: OpVerify, Outcome: "mismatch"},
	{ID: goScrypt.MetricVerifyFailure, Operation: OpVerify, Outcome: "failure"},
	{ID: goScrypt.MetricVerifyRateLimited, Operation: OpVerify, Outcome: "rate_limited"},
}

var EventDefs = []EventDef{
	{ID: goScrypt.MetricInvalidParameters, Event: "invalid_parameters"},
	{ID: goScrypt.MetricSaltGenerated, Event: "salt_generated"},
	{ID: goScrypt.MetricEmptyPassword, Event: "empty_password"},
}

var HistogramDefs = []HistogramDef{
	{ID: goScrypt.MetricHashLatency, Operation: OpHash},
	{ID: goScrypt.MetricVerifyLatency, Operation: OpVerify},
}

// Help texts, shared so both exporters describe families identically.
const (
	OperationsHelp   = "Hash and verify calls by operation and outcome."
	EventsHelp       = "Rejected parameters, generated salts and empty passwords."
	KDFDurationHelp  = "Wall time of scrypt derivations."
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
	DefaultLogNHelp  = "Default scrypt cost exponent ln."
	DefaultMemHelp   = "Estimated memory of one default-cost derivation."
	MaxLogNHelp      = "Highest ln accepted for hashing or verification, 0 when unbounded."
)

// HistogramBounds are the upper bounds of the engine's eight latency buckets,
// in seconds.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative "le" counts.
// The last element is the total sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, n := range raw {
		running += n
		out[i] = running
	}
	return out
}
