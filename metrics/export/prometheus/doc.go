// Package prometheus renders goScrypt metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts a [goScrypt.Engine] and exposes an
// [http.Handler] for a /metrics route. Families:
//
//	goscrypt_operations_total{operation,outcome}
//	goscrypt_events_total{event}
//	goscrypt_kdf_duration_seconds{operation}   histogram, buckets 10ms..1s
//	goscrypt_audit_dropped_total
//	goscrypt_default_log_n, goscrypt_default_memory_bytes, goscrypt_max_log_n
//
// The last three are gauges and only appear for sources that also provide a
// SecurityReport. Nothing is registered globally; callers mount the Handler.
package prometheus
