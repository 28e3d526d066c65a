// Package otel binds goScrypt counters and histograms to OpenTelemetry
// asynchronous instruments.
//
// Instruments use attributes rather than one name per counter:
//
//	goscrypt.operations           operation=hash_raw|hash_encoded|verify, outcome=...
//	goscrypt.events               event=invalid_parameters|salt_generated|empty_password
//	goscrypt.kdf.duration.bucket  operation=hash|verify, le=<seconds>
//	goscrypt.kdf.duration.count   operation=hash|verify
//	goscrypt.audit.dropped
//	goscrypt.default.log_n, goscrypt.default.memory  (engine sources only)
//
// One callback reads [goScrypt.Engine.MetricsSnapshot] per collection. The
// caller owns the MeterProvider.
package otel
