// Package internal holds helpers private to goScrypt: CSPRNG salt generation
// and audit event identifiers.
//
// Sub-packages:
//
//   - audit: async event dispatch to a Sink
//   - rate: Redis-backed fixed-window counters for verify throttling
//   - httpapi: JSON handlers served by goscrypt serve
package internal
