// Package rate provides the Redis-backed fixed-window counter behind
// Engine.VerifyFor.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// <prefix>:vf:<subject>. A subject is locked once its failure count reaches
// MaxAttempts and unlocks when the window expires or a verification succeeds.
//
// # What this package must NOT do
//
//   - Decide what a subject is (the caller passes an opaque identifier).
//   - Store passwords, hashes, or salts.
//   - Be imported outside the goScrypt module.
package rate
