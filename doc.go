// Package goScrypt provides scrypt password hashing in two output modes and
// verification of PHC encoded scrypt hashes.
//
// Raw mode ([Engine.DeriveKey], [HashPassword]) returns the derived key as
// lowercase hex. Its defaults (ln=15, r=8, p=1, 8 output bytes) reproduce the
// historical scrypt() extension exactly. Encoded mode ([Engine.HashEncoded],
// [HashPasswordEncoded]) returns
//
//	$scrypt$ln=<ln>,r=<r>,p=<p>$<salt>$<hash>
//
// which [Engine.Verify] and [VerifyPassword] accept.
//
// # Cost parameters
//
// The CPU/memory cost is always expressed as its log2 exponent ln, so
// ln=15 means N=32768. A raw N is only accepted through [WithN] or
// [CostFromN], which round down to the enclosing power of two. Parameters
// are checked against RFC 7914 and [Config.Limits] before scrypt runs, on
// both hashing and verification, so a stored hash cannot request more work
// than the configuration allows.
//
// # Architecture boundaries
//
// goScrypt is the public surface: [Engine], [Builder], [Config], and value
// types. The KDF and PHC codec live in the password package; salt generation,
// audit dispatch, and the Redis verify throttle live under internal/.
//
// # What this package must NOT do
//
//   - Log, audit, or export passwords, salts, or derived keys.
//   - Compare hashes in variable time.
//   - Perform I/O outside of Engine methods. Redis is touched only by
//     [Engine.VerifyFor] and the introspection helpers.
package goScrypt
