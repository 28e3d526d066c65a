// Package password implements scrypt key derivation and PHC-encoded password hashes.
//
// # Output format
//
// Encoded hashes follow the PHC string format:
//
//	$scrypt$ln=<log2 N>,r=<block size>,p=<parallelism>$<salt>$<hash>
//
// Salt and hash are B64 (standard base64 alphabet, no padding). The salt text is
// decoded before it is fed to scrypt, so the same bytes round-trip through
// [ParsePHC] and [PHC.Matches].
//
// # Cost parameters
//
// [Params] always carries the log2 exponent. Callers holding a raw N convert it
// explicitly with [LogNFromN]. [Params.Validate] rejects every combination that
// golang.org/x/crypto/scrypt would refuse, before any memory is allocated.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goScrypt package.
//   - Log plaintext passwords, salts, or derived keys.
package password
