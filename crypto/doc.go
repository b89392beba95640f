// Package crypto provides the cryptographic primitives shared by the
// authentication engine: argon2id password hashing in PHC string format,
// cryptographically secure hex token generation, and CSRF double-submit
// pair generation and verification.
//
// Verification helpers in this package never return errors. A malformed
// hash, token, or cookie value degrades to a negative verification result
// so that forged or corrupted client input is indistinguishable from a
// plain authentication failure.
package crypto
