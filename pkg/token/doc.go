// Package token inspects bearer tokens issued by the CRM backend.
//
// Tokens are JWTs. The client only reads the embedded claims to decide
// whether a stored session is still worth presenting; it never verifies
// the signature. The backend re-validates every request, so nothing in
// this package is a security boundary.
//
// Fingerprints (truncated SHA-256) identify a token in logs without
// exposing it.
package token
