// Package storage provides durable key-value storage for crmdesk.
//
// The session store persists its token and account identifiers here so a
// session survives process restarts. The package offers:
//
//   - KV: the string key-value contract consumed by the session store,
//     returning explicit GetResult variants instead of sentinel errors
//   - BadgerKV: the Badger v3 backed implementation (on disk or in memory)
//   - SealedKV: a wrapper encrypting values at rest with an AEAD cipher
package storage
