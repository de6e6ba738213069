// Package service holds the session core of crmdesk.
//
// This package contains:
//
//   - SessionStore: owns the in-memory session, persists it to durable
//     storage and publishes immutable snapshots to subscribers
//   - Authenticator: exchanges credentials with the backend and hands the
//     resulting grant to the store
//
// Dependencies (storage, backend, metrics) are interfaces injected by the
// caller; nothing here is a process-wide singleton.
package service
