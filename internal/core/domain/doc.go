// Package domain defines the core domain models for crmdesk.
//
// This package contains:
//
//   - Session: immutable snapshot of the authentication state
//   - Profile: the logged-in account's identifiers
//   - Errors: coded domain errors shared across layers
//
// Storage key names used to persist a session also live here so the
// session store and the diagnostics commands agree on them.
package domain
