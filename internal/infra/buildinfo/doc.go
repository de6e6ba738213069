// Package buildinfo exposes version information for crmdesk.
//
// Values are injected via ldflags; anything left unset falls back to the
// module build info recorded by the Go toolchain.
package buildinfo
