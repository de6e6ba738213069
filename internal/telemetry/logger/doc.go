// Package logger provides structured logging for crmdesk.
//
// It wraps the standard library log/slog with:
//
//   - JSON (default) or text output
//   - a process-wide level that can change at runtime
//   - redaction of bearer tokens, passwords and other secrets
//   - context helpers carrying a per-request ID
package logger
