// Package repl provides the interactive crmdesk shell.
//
//   - repl.go: read loop, prompt following the session gate
//   - completer.go: command suggestions for help and typos
//   - history.go: command history persistence
package repl
