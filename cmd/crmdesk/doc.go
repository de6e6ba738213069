// Package main provides the entry point for crmdesk.
//
// Without a command crmdesk opens the interactive shell; with one it runs
// that command against the persisted session and exits.
package main
