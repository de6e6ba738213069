// Package output renders command results for crmdesk.
//
// Results are written as an aligned table (default), JSON or YAML. The
// Spinner marks the loading state while a session restore is in flight.
package output
