// Package connection talks to the CRM backend.
//
//   - http.go: JSON-over-HTTP transport with request and device headers
//   - backend.go: login and scoped resource reads
//   - device.go: the persisted device identifier
package connection
