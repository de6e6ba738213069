// Package command provides the crmdesk command-line interface.
//
// Commands are defined with urfave/cli/v2:
//
//   - root.go: application, global flags, runtime lookup
//   - runtime.go: wiring of storage, session store, backend and metrics
//   - auth.go: login and logout
//   - status.go: status and refresh
//   - fetch.go: customer-scoped resource reads
//   - config.go: effective configuration
//   - shell.go: interactive mode
//
// A single invocation opens the runtime lazily and closes it on exit.
// The shell opens it once and shares it with every command line.
package command
