// Package confloader loads crmdesk configuration.
//
// Sources, lowest priority first:
//
//  1. Defaults already present in the target struct
//  2. The YAML configuration file
//  3. A .env file, exported into the process environment
//  4. CRMDESK_* environment variables
//  5. Values set explicitly from command-line flags
//
// The Watcher reports writes to the configuration file so long-running
// commands can pick up changes.
package confloader
