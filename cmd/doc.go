// Package cmd implements the command-line interface for the Nxdb document
// store. It provides a hierarchical command structure with operations for
// managing databases and inspecting their contents.
//
// The package is organized into several subpackages:
//
//   - database: Commands for database operations (create, drop, info, node access)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See nxdb -help for a list of all commands.
package cmd
