// Package types defines the configuration and standard errors shared by the
// docgraph storage backends and CLI.
package types
