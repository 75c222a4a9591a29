// Package config defines the configuration of a nodekit node.
//
// Values come from command-line flags, an optional nodekit.toml (or .json,
// .yaml) file in the data directory, and NODEKIT_* environment variables, in
// that order of precedence. See cmd/nodekit/commands for the binding.
package config
