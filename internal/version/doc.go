// Package version exposes build metadata injected via ldflags and a cobra
// subcommand that prints it. Note this is the version of the claude-sync tool
// itself, not of the binaries it mirrors.
package version
