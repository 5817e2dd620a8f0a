// Package installer fetches the latest upstream binary for one platform and
// atomically installs it to a local path after checksum verification.
package installer
