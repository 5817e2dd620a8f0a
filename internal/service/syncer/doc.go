// Package syncer implements the sync procedure: resolve the latest upstream
// version, skip when the store is current, otherwise download all platform
// binaries concurrently, verify their SHA-256 checksums, and publish the
// complete set plus a checksum manifest in one atomic step.
//
// Every failure kind is terminal for the run; the surrounding scheduler
// retries by invoking the next run, which re-evaluates from scratch.
package syncer
