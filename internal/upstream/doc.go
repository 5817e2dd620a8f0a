// Package upstream implements the read-only client for the distribution
// bucket: the latest version pointer, the per-version manifest, and the
// platform binaries themselves. Transient failures are retried with
// exponential backoff inside a single request.
package upstream
