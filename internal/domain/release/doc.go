// Package release defines the domain model for a binary release: the fixed
// platform set, per-platform artifacts and their checksums, and the release
// record assembled by a sync run before it is handed to a store.
package release
