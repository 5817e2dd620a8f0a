// Package store implements the release stores a sync run can publish to.
//
// Both backends share the same contract: reading the latest published
// version and making a complete release durable in one atomic step. The
// GitHub backend assembles releases as drafts; the directory backend stages
// and renames.
package store
