package store

import (
	"context"
	"errors"

	"github.com/mkravchenko/claude-sync/internal/domain/release"
)

// Store is the release store the sync publishes to. Publish is all-or-nothing:
// implementations must never leave a partially visible release behind.
type Store interface {
	// LatestVersion returns the most recently published version identifier,
	// or ErrNoReleases when nothing has been published yet.
	LatestVersion(ctx context.Context) (string, error)
	// Publish makes the record durable: all assets plus the checksum manifest.
	Publish(ctx context.Context, rec *release.Record) error
}

// ErrNoReleases signals that the store holds no releases yet.
// It is the expected state on the first sync run, not a failure.
var ErrNoReleases = errors.New("no releases published yet")
