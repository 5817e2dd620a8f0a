package syncer

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestIsSyncRunningNow covers the missing, fresh and stale marker cases.
func TestIsSyncRunningNow(t *testing.T) {
	t.Chdir(t.TempDir())

	ctx := context.Background()

	// No marker at all.
	require.False(t, IsSyncRunningNow(ctx))

	// Fresh marker blocks.
	require.NoError(t, os.WriteFile(MarkerFilename, nil, 0o600))
	require.True(t, IsSyncRunningNow(ctx))

	// Stale marker with no live sync process is recovered.
	old := time.Now().Add(-2 * markerLifetime)
	require.NoError(t, os.Chtimes(MarkerFilename, old, old))
	require.False(t, IsSyncRunningNow(ctx))

	// And it was removed in the process.
	_, err := os.Stat(MarkerFilename)
	require.ErrorIs(t, err, os.ErrNotExist)
}
