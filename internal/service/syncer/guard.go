package syncer

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/mkravchenko/claude-sync/internal/logger"
)

const (
	// MarkerFilename marks that a sync is running right now to avoid parallel
	// execution when a manual trigger overlaps the scheduled one.
	MarkerFilename = "claude-sync-marker.bin"

	// markerLifetime is the age after which a marker is considered stale and
	// checked against the process table. Downloads of 7 binaries can take a
	// while, so this is generous.
	markerLifetime = 30 * time.Minute

	// baseExecutable is the process name the guard looks for.
	baseExecutable = "claude-sync"
)

// IsSyncRunningNow checks presence of a marker file and attempts recovery if
// it looks stale but no live sync process exists.
func IsSyncRunningNow(ctx context.Context) bool {
	fileInfo, err := os.Stat(MarkerFilename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false
		}

		logger.Infof(ctx, "Unable to read run marker: %v", err)

		return false
	}

	if time.Since(fileInfo.ModTime()) <= markerLifetime {
		return true
	}

	logger.Info(ctx, "The run marker is stale, checking for a live sync process")

	if hasLiveSyncProcess() {
		return true
	}

	if err = os.Remove(MarkerFilename); err != nil {
		return true
	}

	return false
}

// hasLiveSyncProcess reports whether another claude-sync process is running.
func hasLiveSyncProcess() bool {
	processList, err := ps.Processes()
	if err != nil {
		// Cannot inspect the process table; assume the worst.
		return true
	}

	thisProcessID := os.Getpid()
	executable := syncExecutable()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == executable {
			return true
		}
	}

	return false
}

// syncExecutable returns the platform-specific process name.
func syncExecutable() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return baseExecutable + ".exe"
	}

	return baseExecutable
}
