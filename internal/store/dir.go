package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mkravchenko/claude-sync/internal/domain/release"
	"github.com/mkravchenko/claude-sync/internal/logger"
)

const (
	// versionFilename tracks the most recently published version.
	versionFilename = ".version"
	// buildDateFilename tracks the upstream build date of that version.
	buildDateFilename = ".build_date"

	// binaryFileMode keeps published binaries executable.
	binaryFileMode os.FileMode = 0o755
	// textFileMode is used for manifests and tracker files.
	textFileMode os.FileMode = 0o644
)

// Dir publishes releases into a local directory tree:
//
//	<root>/<version>/claude-<platform>...
//	<root>/<version>/checksums.txt
//	<root>/.version
//	<root>/.build_date
//
// The release directory is staged under a temporary name and renamed into
// place, and the version tracker is only written afterwards, so a crashed
// run never leaves a visible partial release.
type Dir struct {
	// root is the directory all releases are published under.
	root string
	// mu serializes publishes against latest-version reads.
	mu sync.Mutex
}

// NewDir creates a directory store rooted at the provided path.
func NewDir(root string) *Dir {
	return &Dir{
		root: filepath.Clean(root),
	}
}

// LatestVersion reads the version tracker file.
func (d *Dir) LatestVersion(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	contents, err := os.ReadFile(filepath.Join(d.root, versionFilename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoReleases
		}

		return "", fmt.Errorf("read version tracker: %w", err)
	}

	return strings.TrimSpace(string(contents)), nil
}

// Publish stages the release directory, renames it into place and then
// updates the tracker files.
func (d *Dir) Publish(ctx context.Context, rec *release.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.root, binaryFileMode); err != nil {
		return fmt.Errorf("create store root: %w", err)
	}

	staging, err := os.MkdirTemp(d.root, ".staging-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	defer func() {
		_ = os.RemoveAll(staging)
	}()

	for _, asset := range rec.Assets {
		target := filepath.Join(staging, asset.Platform.AssetName())
		if err = copyFile(asset.Path, target, binaryFileMode); err != nil {
			return fmt.Errorf("stage %s: %w", asset.Platform, err)
		}
	}

	manifestPath := filepath.Join(staging, release.ManifestAssetName)
	if err = os.WriteFile(manifestPath, []byte(rec.ChecksumManifest()), textFileMode); err != nil {
		return fmt.Errorf("write checksum manifest: %w", err)
	}

	target := filepath.Join(d.root, rec.Version)

	// A leftover directory for the same version is replaced (forced republish).
	if err = os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove previous release directory: %w", err)
	}

	if err = os.Rename(staging, target); err != nil {
		return fmt.Errorf("finalize release directory: %w", err)
	}

	if err = d.writeTrackers(rec); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Published release directory",
		"path", target, "version", rec.Version, "assets", len(rec.Assets)+1)

	return nil
}

// writeTrackers records the published version and build date at the root.
func (d *Dir) writeTrackers(rec *release.Record) error {
	versionPath := filepath.Join(d.root, versionFilename)
	if err := os.WriteFile(versionPath, []byte(rec.Version+"\n"), textFileMode); err != nil {
		return fmt.Errorf("write version tracker: %w", err)
	}

	if rec.BuildDate == "" {
		return nil
	}

	datePath := filepath.Join(d.root, buildDateFilename)
	if err := os.WriteFile(datePath, []byte(rec.BuildDate+"\n"), textFileMode); err != nil {
		return fmt.Errorf("write build date tracker: %w", err)
	}

	return nil
}

// copyFile copies src to dst with the provided mode.
func copyFile(src, dst string, mode os.FileMode) error {
	input, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = input.Close()
	}()

	output, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(output, input); err != nil {
		_ = output.Close()

		return err
	}

	return output.Close()
}
