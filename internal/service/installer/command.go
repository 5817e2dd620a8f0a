package installer

import (
	"bytes"
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/mkravchenko/claude-sync/internal/config"
	"github.com/mkravchenko/claude-sync/internal/domain/release"
	"github.com/mkravchenko/claude-sync/internal/logger"
	"github.com/mkravchenko/claude-sync/internal/upstream"

	// Ensure SHA256 is available for update verification.
	_ "crypto/sha256"
)

// targetFileMode keeps the installed binary executable.
const targetFileMode os.FileMode = 0o755

var (
	errUnsupportedPlatform = errors.New("no prebuilt binary for this platform")
	errPlatformNotOffered  = errors.New("platform missing from upstream manifest")
	errChecksumMismatch    = errors.New("downloaded binary failed checksum verification")
)

// Options are inputs accepted by the installer entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// OutputPath is where the binary is installed. Defaults to ./claude
	// (claude.exe on Windows).
	OutputPath string
	// Platform overrides platform detection, e.g. to fetch a musl build.
	Platform string
}

// Run downloads the latest binary for the target platform, verifies its
// checksum and atomically replaces the file at the output path.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "claude-sync")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	platform, err := resolvePlatform(opts.Platform)
	if err != nil {
		return err
	}

	ctx = logger.WithKV(ctx, "platform", string(platform))

	client := upstream.New(cfg.UpstreamURL, cfg.Timeout)

	version, err := client.Latest(ctx)
	if err != nil {
		return fmt.Errorf("resolve latest version: %w", err)
	}

	logger.InfoKV(ctx, "Installing binary", "version", version)

	manifest, err := client.FetchManifest(ctx, version)
	if err != nil {
		return fmt.Errorf("fetch manifest: %w", err)
	}

	info, ok := manifest.Platforms[string(platform)]
	if !ok {
		return fmt.Errorf("%s: %w", platform, errPlatformNotOffered)
	}

	binaryURL, err := client.BinaryURL(version, platform)
	if err != nil {
		return err
	}

	downloadDir, err := os.MkdirTemp("", "claude-sync-install-")
	if err != nil {
		return err
	}

	defer func() {
		_ = os.RemoveAll(downloadDir)
	}()

	asset, err := client.Download(ctx, release.Artifact{
		Platform: platform,
		URL:      binaryURL,
		Checksum: info.Checksum,
		Size:     info.Size,
	}, downloadDir)
	if err != nil {
		return fmt.Errorf("download %s: %w", platform, err)
	}

	if !asset.Matches(asset.SHA256) {
		return fmt.Errorf("%s: expected %s, got %s: %w",
			platform, info.Checksum, asset.SHA256, errChecksumMismatch)
	}

	target := opts.OutputPath
	if target == "" {
		target = platform.BinaryName()
	}

	if err = apply(asset, target); err != nil {
		return fmt.Errorf("install %s: %w", target, err)
	}

	logger.InfoKV(ctx, "Installed binary", "version", version, "path", target)

	return nil
}

// resolvePlatform picks the explicit platform or detects the current one.
func resolvePlatform(override string) (release.Platform, error) {
	if override != "" {
		platform := release.Platform(override)
		if !platform.Valid() {
			return "", fmt.Errorf("%s: %w", override, errUnsupportedPlatform)
		}

		return platform, nil
	}

	platform, ok := release.Current()
	if !ok {
		return "", errUnsupportedPlatform
	}

	return platform, nil
}

// apply atomically replaces the target file with the verified binary,
// letting go-update check the checksum once more during the swap.
func apply(asset release.Asset, target string) error {
	data, err := os.ReadFile(filepath.Clean(asset.Path))
	if err != nil {
		return err
	}

	checksum, err := hex.DecodeString(strings.ToLower(asset.Checksum))
	if err != nil {
		return fmt.Errorf("decode expected checksum: %w", err)
	}

	if _, err = os.Stat(target); err != nil && errors.Is(err, os.ErrNotExist) {
		if _, err = os.Create(target); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: targetFileMode,
		Checksum:   checksum,
		Hash:       crypto.SHA256,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	// go-update keeps the previous binary around; drop it.
	oldTarget := target + ".old"
	if _, err = os.Stat(oldTarget); err == nil {
		_ = os.Remove(oldTarget)
	}

	return nil
}
