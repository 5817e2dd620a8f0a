package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mkravchenko/claude-sync/internal/config"
	"github.com/mkravchenko/claude-sync/internal/domain/release"
	"github.com/mkravchenko/claude-sync/internal/logger"
	"github.com/mkravchenko/claude-sync/internal/store"
	"github.com/mkravchenko/claude-sync/internal/upstream"
)

// Failure kinds of a sync run. Each one is terminal: the run aborts without
// publishing and the scheduler retries on its next tick.
var (
	// ErrUpstreamUnavailable means the version endpoint or manifest could not
	// be fetched or decoded.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrIncompletePlatformSet means the manifest omits at least one of the
	// required platforms.
	ErrIncompletePlatformSet = errors.New("incomplete platform set")
	// ErrDownloadFailed means a binary could not be downloaded.
	ErrDownloadFailed = errors.New("download failed")
	// ErrChecksumMismatch means a downloaded binary does not hash to the
	// checksum the manifest declares.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrPublishFailed means the release store rejected the publish.
	ErrPublishFailed = errors.New("publish failed")

	errSyncAlreadyRunning = errors.New("another sync is already running")
	errIncompleteRelease  = errors.New("release record is incomplete")
)

// Options are inputs accepted by the sync entry points.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Force republishes even when the store already holds the latest version.
	Force bool
}

// Outcome classifies how a run ended without failing.
type Outcome int

const (
	// OutcomePublished means a new release was created.
	OutcomePublished Outcome = iota
	// OutcomeUpToDate means the store already holds the latest version and
	// the run performed no downloads and no writes.
	OutcomeUpToDate
	// OutcomeUpdateAvailable is reported by Check when upstream is ahead.
	OutcomeUpdateAvailable
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomePublished:
		return "published"
	case OutcomeUpToDate:
		return "up-to-date"
	case OutcomeUpdateAvailable:
		return "update-available"
	default:
		return "unknown"
	}
}

// Result describes a finished run.
type Result struct {
	// Outcome is the run classification.
	Outcome Outcome
	// Version is the latest upstream version identifier.
	Version string
	// Previous is the version the store held before the run ("" on first run).
	Previous string
}

// runner holds the state of a single sync execution.
// It is intentionally unexported; call Run(ctx, Options) from callers.
type runner struct {
	cfg         *config.Config
	upstream    *upstream.Client
	store       store.Store
	downloadDir string
	markerOwned bool
}

// Run executes the full sync procedure and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "claude-sync")

	run, err := newRunner(ctx, opts)
	if err != nil {
		if run != nil {
			run.cleanup(ctx)
		}

		return nil, err
	}

	defer run.cleanup(ctx)

	result, err := run.sync(ctx, opts.Force)
	if err != nil {
		logger.ErrorKV(ctx, "Sync run failed", "error", err)
		return nil, err
	}

	logger.InfoKV(ctx, "Sync run finished",
		"outcome", result.Outcome.String(), "version", result.Version)

	return result, nil
}

// Check resolves the latest upstream version and compares it to the store
// without downloading or publishing anything.
func Check(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "claude-sync")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	run := &runner{
		cfg:      cfg,
		upstream: upstream.New(cfg.UpstreamURL, cfg.Timeout),
	}

	if run.store, err = newStore(cfg); err != nil {
		return nil, err
	}

	latest, previous, err := run.resolveVersions(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Version: latest, Previous: previous}
	if latest == previous {
		result.Outcome = OutcomeUpToDate
	} else {
		result.Outcome = OutcomeUpdateAvailable
	}

	logger.InfoKV(ctx, "Checked upstream version",
		"latest", latest, "published", previous, "outcome", result.Outcome.String())

	return result, nil
}

// newRunner loads configuration, wires the store and takes the run marker so
// two syncs cannot overlap on the same host.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	if IsSyncRunningNow(ctx) {
		return nil, errSyncAlreadyRunning
	}

	run := &runner{}

	marker, err := os.Create(MarkerFilename)
	if err != nil {
		return nil, fmt.Errorf("create run marker: %w", err)
	}

	// Own the marker as soon as it exists so cleanup removes it on any
	// failure past this point, Close included.
	run.markerOwned = true

	if err = marker.Close(); err != nil {
		return run, err
	}

	if run.cfg, err = config.Load(opts.ConfigPath); err != nil {
		return run, err
	}

	run.upstream = upstream.New(run.cfg.UpstreamURL, run.cfg.Timeout)

	if run.store, err = newStore(run.cfg); err != nil {
		return run, err
	}

	return run, nil
}

// newStore builds the configured release store backend.
func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreGitHub:
		return store.NewGitHub(store.GitHubOptions{
			Repo:      cfg.GitHubRepo,
			Token:     config.Token(),
			APIURL:    cfg.APIURL,
			UploadURL: cfg.UploadURL,
			Timeout:   cfg.Timeout,
		})
	default:
		return store.NewDir(cfg.OutputDir), nil
	}
}

// sync walks the full procedure: resolve versions, skip when current,
// otherwise download, verify and publish atomically.
func (r *runner) sync(ctx context.Context, force bool) (*Result, error) {
	latest, previous, err := r.resolveVersions(ctx)
	if err != nil {
		return nil, err
	}

	if latest == previous && !force {
		logger.InfoKV(ctx, "Store already holds the latest version, nothing to do",
			"version", latest)

		return &Result{Outcome: OutcomeUpToDate, Version: latest, Previous: previous}, nil
	}

	logger.InfoKV(ctx, "New upstream version detected",
		"latest", latest, "published", previous, "forced", force)

	artifacts, buildDate, err := r.resolveArtifacts(ctx, latest)
	if err != nil {
		return nil, err
	}

	assets, err := r.downloadAndVerify(ctx, latest, artifacts)
	if err != nil {
		return nil, err
	}

	// A cancelled run must never reach the publish step.
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	rec := &release.Record{
		Version:   latest,
		BuildDate: buildDate,
		Assets:    assets,
	}
	rec.SortAssets()

	if !rec.Complete() {
		return nil, errIncompleteRelease
	}

	logger.InfoKV(ctx, "All binaries verified, publishing release",
		"version", latest, "assets", len(rec.Assets))

	if err = r.store.Publish(ctx, rec); err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrPublishFailed)
	}

	return &Result{Outcome: OutcomePublished, Version: latest, Previous: previous}, nil
}

// resolveVersions fetches the latest upstream version and the most recently
// published one. A store without releases yields an empty previous version.
func (r *runner) resolveVersions(ctx context.Context) (latest, previous string, err error) {
	logger.Info(ctx, "Resolving latest upstream version")

	latest, err = r.upstream.Latest(ctx)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", err, ErrUpstreamUnavailable)
	}

	previous, err = r.store.LatestVersion(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoReleases) {
			logger.Info(ctx, "Store holds no releases yet, first run")
			return latest, "", nil
		}

		return "", "", fmt.Errorf("read published version: %w", err)
	}

	return latest, previous, nil
}

// resolveArtifacts fetches the manifest and builds one artifact descriptor
// per required platform. A manifest missing any platform fails the run.
func (r *runner) resolveArtifacts(ctx context.Context, version string) ([]release.Artifact, string, error) {
	logger.InfoKV(ctx, "Fetching upstream manifest", "version", version)

	manifest, err := r.upstream.FetchManifest(ctx, version)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", err, ErrUpstreamUnavailable)
	}

	var (
		platforms = release.Platforms()
		artifacts = make([]release.Artifact, 0, len(platforms))
		missing   []string
	)

	for _, platform := range platforms {
		info, ok := manifest.Platforms[string(platform)]
		if !ok {
			missing = append(missing, string(platform))
			continue
		}

		binaryURL, err := r.upstream.BinaryURL(version, platform)
		if err != nil {
			return nil, "", err
		}

		artifacts = append(artifacts, release.Artifact{
			Platform: platform,
			URL:      binaryURL,
			Checksum: info.Checksum,
			Size:     info.Size,
		})
	}

	if len(missing) > 0 {
		return nil, "", fmt.Errorf("%s: %w", strings.Join(missing, ", "), ErrIncompletePlatformSet)
	}

	return artifacts, manifest.BuildDate, nil
}

// downloadAndVerify fetches every binary concurrently, recomputes its SHA-256
// and compares it to the declared checksum. Any failure aborts the whole run.
func (r *runner) downloadAndVerify(ctx context.Context, version string, artifacts []release.Artifact) ([]release.Asset, error) {
	downloadDir, err := os.MkdirTemp("", "claude-sync-")
	if err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	r.downloadDir = downloadDir

	logger.InfoKV(ctx, "Downloading platform binaries",
		"version", version, "platforms", len(artifacts), "concurrency", r.cfg.DownloadConcurrency)

	assets := make([]release.Asset, len(artifacts))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.cfg.DownloadConcurrency)

	for i, artifact := range artifacts {
		group.Go(func() error {
			downloadCtx := logger.WithKV(groupCtx, "platform", string(artifact.Platform))

			asset, err := r.upstream.Download(downloadCtx, artifact, downloadDir)
			if err != nil {
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}

				return fmt.Errorf("%s: %s: %w", artifact.Platform, err, ErrDownloadFailed)
			}

			if !asset.Matches(asset.SHA256) {
				return fmt.Errorf("%s: expected %s, got %s: %w",
					artifact.Platform, artifact.Checksum, asset.SHA256, ErrChecksumMismatch)
			}

			asset.Verified = true
			assets[i] = asset

			logger.InfoKV(downloadCtx, "Binary verified", "sha256", asset.SHA256)

			return nil
		})
	}

	if err = group.Wait(); err != nil {
		return nil, err
	}

	return assets, nil
}

// cleanup removes the download directory and the run marker.
func (r *runner) cleanup(ctx context.Context) {
	if r.downloadDir != "" {
		if _, err := os.Stat(r.downloadDir); err == nil {
			_ = os.RemoveAll(r.downloadDir)
		}
	}

	if r.markerOwned {
		if _, err := os.Stat(MarkerFilename); err == nil {
			_ = os.Remove(MarkerFilename)
		}
	}

	logger.Debug(ctx, "Sync run cleaned up")
}
