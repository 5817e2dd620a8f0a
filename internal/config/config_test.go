package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and default filling.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty config picks up every default.
	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultUpstreamURL, cfg.UpstreamURL)
	require.Equal(t, StoreDir, cfg.Store)
	require.Equal(t, DefaultOutputDir, cfg.OutputDir)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, 7, cfg.DownloadConcurrency)

	// Bad upstream URL.
	cfg = &Config{UpstreamURL: "not a url"}
	require.Error(t, Validate(cfg))

	// Unknown store backend.
	cfg = &Config{Store: "s3"}
	require.Error(t, Validate(cfg))

	// GitHub store requires owner/name.
	cfg = &Config{Store: StoreGitHub}
	require.Error(t, Validate(cfg))

	cfg = &Config{Store: StoreGitHub, GitHubRepo: "owner-only"}
	require.Error(t, Validate(cfg))

	cfg = &Config{Store: StoreGitHub, GitHubRepo: "owner/mirror"}
	require.NoError(t, Validate(cfg))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		UpstreamURL: "https://releases.local/claude",
		Store:       StoreGitHub,
		GitHubRepo:  "owner/mirror",
		Timeout:     30 * time.Second,
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.UpstreamURL, loaded.UpstreamURL)
	require.Equal(t, cfg.Store, loaded.Store)
	require.Equal(t, cfg.GitHubRepo, loaded.GitHubRepo)
	require.Equal(t, cfg.Timeout, loaded.Timeout)
}

// TestLoadMissingFile verifies that only an explicit path is required to exist.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultUpstreamURL, cfg.UpstreamURL)
}
