package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkravchenko/claude-sync/internal/config"
	"github.com/mkravchenko/claude-sync/internal/domain/release"
)

// serveUpstream exposes a single-version bucket with one platform binary.
func serveUpstream(t *testing.T, version string, platform release.Platform, body []byte, checksum string) string {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/latest", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(version))
	})
	mux.HandleFunc("/"+version+"/manifest.json", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version":   version,
			"buildDate": "2026-08-30",
			"platforms": map[string]any{
				string(platform): map[string]any{
					"checksum": checksum,
					"size":     len(body),
				},
			},
		})
	})
	mux.HandleFunc("/"+version+"/"+string(platform)+"/"+platform.BinaryName(),
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(body)
		})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts.URL
}

func writeSettings(t *testing.T, upstreamURL string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	cfg := &config.Config{
		UpstreamURL: upstreamURL,
		Timeout:     5 * time.Second,
	}
	require.NoError(t, config.Save(path, cfg))

	return path
}

// TestRunInstallsVerifiedBinary verifies the downloaded binary replaces the
// target file after checksum verification.
func TestRunInstallsVerifiedBinary(t *testing.T) {
	t.Parallel()

	body := []byte("#!/bin/sh\necho claude 1.3.0\n")
	sum := sha256.Sum256(body)

	url := serveUpstream(t, "1.3.0", release.LinuxX64, body, hex.EncodeToString(sum[:]))

	target := filepath.Join(t.TempDir(), "claude")
	opts := &Options{
		ConfigPath: writeSettings(t, url),
		OutputPath: target,
		Platform:   string(release.LinuxX64),
	}

	require.NoError(t, Run(context.Background(), opts))

	installed, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, body, installed)

	info, err := os.Stat(target)
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o100)

	// The previous-binary backup is not kept.
	_, err = os.Stat(target + ".old")
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRunRejectsBadChecksum verifies nothing is installed when the manifest
// checksum does not match the bytes.
func TestRunRejectsBadChecksum(t *testing.T) {
	t.Parallel()

	body := []byte("tampered binary")
	url := serveUpstream(t, "1.3.0", release.LinuxX64, body, strings.Repeat("0", 64))

	target := filepath.Join(t.TempDir(), "claude")
	opts := &Options{
		ConfigPath: writeSettings(t, url),
		OutputPath: target,
		Platform:   string(release.LinuxX64),
	}

	err := Run(context.Background(), opts)
	require.ErrorIs(t, err, errChecksumMismatch)

	_, err = os.Stat(target)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestResolvePlatform checks override validation.
func TestResolvePlatform(t *testing.T) {
	t.Parallel()

	platform, err := resolvePlatform("linux-arm64-musl")
	require.NoError(t, err)
	require.Equal(t, release.LinuxARM64Musl, platform)

	_, err = resolvePlatform("plan9-386")
	require.ErrorIs(t, err, errUnsupportedPlatform)
}
