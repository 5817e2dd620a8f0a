package upstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mkravchenko/claude-sync/internal/domain/release"
	"github.com/mkravchenko/claude-sync/internal/logger"
)

const (
	// latestObject is the bucket object holding the current version identifier.
	latestObject = "latest"
	// manifestObject is the per-version object describing all platform binaries.
	manifestObject = "manifest.json"

	// maxAttempts bounds retries of a single request on transient failures.
	maxAttempts = 3
	// initialBackoff is the delay before the first retry; it doubles per attempt.
	initialBackoff = 2 * time.Second
	// maxBackoff caps the retry delay.
	maxBackoff = 30 * time.Second
)

var (
	errBadHTTPStatus = errors.New("unexpected http status")
	errEmptyVersion  = errors.New("upstream returned an empty version")
)

// Client reads version metadata and binaries from the distribution bucket.
type Client struct {
	// baseURL is the bucket root all object paths are resolved against.
	baseURL string
	// httpClient carries the per-request timeout from configuration.
	httpClient *http.Client
}

// New creates a client for the bucket at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PlatformInfo is the per-platform entry of the upstream manifest.
type PlatformInfo struct {
	// Checksum is the hex SHA-256 of the platform binary.
	Checksum string `json:"checksum"`
	// Size is the binary size in bytes.
	Size int64 `json:"size"`
}

// Manifest is the upstream description of one version.
type Manifest struct {
	// Version repeats the version identifier the manifest was fetched for.
	Version string `json:"version"`
	// BuildDate is the upstream build date string.
	BuildDate string `json:"buildDate"`
	// Platforms maps platform keys to checksum and size.
	Platforms map[string]PlatformInfo `json:"platforms"`
}

// Latest fetches the current upstream version identifier.
func (c *Client) Latest(ctx context.Context) (string, error) {
	objectURL, err := c.objectURL(latestObject)
	if err != nil {
		return "", err
	}

	response, err := c.get(ctx, objectURL)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("read version: %w", err)
	}

	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", errEmptyVersion
	}

	return version, nil
}

// FetchManifest fetches and decodes the manifest for the provided version.
func (c *Client) FetchManifest(ctx context.Context, version string) (*Manifest, error) {
	objectURL, err := c.objectURL(version, manifestObject)
	if err != nil {
		return nil, err
	}

	response, err := c.get(ctx, objectURL)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	var manifest Manifest
	if err = json.NewDecoder(response.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return &manifest, nil
}

// BinaryURL returns the download location of one platform binary.
func (c *Client) BinaryURL(version string, platform release.Platform) (string, error) {
	return c.objectURL(version, string(platform), platform.BinaryName())
}

// Download fetches the artifact's bytes into dir, computing the SHA-256 over
// the stream as it is written. The checksum is returned to the caller for
// verification; Download itself does not compare it.
func (c *Client) Download(ctx context.Context, artifact release.Artifact, dir string) (release.Asset, error) {
	asset := release.Asset{Artifact: artifact}

	response, err := c.get(ctx, artifact.URL)
	if err != nil {
		return asset, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	outputPath := filepath.Join(dir, artifact.Platform.AssetName())

	outputFile, err := os.Create(filepath.Clean(outputPath))
	if err != nil {
		return asset, fmt.Errorf("create %s: %w", outputPath, err)
	}

	hasher := sha256.New()

	written, err := io.Copy(io.MultiWriter(outputFile, hasher), response.Body)
	if err != nil {
		_ = outputFile.Close()

		return asset, fmt.Errorf("download %s: %w", artifact.Platform, err)
	}

	if err = outputFile.Close(); err != nil {
		return asset, fmt.Errorf("close %s: %w", outputPath, err)
	}

	logger.DebugKV(ctx, "Downloaded binary", "bytes", written, "path", outputPath)

	asset.Path = outputPath
	asset.SHA256 = hex.EncodeToString(hasher.Sum(nil))

	return asset, nil
}

// objectURL joins the bucket base URL with the provided path elements.
// Uses path.Join to normalize duplicate slashes when composing the URL path.
func (c *Client) objectURL(elements ...string) (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse upstream URL: %w", err)
	}

	parsed.Path = path.Join(append([]string{parsed.Path}, elements...)...)

	return parsed.String(), nil
}

// get performs a GET with bounded retries on network errors and transient
// HTTP statuses. On success the response body is left open for the caller.
func (c *Client) get(ctx context.Context, requestURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(attempt-1)); err != nil {
				return nil, err
			}

			logger.DebugKV(ctx, "Retrying request", "url", requestURL, "attempt", attempt+1)
		}

		request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
		if err != nil {
			return nil, err
		}

		response, err := c.httpClient.Do(request)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			lastErr = err

			continue
		}

		if response.StatusCode == http.StatusOK {
			return response, nil
		}

		_ = response.Body.Close()

		lastErr = fmt.Errorf("%s, %s: %w", requestURL, response.Status, errBadHTTPStatus)
		if !isRetryableStatus(response.StatusCode) {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// isRetryableStatus reports whether a status is worth another attempt.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// backoff returns the delay for a retry attempt, doubling up to maxBackoff.
func backoff(attempt int) time.Duration {
	delay := initialBackoff << attempt
	if delay > maxBackoff {
		return maxBackoff
	}

	return delay
}

// sleep waits for the duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
