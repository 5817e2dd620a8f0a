package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mkravchenko/claude-sync/internal/domain/release"
	"github.com/mkravchenko/claude-sync/internal/logger"
)

const (
	// DefaultAPIURL is the public GitHub REST endpoint.
	DefaultAPIURL = "https://api.github.com"
	// DefaultUploadURL is the public GitHub asset upload endpoint.
	DefaultUploadURL = "https://uploads.github.com"

	acceptHeader = "application/vnd.github+json"
)

var (
	errUnexpectedStatus = errors.New("unexpected http status")
	errTokenRequired    = errors.New("github token is required")
	errRepoInvalid      = errors.New("repository must be owner/name")
)

// GitHubOptions configures the GitHub-backed store.
type GitHubOptions struct {
	// Repo is the target repository as "owner/name".
	Repo string
	// Token authenticates API and upload requests.
	Token string
	// APIURL overrides the REST base URL; empty means api.github.com.
	APIURL string
	// UploadURL overrides the upload base URL; empty means uploads.github.com.
	UploadURL string
	// Timeout bounds every individual request.
	Timeout time.Duration
}

// GitHub publishes releases through the GitHub REST API. A release is
// created as a draft, assets are attached, and only then is the draft
// published, so a failed run never leaves a visible partial release.
type GitHub struct {
	repo       string
	token      string
	apiURL     string
	uploadURL  string
	httpClient *http.Client
}

// NewGitHub creates a GitHub store from the provided options.
func NewGitHub(opts GitHubOptions) (*GitHub, error) {
	if opts.Token == "" {
		return nil, errTokenRequired
	}

	parts := strings.Split(opts.Repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: %q", errRepoInvalid, opts.Repo)
	}

	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	uploadURL := opts.UploadURL
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	return &GitHub{
		repo:      opts.Repo,
		token:     opts.Token,
		apiURL:    strings.TrimRight(apiURL, "/"),
		uploadURL: strings.TrimRight(uploadURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// createdRelease is the subset of the release resource the store needs.
type createdRelease struct {
	ID      int64  `json:"id"`
	TagName string `json:"tag_name"`
}

// LatestVersion returns the tag of the most recent release.
func (g *GitHub) LatestVersion(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/latest", g.apiURL, g.repo)

	response, err := g.do(ctx, http.MethodGet, endpoint, acceptHeader, nil)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode == http.StatusNotFound {
		return "", ErrNoReleases
	}

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %w", response.Status, errUnexpectedStatus)
	}

	var rel createdRelease
	if err = json.NewDecoder(response.Body).Decode(&rel); err != nil {
		return "", fmt.Errorf("decode release: %w", err)
	}

	return rel.TagName, nil
}

// Publish creates a draft release, uploads all assets and the checksum
// manifest, then flips the draft to published. Any failure deletes the draft.
func (g *GitHub) Publish(ctx context.Context, rec *release.Record) error {
	rel, err := g.createDraft(ctx, rec)
	if err != nil {
		return err
	}

	if err = g.uploadAll(ctx, rel.ID, rec); err != nil {
		g.discardDraft(ctx, rel.ID)
		return err
	}

	if err = g.publishDraft(ctx, rel.ID); err != nil {
		g.discardDraft(ctx, rel.ID)
		return err
	}

	logger.InfoKV(ctx, "Published GitHub release",
		"repo", g.repo, "tag", rec.Version, "assets", len(rec.Assets)+1)

	return nil
}

// createDraft creates the draft release carrying the version tag.
func (g *GitHub) createDraft(ctx context.Context, rec *release.Record) (*createdRelease, error) {
	body := map[string]any{
		"tag_name": rec.Version,
		"name":     rec.Version,
		"body":     fmt.Sprintf("Claude Code %s (built %s)", rec.Version, rec.BuildDate),
		"draft":    true,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/repos/%s/releases", g.apiURL, g.repo)

	response, err := g.do(ctx, http.MethodPost, endpoint, acceptHeader, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create release: %s: %w", response.Status, errUnexpectedStatus)
	}

	var rel createdRelease
	if err = json.NewDecoder(response.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decode created release: %w", err)
	}

	return &rel, nil
}

// uploadAll attaches every binary asset plus the checksum manifest.
func (g *GitHub) uploadAll(ctx context.Context, releaseID int64, rec *release.Record) error {
	for _, asset := range rec.Assets {
		data, err := os.ReadFile(filepath.Clean(asset.Path))
		if err != nil {
			return fmt.Errorf("read %s: %w", asset.Path, err)
		}

		if err = g.uploadAsset(ctx, releaseID, asset.Platform.AssetName(), data); err != nil {
			return err
		}
	}

	manifest := []byte(rec.ChecksumManifest())

	return g.uploadAsset(ctx, releaseID, release.ManifestAssetName, manifest)
}

// uploadAsset uploads one named asset to the draft release.
func (g *GitHub) uploadAsset(ctx context.Context, releaseID int64, name string, data []byte) error {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/%d/assets?name=%s",
		g.uploadURL, g.repo, releaseID, name)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}

	request.Header.Set("Authorization", "Bearer "+g.token)
	request.Header.Set("Content-Type", "application/octet-stream")
	request.ContentLength = int64(len(data))

	response, err := g.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload %s: %s: %w", name, response.Status, errUnexpectedStatus)
	}

	logger.DebugKV(ctx, "Uploaded release asset", "name", name, "bytes", len(data))

	return nil
}

// publishDraft flips the draft flag so the release becomes visible.
func (g *GitHub) publishDraft(ctx context.Context, releaseID int64) error {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/%d", g.apiURL, g.repo, releaseID)

	response, err := g.do(ctx, http.MethodPatch, endpoint, acceptHeader,
		strings.NewReader(`{"draft":false}`))
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("publish release: %s: %w", response.Status, errUnexpectedStatus)
	}

	return nil
}

// discardDraft removes a draft whose assembly failed. Best effort: the draft
// is invisible to release consumers either way.
func (g *GitHub) discardDraft(ctx context.Context, releaseID int64) {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/%d", g.apiURL, g.repo, releaseID)

	response, err := g.do(ctx, http.MethodDelete, endpoint, acceptHeader, nil)
	if err != nil {
		logger.WarnKV(ctx, "Failed to delete draft release", "id", releaseID, "error", err)
		return
	}

	_ = response.Body.Close()
}

// do performs an authenticated API request.
func (g *GitHub) do(ctx context.Context, method, endpoint, accept string, body io.Reader) (*http.Response, error) {
	if body == nil {
		body = http.NoBody
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	request.Header.Set("Authorization", "Bearer "+g.token)

	if accept != "" {
		request.Header.Set("Accept", accept)
	}

	response, err := g.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}

	return response, nil
}
