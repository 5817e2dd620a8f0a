package integration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkravchenko/claude-sync/internal/config"
	"github.com/mkravchenko/claude-sync/internal/domain/release"
	"github.com/mkravchenko/claude-sync/internal/service/syncer"
)

// bucket simulates the upstream distribution bucket.
type bucket struct {
	mu      sync.Mutex
	version string
	bodies  map[release.Platform][]byte
	// breakPlatform makes one manifest checksum wrong.
	breakPlatform release.Platform
}

func newBucket(version string) *bucket {
	b := &bucket{version: version, bodies: make(map[release.Platform][]byte)}
	b.setVersion(version)

	return b
}

func (b *bucket) setVersion(version string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.version = version
	for _, platform := range release.Platforms() {
		b.bodies[platform] = []byte(version + " build for " + string(platform))
	}
}

func (b *bucket) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		switch {
		case r.URL.Path == "/latest":
			_, _ = w.Write([]byte(b.version))
		case r.URL.Path == "/"+b.version+"/manifest.json":
			platforms := make(map[string]map[string]any, len(b.bodies))
			for platform, body := range b.bodies {
				sum := sha256.Sum256(body)
				checksum := hex.EncodeToString(sum[:])
				if platform == b.breakPlatform {
					checksum = strings.Repeat("f", 64)
				}

				platforms[string(platform)] = map[string]any{
					"checksum": checksum,
					"size":     len(body),
				}
			}

			_ = json.NewEncoder(w).Encode(map[string]any{
				"version":   b.version,
				"buildDate": "2026-08-30",
				"platforms": platforms,
			})
		default:
			parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
			if len(parts) == 3 && parts[0] == b.version {
				if body, ok := b.bodies[release.Platform(parts[1])]; ok {
					_, _ = w.Write(body)
					return
				}
			}

			http.NotFound(w, r)
		}
	})
}

// releaseAPI simulates just enough of the GitHub release API.
type releaseAPI struct {
	mu sync.Mutex

	nextID    int64
	drafts    map[int64]string
	assets    map[int64][]string
	published map[string][]string // tag -> asset names
	latest    string
}

func newReleaseAPI() *releaseAPI {
	return &releaseAPI{
		nextID:    1,
		drafts:    make(map[int64]string),
		assets:    make(map[int64][]string),
		published: make(map[string][]string),
	}
}

func (a *releaseAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /repos/anthropics/claude-mirror/releases/latest",
		func(w http.ResponseWriter, _ *http.Request) {
			a.mu.Lock()
			defer a.mu.Unlock()

			if a.latest == "" {
				w.WriteHeader(http.StatusNotFound)
				return
			}

			_ = json.NewEncoder(w).Encode(map[string]any{"tag_name": a.latest})
		})

	mux.HandleFunc("POST /repos/anthropics/claude-mirror/releases",
		func(w http.ResponseWriter, r *http.Request) {
			a.mu.Lock()
			defer a.mu.Unlock()

			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)

			id := a.nextID
			a.nextID++
			a.drafts[id] = body["tag_name"].(string)

			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
		})

	mux.HandleFunc("POST /repos/anthropics/claude-mirror/releases/{id}/assets",
		func(w http.ResponseWriter, r *http.Request) {
			a.mu.Lock()
			defer a.mu.Unlock()

			var id int64
			_, _ = fmt.Sscan(r.PathValue("id"), &id)

			a.assets[id] = append(a.assets[id], r.URL.Query().Get("name"))
			w.WriteHeader(http.StatusCreated)
		})

	mux.HandleFunc("PATCH /repos/anthropics/claude-mirror/releases/{id}",
		func(w http.ResponseWriter, r *http.Request) {
			a.mu.Lock()
			defer a.mu.Unlock()

			var id int64
			_, _ = fmt.Sscan(r.PathValue("id"), &id)

			tag := a.drafts[id]
			delete(a.drafts, id)
			a.published[tag] = a.assets[id]
			a.latest = tag

			_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
		})

	mux.HandleFunc("DELETE /repos/anthropics/claude-mirror/releases/{id}",
		func(w http.ResponseWriter, r *http.Request) {
			a.mu.Lock()
			defer a.mu.Unlock()

			var id int64
			_, _ = fmt.Sscan(r.PathValue("id"), &id)

			delete(a.drafts, id)
			delete(a.assets, id)
			w.WriteHeader(http.StatusNoContent)
		})

	return mux
}

// TestSync_GitHubStore_FullCycle walks the sync through publish, idempotent
// skip, a failed update and the subsequent successful one against a fake
// GitHub release API.
//
//nolint:funlen // Integration test requires comprehensive setup and verification.
func TestSync_GitHubStore_FullCycle(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(config.TokenEnv, "integration-token")

	up := newBucket("1.2.0")
	upstreamServer := httptest.NewServer(up.handler())
	defer upstreamServer.Close()

	api := newReleaseAPI()
	apiServer := httptest.NewServer(api.handler())
	defer apiServer.Close()

	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		UpstreamURL: upstreamServer.URL,
		Store:       config.StoreGitHub,
		GitHubRepo:  "anthropics/claude-mirror",
		APIURL:      apiServer.URL,
		UploadURL:   apiServer.URL,
		Timeout:     5 * time.Second,
	}))

	ctx := context.Background()
	opts := &syncer.Options{ConfigPath: cfgPath}

	// First run publishes 1.2.0 with all assets.
	result, err := syncer.Run(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, syncer.OutcomePublished, result.Outcome)
	require.Equal(t, "1.2.0", result.Version)

	assets := api.published["1.2.0"]
	require.Len(t, assets, 8)
	require.Contains(t, assets, release.ManifestAssetName)

	// Second run is a no-op skip.
	result, err = syncer.Run(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, syncer.OutcomeUpToDate, result.Outcome)

	// Upstream advances but one checksum is broken: no release appears.
	up.setVersion("1.3.0")
	up.breakPlatform = release.LinuxARM64

	_, err = syncer.Run(ctx, opts)
	require.ErrorIs(t, err, syncer.ErrChecksumMismatch)
	require.Equal(t, "1.2.0", api.latest)
	require.NotContains(t, api.published, "1.3.0")
	require.Empty(t, api.drafts)

	// Upstream fixes the checksum: 1.3.0 is published.
	up.breakPlatform = ""

	result, err = syncer.Run(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, syncer.OutcomePublished, result.Outcome)
	require.Equal(t, "1.3.0", result.Version)
	require.Equal(t, "1.2.0", result.Previous)
	require.Equal(t, "1.3.0", api.latest)
	require.Len(t, api.published["1.3.0"], 8)
}
