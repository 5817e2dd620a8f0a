package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkravchenko/claude-sync/internal/domain/release"
)

// Config holds the settings shared by the claude-sync commands.
type Config struct {
	// UpstreamURL is the base URL of the distribution bucket.
	UpstreamURL string `yaml:"upstream_url"`
	// Store selects the release store backend ("github" or "dir").
	Store string `yaml:"store"`
	// GitHubRepo is the "owner/name" of the repository releases are published to.
	GitHubRepo string `yaml:"github_repo"`
	// APIURL overrides the GitHub API base URL (tests, GHE).
	APIURL string `yaml:"api_url"`
	// UploadURL overrides the GitHub upload base URL (tests, GHE).
	UploadURL string `yaml:"upload_url"`
	// OutputDir is the root directory of the "dir" store.
	OutputDir string `yaml:"output_dir"`
	// Timeout bounds every individual HTTP request.
	Timeout time.Duration `yaml:"timeout"`
	// DownloadConcurrency caps how many binaries are downloaded at once.
	DownloadConcurrency int `yaml:"download_concurrency"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "claude-sync.yaml"

	// DefaultUpstreamURL is the public distribution bucket holding releases.
	DefaultUpstreamURL = "https://storage.googleapis.com/" +
		"claude-code-dist-86c565f3-f756-42ad-8dfa-d59b1c096819/claude-code-releases"

	// DefaultOutputDir is where the "dir" store keeps published releases.
	DefaultOutputDir = "releases"

	// DefaultTimeout is generous because platform binaries are large.
	DefaultTimeout = 2 * time.Minute

	// TokenEnv names the environment variable holding the GitHub token.
	// The token is never read from the config file.
	TokenEnv = "GITHUB_TOKEN"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// StoreGitHub publishes releases through the GitHub API.
	StoreGitHub = "github"
	// StoreDir publishes releases into a local directory tree.
	StoreDir = "dir"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownStore is returned for an unrecognized store backend.
	errUnknownStore = errors.New("unknown store backend")
	// errRepoRequired is returned when the github store has no repository.
	errRepoRequired = errors.New("github_repo must be provided as owner/name")
)

// Default returns a configuration with all defaults applied. A sync runs
// without any settings file at all: upstream and output locations have
// working defaults.
func Default() *Config {
	return &Config{
		UpstreamURL:         DefaultUpstreamURL,
		Store:               StoreDir,
		OutputDir:           DefaultOutputDir,
		Timeout:             DefaultTimeout,
		DownloadConcurrency: len(release.Platforms()),
	}
}

// Load reads configuration from the provided path and validates it.
// A missing file at the default path is not an error: defaults apply.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for optional ones.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = DefaultUpstreamURL
	}

	if _, err := url.ParseRequestURI(cfg.UpstreamURL); err != nil {
		return fmt.Errorf("invalid upstream URL: %w", err)
	}

	switch cfg.Store {
	case "":
		cfg.Store = StoreDir
	case StoreDir, StoreGitHub:
	default:
		return fmt.Errorf("%w: %s", errUnknownStore, cfg.Store)
	}

	if cfg.Store == StoreGitHub {
		parts := strings.Split(cfg.GitHubRepo, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return errRepoRequired
		}
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.DownloadConcurrency <= 0 {
		cfg.DownloadConcurrency = len(release.Platforms())
	}

	return nil
}

// Token returns the GitHub token from the environment, if set.
func Token() string {
	return strings.TrimSpace(os.Getenv(TokenEnv))
}
