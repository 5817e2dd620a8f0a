package release

import (
	"sort"
	"strings"
)

// ManifestAssetName is the name of the checksum manifest attached to every release.
const ManifestAssetName = "checksums.txt"

// Artifact describes one platform binary offered by upstream for a version.
type Artifact struct {
	// Platform is the target this binary was built for.
	Platform Platform
	// URL is the absolute download location of the binary.
	URL string
	// Checksum is the hex SHA-256 upstream declares for the binary.
	Checksum string
	// Size is the expected byte size, used for logging only.
	Size int64
}

// Matches reports whether the computed checksum equals the declared one.
// Upstream is inconsistent about hex casing, so comparison is case-insensitive.
func (a Artifact) Matches(sum string) bool {
	return strings.EqualFold(a.Checksum, sum)
}

// Asset is a downloaded artifact whose checksum has been recomputed locally.
type Asset struct {
	Artifact

	// Path is the local file holding the downloaded bytes.
	Path string
	// SHA256 is the hex checksum computed over the downloaded bytes.
	SHA256 string
	// Verified is true once SHA256 matched the declared checksum.
	Verified bool
}

// Record is a fully assembled release, ready to publish. It only exists for
// the duration of one sync run; the store makes it durable.
type Record struct {
	// Version identifies the upstream release.
	Version string
	// BuildDate is the upstream build date, carried into the release notes.
	BuildDate string
	// Assets holds one verified asset per platform.
	Assets []Asset
}

// SortAssets orders assets by platform key so publish order and the checksum
// manifest are deterministic regardless of download completion order.
func (r *Record) SortAssets() {
	sort.Slice(r.Assets, func(i, j int) bool {
		return r.Assets[i].Platform < r.Assets[j].Platform
	})
}

// Complete reports whether the record carries a verified asset for every
// supported platform.
func (r *Record) Complete() bool {
	verified := make(map[Platform]bool, len(r.Assets))
	for _, asset := range r.Assets {
		if asset.Verified {
			verified[asset.Platform] = true
		}
	}

	for _, platform := range Platforms() {
		if !verified[platform] {
			return false
		}
	}

	return len(r.Assets) == len(Platforms())
}

// ChecksumManifest renders the manifest attached to the release: one
// "<platform>  <sha256>" line per platform, sorted by platform key.
func (r *Record) ChecksumManifest() string {
	sums := make(map[Platform]string, len(r.Assets))
	for _, asset := range r.Assets {
		sums[asset.Platform] = strings.ToLower(asset.SHA256)
	}

	var builder strings.Builder

	for _, platform := range Platforms() {
		sum, ok := sums[platform]
		if !ok {
			continue
		}

		builder.WriteString(string(platform))
		builder.WriteString("  ")
		builder.WriteString(sum)
		builder.WriteString("\n")
	}

	return builder.String()
}
