package release

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPlatforms verifies the platform set is fixed, sorted and self-consistent.
func TestPlatforms(t *testing.T) {
	t.Parallel()

	platforms := Platforms()
	require.Len(t, platforms, 7)

	for i, p := range platforms {
		require.True(t, p.Valid(), p)

		if i > 0 {
			require.Less(t, string(platforms[i-1]), string(p))
		}
	}

	require.False(t, Platform("linux-riscv64").Valid())
}

// TestPlatformNames checks upstream object names and published asset names.
func TestPlatformNames(t *testing.T) {
	t.Parallel()

	require.Equal(t, "claude", LinuxX64.BinaryName())
	require.Equal(t, "claude.exe", Win32X64.BinaryName())
	require.Equal(t, "claude-darwin-arm64", DarwinARM64.AssetName())
	require.Equal(t, "claude-win32-x64.exe", Win32X64.AssetName())
}

// TestArtifactMatches verifies checksum comparison ignores hex casing.
func TestArtifactMatches(t *testing.T) {
	t.Parallel()

	a := Artifact{Checksum: "ABCDEF0123"}
	require.True(t, a.Matches("abcdef0123"))
	require.True(t, a.Matches("ABCDEF0123"))
	require.False(t, a.Matches("abcdef0124"))
}

// TestChecksumManifest verifies the manifest is platform-sorted and identical
// regardless of asset order.
func TestChecksumManifest(t *testing.T) {
	t.Parallel()

	rec := &Record{Version: "1.3.0"}
	for _, platform := range Platforms() {
		rec.Assets = append(rec.Assets, Asset{
			Artifact: Artifact{Platform: platform},
			SHA256:   strings.Repeat("a", 64),
			Verified: true,
		})
	}

	want := rec.ChecksumManifest()

	lines := strings.Split(strings.TrimRight(want, "\n"), "\n")
	require.Len(t, lines, 7)
	require.Equal(t, "darwin-arm64  "+strings.Repeat("a", 64), lines[0])
	require.Equal(t, "win32-x64  "+strings.Repeat("a", 64), lines[6])

	// Reverse the asset order; rendering must not change.
	for i, j := 0, len(rec.Assets)-1; i < j; i, j = i+1, j-1 {
		rec.Assets[i], rec.Assets[j] = rec.Assets[j], rec.Assets[i]
	}

	require.Equal(t, want, rec.ChecksumManifest())
}

// TestRecordComplete verifies completeness requires all 7 verified assets.
func TestRecordComplete(t *testing.T) {
	t.Parallel()

	rec := &Record{Version: "1.3.0"}
	require.False(t, rec.Complete())

	for _, platform := range Platforms() {
		rec.Assets = append(rec.Assets, Asset{
			Artifact: Artifact{Platform: platform},
			Verified: true,
		})
	}

	require.True(t, rec.Complete())

	// A single unverified asset breaks completeness.
	rec.Assets[3].Verified = false
	require.False(t, rec.Complete())
}
