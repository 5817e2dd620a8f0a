package release

import "runtime"

// Platform identifies one OS/architecture/libc combination that upstream
// publishes a prebuilt binary for.
type Platform string

// The fixed set of platforms upstream builds for. A release is only
// published when a verified binary exists for every one of them.
const (
	DarwinARM64    Platform = "darwin-arm64"
	DarwinX64      Platform = "darwin-x64"
	LinuxARM64     Platform = "linux-arm64"
	LinuxARM64Musl Platform = "linux-arm64-musl"
	LinuxX64       Platform = "linux-x64"
	LinuxX64Musl   Platform = "linux-x64-musl"
	Win32X64       Platform = "win32-x64"
)

// Platforms returns every supported platform in manifest order (sorted by key).
// Callers must not mutate the returned slice.
func Platforms() []Platform {
	return []Platform{
		DarwinARM64,
		DarwinX64,
		LinuxARM64,
		LinuxARM64Musl,
		LinuxX64,
		LinuxX64Musl,
		Win32X64,
	}
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case DarwinARM64, DarwinX64, LinuxARM64, LinuxARM64Musl, LinuxX64, LinuxX64Musl, Win32X64:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// BinaryName returns the object name upstream stores the binary under.
func (p Platform) BinaryName() string {
	if p == Win32X64 {
		return "claude.exe"
	}

	return "claude"
}

// AssetName returns the name the binary is published under in a release.
func (p Platform) AssetName() string {
	if p == Win32X64 {
		return "claude-" + string(p) + ".exe"
	}

	return "claude-" + string(p)
}

// Current returns the platform matching the running process, if supported.
// Musl variants cannot be distinguished at runtime, so glibc builds are
// assumed on Linux.
func Current() (Platform, bool) {
	switch runtime.GOOS {
	case "darwin":
		switch runtime.GOARCH {
		case "arm64":
			return DarwinARM64, true
		case "amd64":
			return DarwinX64, true
		}
	case "linux":
		switch runtime.GOARCH {
		case "arm64":
			return LinuxARM64, true
		case "amd64":
			return LinuxX64, true
		}
	case "windows":
		if runtime.GOARCH == "amd64" {
			return Win32X64, true
		}
	}

	return "", false
}
