package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform represents a target platform
type Platform struct {
	OS   string
	Arch string
}

// Current returns the current platform
func Current() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: normalizeArch(runtime.GOARCH),
	}
}

// String returns a string representation of the platform
func (p Platform) String() string {
	return fmt.Sprintf("%s-%s", p.OS, p.Arch)
}

// Supports reports whether packages built for arch run on the platform
func (p Platform) Supports(arch string) bool {
	return matchScore(arch, p) > 0
}

// matchScore returns how well a package arch fits the platform, 0 when it
// does not run at all
func matchScore(arch string, p Platform) int {
	arch = normalizeArch(strings.ToLower(strings.TrimSpace(arch)))

	switch {
	case arch == p.Arch:
		return 10
	case arch == "" || arch == "any":
		return 1
	}

	// 32 bit builds run on their 64 bit hosts
	switch p.Arch {
	case "x64":
		if arch == "x86" {
			return 5
		}
	case "arm64":
		if arch == "arm" {
			return 5
		}
	}
	return 0
}

// normalizeArch maps the many spellings of an architecture to catalogue names
func normalizeArch(arch string) string {
	switch arch {
	case "amd64", "x86_64", "x64":
		return "x64"
	case "386", "i386", "i686", "x86":
		return "x86"
	case "aarch64", "arm64":
		return "arm64"
	case "armv7", "armv6", "arm":
		return "arm"
	case "neutral":
		return "any"
	default:
		return arch
	}
}
