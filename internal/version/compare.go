package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckCompatibility checks whether the running build satisfies a version
// pinned in a config file. Returns nil if compatible.
//
// Compatibility rules:
//   - If either version is "main" (development build), the check is skipped
//   - Major versions must match exactly
//   - Minor versions must match exactly
//   - Patch versions can differ (e.g., 1.2.0 is compatible with 1.2.5)
func CheckCompatibility(buildVersion, pinnedVersion string) error {
	// Strip 'v' prefix if present for consistency
	buildVersion = strings.TrimPrefix(buildVersion, "v")
	pinnedVersion = strings.TrimPrefix(pinnedVersion, "v")

	// Skip version check for "main" (development builds)
	if buildVersion == "main" || pinnedVersion == "main" {
		return nil
	}

	buildSemver, err := semver.NewVersion(buildVersion)
	if err != nil {
		return fmt.Errorf("invalid build version '%s': %w", buildVersion, err)
	}

	pinnedSemver, err := semver.NewVersion(pinnedVersion)
	if err != nil {
		return fmt.Errorf("invalid pinned version '%s': %w", pinnedVersion, err)
	}

	if buildSemver.Major() != pinnedSemver.Major() {
		return fmt.Errorf("major version mismatch: build is %d.x.x but config requires %d.x.x",
			buildSemver.Major(), pinnedSemver.Major())
	}

	if buildSemver.Minor() != pinnedSemver.Minor() {
		return fmt.Errorf("minor version mismatch: build is %d.%d.x but config requires %d.%d.x",
			buildSemver.Major(), buildSemver.Minor(), pinnedSemver.Major(), pinnedSemver.Minor())
	}

	return nil
}
