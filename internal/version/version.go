// SPDX-License-Identifier: Apache-2.0

package version

import "fmt"

// Set at build time with -ldflags "-X github.com/kusari-oss/mend/internal/version.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// String renders the version line printed by the CLI
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}
