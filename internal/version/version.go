package version

// Version is the current version of the dipsim binary.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/marlin-quant/dipsim/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "main"

// GetVersion returns the current build version.
func GetVersion() string {
	return Version
}
