// Package buildinfo holds build-time metadata injected with -ldflags.
package buildinfo

// UnknownValue is reported for metadata that was not set at build time.
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/platescale/platescale/internal/buildinfo.version=..."
var (
	version   string
	buildDate string
	commit    string
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	Commit    string `json:"commit"`
}

// Current returns the metadata of the running binary.
func Current() *Context {
	return &Context{Version: version, BuildDate: buildDate, Commit: commit}
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetCommit returns the commit hash or UnknownValue.
func (c *Context) GetCommit() string {
	if c == nil || c.Commit == "" {
		return UnknownValue
	}
	return c.Commit
}

// Release is the Sentry release name, e.g. "platescale@1.2.0".
func (c *Context) Release() string {
	return "platescale@" + c.GetVersion()
}
