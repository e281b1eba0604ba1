// Package vars holds build-time variables populated via the linker (ldflags).
package vars

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// License of the project
const License = "AGPL-3.0"

var (
	// Name of the project
	Name = "mcstatus"

	// Version of application (git tag) semver/tag, e.g. v1.2.3
	Version = "dev"

	// Commit is the current git commit, full or short git SHA
	Commit = "unknown"

	// Revision build, count of commits
	Revision = 0

	// BuildTime is the time of start build app, RFC3339 UTC
	BuildTime = time.Unix(0, 0).UTC()

	// URL to repository (https)
	URL = "https://github.com/woozymasta/mcstatus"

	_revision  string
	_buildTime string
)

// BuildInfo is the version payload of the /api/version endpoint.
type BuildInfo struct {
	BuildTime time.Time `json:"build_time"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	Revision  int       `json:"revision,omitempty"`
}

func init() {
	parseLinkerVars(_revision, _buildTime)
}

func parseLinkerVars(revision, buildTime string) {
	if n, err := strconv.Atoi(revision); err == nil {
		Revision = n
	}

	if buildTime != "" {
		if t, err := time.Parse(time.RFC3339, buildTime); err == nil {
			BuildTime = t.UTC()
		}
	}
}

// UserAgent returns the identifier used in outgoing HTTP requests, e.g. "mcstatus/v1.2.3".
func UserAgent() string {
	return Name + "/" + Version
}

// Print writes the build information to the standard output.
func Print() {
	Fprint(os.Stdout)
}

// Fprint writes the build information to w.
func Fprint(w io.Writer) {
	_, _ = fmt.Fprintf(w, `name:     %s
url:      %s
file:     %s
version:  %s
commit:   %s
revision: %d
built:    %s
license:  %s
`, Name, URL, os.Args[0], Version, Commit, Revision, BuildTime.Format(time.RFC3339), License)
}

// Ver returns the versioning details exposed by the API.
func Ver() BuildInfo {
	return BuildInfo{
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		Revision:  Revision,
		BuildTime: BuildTime,
	}
}
