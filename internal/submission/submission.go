// Package submission builds the pieces of a job's final report that
// aren't pure aggregation math: the PyPI Inspector URL rewrite. Grounded
// on utils.rs's create_inspector_url, which rewrites a files.pythonhosted
// download URL into an inspector.pypi.io URL carrying the package name
// and version.
package submission

import (
	"fmt"
	"net/url"
	"strings"
)

// InspectorURL rewrites downloadURL into the base Inspector URL for name
// at version: same scheme, host swapped to inspector.pypi.io, path
// rewritten to /project/{name}/{version}/{original path stripped of its
// leading slash}/. The result always ends in a trailing slash so a file
// path can be appended directly (matches DistributionScanResult's
// BaseInspectorURL + path concatenation).
//
// Calling InspectorURL again on its own output (same name and version)
// returns that output unchanged: a URL already on inspector.pypi.io under
// /project/{name}/{version}/ and ending in a slash keeps its path.
func InspectorURL(name, version, downloadURL string) (string, error) {
	u, err := url.Parse(downloadURL)
	if err != nil {
		return "", fmt.Errorf("parse download url %q: %w", downloadURL, err)
	}

	trimmedPath := strings.TrimPrefix(u.Path, "/")
	newPath := fmt.Sprintf("project/%s/%s/%s/", name, version, trimmedPath)
	if u.Host == "inspector.pypi.io" && strings.HasPrefix(trimmedPath, fmt.Sprintf("project/%s/%s/", name, version)) && strings.HasSuffix(trimmedPath, "/") {
		newPath = trimmedPath
	}

	rewritten := *u
	rewritten.Host = "inspector.pypi.io"
	rewritten.Path = "/" + newPath
	rewritten.RawQuery = ""
	rewritten.Fragment = ""

	return rewritten.String(), nil
}
